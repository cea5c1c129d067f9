package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/therapyhub/therapyhub/internal/platform/audit"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// ErrNotSelf is returned when a non-admin tries to edit someone else's
// profile.
var ErrNotSelf = errors.New("profiles can only be edited by their owner")

// Auditor records audit entries. Implemented by audit.Sink.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo  Repository
	audit Auditor
}

func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, audit: auditor}
}

// Get returns the principal's profile, or a defaults-only profile when none
// has been saved yet.
func (s *Service) Get(ctx context.Context, principalID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByPrincipal(ctx, principalID)
	if errors.Is(err, ErrNotFound) {
		p = &Profile{PrincipalID: principalID}
		p.defaults()
		return p, nil
	}
	return p, err
}

// Upsert saves the profile. Members may only touch their own; owners and
// admins may edit anyone's.
func (s *Service) Upsert(ctx context.Context, p *Profile) error {
	if p.PrincipalID == uuid.Nil {
		return fmt.Errorf("principal_id is required")
	}
	a := tenant.CurrentAccess(ctx)
	if a == nil {
		return ErrNotSelf
	}
	if a.PrincipalID != p.PrincipalID && a.Role != tenant.RoleOwner && a.Role != tenant.RoleAdmin {
		return ErrNotSelf
	}
	if p.DefaultAppointmentMinutes < 0 || p.MaxDailyAppointments < 0 {
		return fmt.Errorf("scheduling preferences cannot be negative")
	}
	p.defaults()

	if err := s.repo.Upsert(ctx, p); err != nil {
		return err
	}
	s.record(ctx, p)
	return nil
}

func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	return s.repo.List(ctx)
}

func (s *Service) record(ctx context.Context, p *Profile) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Action: audit.ActionUpdate, ResourceType: "profile", ResourceID: &p.ID}
	e.NewValues, _ = json.Marshal(p)
	s.audit.Record(ctx, e)
}
