package patient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/therapyhub/therapyhub/internal/platform/audit"
)

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

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("patient first and last name are required")
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !validStatus(p.Status) {
		return fmt.Errorf("unknown patient status %q", p.Status)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.record(ctx, audit.ActionCreate, p.ID, nil, p)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("patient first and last name are required")
	}
	if !validStatus(p.Status) {
		return fmt.Errorf("unknown patient status %q", p.Status)
	}
	old, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.record(ctx, audit.ActionUpdate, p.ID, old, p)
	return nil
}

// Discharge marks the patient discharged. Appointments and notes stay
// untouched for the record.
func (s *Service) Discharge(ctx context.Context, id int64) error {
	old, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if old.Status == StatusDischarged {
		return nil
	}
	if err := s.repo.SetStatus(ctx, id, StatusDischarged); err != nil {
		return err
	}
	s.record(ctx, audit.ActionUpdate, id, old, nil)
	return nil
}

// RecordVisit bumps the completed-visit counter; delta is +1 when an
// appointment completes and -1 when a completed one is reopened.
func (s *Service) RecordVisit(ctx context.Context, id int64, delta int) error {
	return s.repo.AdjustCompletedVisits(ctx, id, delta)
}

func (s *Service) List(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) record(ctx context.Context, action string, id int64, before, after interface{}) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Action: action, ResourceType: "patient", ResourceID: &id}
	if before != nil {
		e.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		e.NewValues, _ = json.Marshal(after)
	}
	s.audit.Record(ctx, e)
}
