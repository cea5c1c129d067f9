package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

type fakeRepo struct {
	byPrincipal map[uuid.UUID]*Profile
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byPrincipal: make(map[uuid.UUID]*Profile), nextID: 1}
}

func (r *fakeRepo) GetByPrincipal(_ context.Context, principalID uuid.UUID) (*Profile, error) {
	p, ok := r.byPrincipal[principalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) Upsert(_ context.Context, p *Profile) error {
	if existing, ok := r.byPrincipal[p.PrincipalID]; ok {
		p.ID = existing.ID
	} else {
		p.ID = r.nextID
		r.nextID++
	}
	cp := *p
	r.byPrincipal[p.PrincipalID] = &cp
	return nil
}

func (r *fakeRepo) List(_ context.Context) ([]*Profile, error) {
	var out []*Profile
	for _, p := range r.byPrincipal {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func ctxAs(principal uuid.UUID, role string) context.Context {
	return tenant.WithCurrent(context.Background(), "demo-clinic", &tenant.Access{
		TenantID:    uuid.New(),
		PrincipalID: principal,
		Role:        role,
		Permissions: tenant.EffectivePermissions(role, nil),
	})
}

func TestGet_ReturnsDefaultsWhenUnsaved(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	principal := uuid.New()

	p, err := svc.Get(context.Background(), principal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PrincipalID != principal {
		t.Errorf("wrong principal: %s", p.PrincipalID)
	}
	if p.DefaultAppointmentMinutes != 60 || p.MaxDailyAppointments != 8 {
		t.Errorf("expected scheduling defaults, got %d/%d",
			p.DefaultAppointmentMinutes, p.MaxDailyAppointments)
	}
	if p.Theme != "light" || p.Language != "en" {
		t.Errorf("expected display defaults, got %s/%s", p.Theme, p.Language)
	}
}

func TestUpsert_OwnProfile(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	principal := uuid.New()

	title := "PT"
	p := &Profile{PrincipalID: principal, Title: &title, SMSNotifications: true}
	if err := svc.Upsert(ctxAs(principal, tenant.RoleMember), p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := svc.Get(context.Background(), principal)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title == nil || *got.Title != "PT" {
		t.Errorf("title not saved: %v", got.Title)
	}
	if got.DefaultAppointmentMinutes != 60 {
		t.Errorf("defaults not applied on save: %d", got.DefaultAppointmentMinutes)
	}
}

func TestUpsert_OthersProfileDenied(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	owner := uuid.New()

	p := &Profile{PrincipalID: owner}
	err := svc.Upsert(ctxAs(uuid.New(), tenant.RoleMember), p)
	if !errors.Is(err, ErrNotSelf) {
		t.Fatalf("expected ErrNotSelf, got %v", err)
	}

	if err := svc.Upsert(ctxAs(uuid.New(), tenant.RoleAdmin), p); err != nil {
		t.Fatalf("admin should edit anyone's profile: %v", err)
	}
}

func TestUpsert_RejectsNegativePreferences(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	principal := uuid.New()

	p := &Profile{PrincipalID: principal, MaxDailyAppointments: -1}
	if err := svc.Upsert(ctxAs(principal, tenant.RoleMember), p); err == nil {
		t.Fatal("expected error for negative preference")
	}
}

func TestLicensed(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	num := "PT-12345"
	expired := now.AddDate(-1, 0, 0)
	valid := now.AddDate(1, 0, 0)

	tests := []struct {
		name string
		p    Profile
		want bool
	}{
		{"no license", Profile{}, false},
		{"no expiry", Profile{LicenseNumber: &num}, true},
		{"valid", Profile{LicenseNumber: &num, LicenseExpiry: &valid}, true},
		{"expired", Profile{LicenseNumber: &num, LicenseExpiry: &expired}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Licensed(now); got != tt.want {
				t.Errorf("Licensed() = %v, want %v", got, tt.want)
			}
		})
	}
}
