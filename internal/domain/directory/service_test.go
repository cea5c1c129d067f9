package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/auth"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// -- mocks --

type fakeTenantRepo struct {
	byID map[uuid.UUID]*Tenant
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{byID: make(map[uuid.UUID]*Tenant)}
}

func (r *fakeTenantRepo) Create(_ context.Context, t *Tenant) error {
	for _, existing := range r.byID {
		if existing.Slug == t.Slug {
			return ErrSlugTaken
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeTenantRepo) GetByID(_ context.Context, id uuid.UUID) (*Tenant, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTenantRepo) GetBySlug(_ context.Context, slug string) (*Tenant, error) {
	for _, t := range r.byID {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (r *fakeTenantRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, t := range r.byID {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTenantRepo) Update(_ context.Context, t *Tenant) error {
	if _, ok := r.byID[t.ID]; !ok {
		return tenant.ErrTenantNotFound
	}
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeTenantRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	t, ok := r.byID[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.Active = active
	return nil
}

func (r *fakeTenantRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeTenantRepo) List(_ context.Context, limit, offset int) ([]*Tenant, int, error) {
	var out []*Tenant
	for _, t := range r.byID {
		cp := *t
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type fakePrincipalRepo struct {
	byID map[uuid.UUID]*Principal
}

func newFakePrincipalRepo() *fakePrincipalRepo {
	return &fakePrincipalRepo{byID: make(map[uuid.UUID]*Principal)}
}

func (r *fakePrincipalRepo) Create(_ context.Context, p *Principal) error {
	for _, existing := range r.byID {
		if existing.Username == p.Username {
			return ErrUsernameTaken
		}
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *fakePrincipalRepo) GetByID(_ context.Context, id uuid.UUID) (*Principal, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePrincipalRepo) GetByUsername(_ context.Context, username string) (*Principal, error) {
	for _, p := range r.byID {
		if p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPrincipalNotFound
}

func (r *fakePrincipalRepo) GetByEmail(_ context.Context, email string) (*Principal, error) {
	for _, p := range r.byID {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPrincipalNotFound
}

func (r *fakePrincipalRepo) Update(_ context.Context, p *Principal) error {
	if _, ok := r.byID[p.ID]; !ok {
		return ErrPrincipalNotFound
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *fakePrincipalRepo) RecordLoginFailure(_ context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.FailedLoginAttempts = attempts
	p.LockedUntil = lockedUntil
	return nil
}

func (r *fakePrincipalRepo) RecordLoginSuccess(_ context.Context, id uuid.UUID) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.FailedLoginAttempts = 0
	p.LockedUntil = nil
	return nil
}

type fakeMembershipRepo struct {
	byID map[uuid.UUID]*Membership
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{byID: make(map[uuid.UUID]*Membership)}
}

func (r *fakeMembershipRepo) Create(_ context.Context, m *Membership) error {
	for _, existing := range r.byID {
		if existing.TenantID == m.TenantID && existing.PrincipalID == m.PrincipalID && existing.Active {
			return ErrMembershipExists
		}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	r.byID[m.ID] = &cp
	return nil
}

func (r *fakeMembershipRepo) GetActive(_ context.Context, tenantID, principalID uuid.UUID) (*Membership, error) {
	for _, m := range r.byID {
		if m.TenantID == tenantID && m.PrincipalID == principalID && m.Active {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrMembershipNotFound
}

func (r *fakeMembershipRepo) ListByTenant(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	var out []*Membership
	for _, m := range r.byID {
		if m.TenantID == tenantID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *fakeMembershipRepo) ListByPrincipal(_ context.Context, principalID uuid.UUID) ([]*Membership, error) {
	var out []*Membership
	for _, m := range r.byID {
		if m.PrincipalID == principalID && m.Active {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) Update(_ context.Context, m *Membership) error {
	if _, ok := r.byID[m.ID]; !ok {
		return ErrMembershipNotFound
	}
	cp := *m
	r.byID[m.ID] = &cp
	return nil
}

func (r *fakeMembershipRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m, ok := r.byID[id]
	if !ok {
		return ErrMembershipNotFound
	}
	m.Active = active
	return nil
}

func (r *fakeMembershipRepo) TouchLastAccess(_ context.Context, id uuid.UUID) error {
	return nil
}

type fakeProvisioner struct {
	provisionErr  error
	provisioned   []string
	deprovisioned []string
}

func (p *fakeProvisioner) Provision(_ context.Context, slug string) error {
	if p.provisionErr != nil {
		return p.provisionErr
	}
	p.provisioned = append(p.provisioned, slug)
	return nil
}

func (p *fakeProvisioner) Deprovision(_ context.Context, slug string) error {
	p.deprovisioned = append(p.deprovisioned, slug)
	return nil
}

type fixture struct {
	svc         *Service
	tenants     *fakeTenantRepo
	principals  *fakePrincipalRepo
	memberships *fakeMembershipRepo
	provisioner *fakeProvisioner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tenants:     newFakeTenantRepo(),
		principals:  newFakePrincipalRepo(),
		memberships: newFakeMembershipRepo(),
		provisioner: &fakeProvisioner{},
	}
	issuer := auth.NewTokenIssuer([]byte("test-secret-test-secret-test-secret"), "test", time.Hour)
	f.svc = NewService(f.tenants, f.principals, f.memberships, f.provisioner, issuer,
		LockoutPolicy{MaxAttempts: 3, Duration: 15 * time.Minute}, zerolog.Nop())
	return f
}

func (f *fixture) addPrincipal(t *testing.T, username, password string) *Principal {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	p := &Principal{Username: username, Email: username + "@example.com", PasswordHash: hash, Active: true}
	if err := f.principals.Create(context.Background(), p); err != nil {
		t.Fatalf("create principal: %v", err)
	}
	return p
}

func (f *fixture) addTenant(t *testing.T, slug string, active bool) *Tenant {
	t.Helper()
	tn := &Tenant{Slug: slug, Name: slug, Timezone: "UTC", Plan: "standard", Active: active}
	if err := f.tenants.Create(context.Background(), tn); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tn
}

func (f *fixture) addMembership(t *testing.T, tenantID, principalID uuid.UUID, role string) *Membership {
	t.Helper()
	m := &Membership{TenantID: tenantID, PrincipalID: principalID, Role: role, Active: true}
	if err := f.memberships.Create(context.Background(), m); err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return m
}

// -- tenant lifecycle --

func TestCreateTenant_GeneratesSlugFromName(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal(t, "alice", "password123")

	created, err := f.svc.CreateTenant(context.Background(), "Demo Clinic", "", owner.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Slug != "demo-clinic" {
		t.Errorf("expected slug demo-clinic, got %s", created.Slug)
	}
	if len(f.provisioner.provisioned) != 1 || f.provisioner.provisioned[0] != "demo-clinic" {
		t.Errorf("expected schema demo-clinic to be provisioned, got %v", f.provisioner.provisioned)
	}

	m, err := f.memberships.GetActive(context.Background(), created.ID, owner.ID)
	if err != nil {
		t.Fatalf("expected owner membership: %v", err)
	}
	if m.Role != tenant.RoleOwner {
		t.Errorf("expected owner role, got %s", m.Role)
	}
}

func TestCreateTenant_DisambiguatesTakenSlug(t *testing.T) {
	f := newFixture(t)
	f.addTenant(t, "demo-clinic", true)

	created, err := f.svc.CreateTenant(context.Background(), "Demo Clinic", "", uuid.Nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Slug != "demo-clinic-1" {
		t.Errorf("expected slug demo-clinic-1, got %s", created.Slug)
	}
}

func TestCreateTenant_RejectsInvalidExplicitSlug(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateTenant(context.Background(), "Demo", "Bad Slug!", uuid.Nil)
	if !errors.Is(err, tenant.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if len(f.provisioner.provisioned) != 0 {
		t.Error("nothing should be provisioned for an invalid slug")
	}
}

func TestCreateTenant_ExplicitSlugTaken(t *testing.T) {
	f := newFixture(t)
	f.addTenant(t, "demo-clinic", true)

	_, err := f.svc.CreateTenant(context.Background(), "Demo Clinic", "demo-clinic", uuid.Nil)
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
	if len(f.provisioner.provisioned) != 0 {
		t.Error("nothing should be provisioned when the slug is taken")
	}
}

func TestCreateTenant_RemovesRecordWhenProvisioningFails(t *testing.T) {
	f := newFixture(t)
	f.provisioner.provisionErr = &tenant.ProvisionError{Slug: "demo", Stage: "tables", Err: fmt.Errorf("boom")}

	_, err := f.svc.CreateTenant(context.Background(), "Demo", "", uuid.Nil)
	if err == nil {
		t.Fatal("expected provisioning error")
	}

	exists, _ := f.tenants.SlugExists(context.Background(), "demo")
	if exists {
		t.Error("tenant record should be removed after provisioning failure")
	}
}

func TestDropTenant_DeprovisionsAndDeletes(t *testing.T) {
	f := newFixture(t)
	tn := f.addTenant(t, "demo-clinic", true)

	if err := f.svc.DropTenant(context.Background(), tn.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.provisioner.deprovisioned) != 1 || f.provisioner.deprovisioned[0] != "demo-clinic" {
		t.Errorf("expected schema drop for demo-clinic, got %v", f.provisioner.deprovisioned)
	}
	if _, err := f.tenants.GetByID(context.Background(), tn.ID); !errors.Is(err, tenant.ErrTenantNotFound) {
		t.Errorf("expected record gone, got %v", err)
	}
}

// The slug-based lifecycle operations must keep working on a deactivated
// tenant: ValidateAccess rejects inactive tenants, so without this path a
// deactivation would be permanent.
func TestReactivateTenantBySlug_WorksOnInactiveTenant(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	tn := f.addTenant(t, "demo-clinic", false)
	f.addMembership(t, tn.ID, p.ID, tenant.RoleOwner)

	if _, err := f.svc.ValidateAccess(context.Background(), p.ID, "demo-clinic"); !errors.Is(err, tenant.ErrTenantInactive) {
		t.Fatalf("expected the routed surface to reject the inactive tenant, got %v", err)
	}

	if err := f.svc.ReactivateTenantBySlug(context.Background(), p.ID, "demo-clinic"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	access, err := f.svc.ValidateAccess(context.Background(), p.ID, "demo-clinic")
	if err != nil {
		t.Fatalf("validate after reactivation: %v", err)
	}
	if access.Role != tenant.RoleOwner {
		t.Errorf("expected owner access, got %s", access.Role)
	}
}

func TestReactivateTenantBySlug_DeniedForNonOwner(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	tn := f.addTenant(t, "demo-clinic", false)
	f.addMembership(t, tn.ID, p.ID, tenant.RoleAdmin)

	if err := f.svc.ReactivateTenantBySlug(context.Background(), p.ID, "demo-clinic"); !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for admin, got %v", err)
	}
	got, err := f.tenants.GetByID(context.Background(), tn.ID)
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if got.Active {
		t.Error("tenant should remain inactive after a denied reactivation")
	}
}

func TestDropTenantBySlug_WorksOnInactiveTenant(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	tn := f.addTenant(t, "demo-clinic", false)
	f.addMembership(t, tn.ID, p.ID, tenant.RoleOwner)

	if err := f.svc.DropTenantBySlug(context.Background(), p.ID, "demo-clinic"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.provisioner.deprovisioned) != 1 || f.provisioner.deprovisioned[0] != "demo-clinic" {
		t.Errorf("expected schema drop for demo-clinic, got %v", f.provisioner.deprovisioned)
	}
	if _, err := f.tenants.GetByID(context.Background(), tn.ID); !errors.Is(err, tenant.ErrTenantNotFound) {
		t.Errorf("expected record gone, got %v", err)
	}
}

func TestDropTenantBySlug_DeniedWithoutMembership(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	f.addTenant(t, "demo-clinic", true)

	if err := f.svc.DropTenantBySlug(context.Background(), p.ID, "demo-clinic"); !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

// -- access validation --

func TestValidateAccess_Success(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	tn := f.addTenant(t, "demo-clinic", true)
	f.addMembership(t, tn.ID, p.ID, tenant.RoleManager)

	access, err := f.svc.ValidateAccess(context.Background(), p.ID, "demo-clinic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if access.Role != tenant.RoleManager {
		t.Errorf("expected manager role, got %s", access.Role)
	}
	if !access.Can(tenant.PermManagePatients) {
		t.Error("manager should manage patients")
	}
	if access.Can(tenant.PermManageBilling) {
		t.Error("manager should not manage billing")
	}
}

func TestValidateAccess_UnknownTenant(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")

	_, err := f.svc.ValidateAccess(context.Background(), p.ID, "ghost")
	if !errors.Is(err, tenant.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestValidateAccess_InactiveTenant(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	tn := f.addTenant(t, "demo-clinic", false)
	f.addMembership(t, tn.ID, p.ID, tenant.RoleOwner)

	_, err := f.svc.ValidateAccess(context.Background(), p.ID, "demo-clinic")
	if !errors.Is(err, tenant.ErrTenantInactive) {
		t.Fatalf("expected ErrTenantInactive, got %v", err)
	}
}

func TestValidateAccess_NoMembership(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	f.addTenant(t, "demo-clinic", true)

	_, err := f.svc.ValidateAccess(context.Background(), p.ID, "demo-clinic")
	if !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestValidateAccess_RevokedMembership(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	tn := f.addTenant(t, "demo-clinic", true)
	m := f.addMembership(t, tn.ID, p.ID, tenant.RoleMember)
	if err := f.memberships.SetActive(context.Background(), m.ID, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err := f.svc.ValidateAccess(context.Background(), p.ID, "demo-clinic")
	if !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied after revocation, got %v", err)
	}
}

// -- registration and login --

func TestRegister_WithNewTenant(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Register(context.Background(), RegisterInput{
		Username:   "alice",
		Email:      "alice@example.com",
		Password:   "password123",
		TenantName: "Demo Clinic",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Token == "" {
		t.Error("expected a token")
	}
	if res.Tenant == nil || res.Tenant.Slug != "demo-clinic" {
		t.Fatalf("expected demo-clinic tenant, got %+v", res.Tenant)
	}
	if res.Role != tenant.RoleOwner {
		t.Errorf("registrant should own the new tenant, got role %s", res.Role)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "alice", "password123")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password123",
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLogin_SingleMembershipPicksTenant(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	tn := f.addTenant(t, "demo-clinic", true)
	f.addMembership(t, tn.ID, p.ID, tenant.RoleAdmin)

	res, err := f.svc.Login(context.Background(), "alice", "password123", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tenant == nil || res.Tenant.Slug != "demo-clinic" {
		t.Fatalf("expected demo-clinic selected, got %+v", res.Tenant)
	}
	if res.Role != tenant.RoleAdmin {
		t.Errorf("expected admin role, got %s", res.Role)
	}
}

func TestLogin_MultipleMembershipsNeedExplicitTenant(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	t1 := f.addTenant(t, "clinic-a", true)
	t2 := f.addTenant(t, "clinic-b", true)
	f.addMembership(t, t1.ID, p.ID, tenant.RoleOwner)
	f.addMembership(t, t2.ID, p.ID, tenant.RoleMember)

	res, err := f.svc.Login(context.Background(), "alice", "password123", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tenant != nil {
		t.Errorf("expected no tenant selected, got %+v", res.Tenant)
	}
	if res.Token == "" {
		t.Error("expected a tenant-less token")
	}

	res, err = f.svc.Login(context.Background(), "alice", "password123", "clinic-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tenant == nil || res.Tenant.Slug != "clinic-b" {
		t.Fatalf("expected clinic-b, got %+v", res.Tenant)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "alice", "password123")

	_, err := f.svc.Login(context.Background(), "alice", "wrong-password", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownUserLooksLikeWrongPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "ghost", "password123", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "alice", "password123")

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Login(context.Background(), "alice", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Even the correct password is refused while locked.
	_, err := f.svc.Login(context.Background(), "alice", "password123", "")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestLogin_LockExpires(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal(t, "alice", "password123")

	for i := 0; i < 3; i++ {
		f.svc.Login(context.Background(), "alice", "wrong", "")
	}

	// Move the clock past the lockout window.
	f.svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	res, err := f.svc.Login(context.Background(), "alice", "password123", "")
	if err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
	if res.Token == "" {
		t.Error("expected a token")
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	p.Active = false
	if err := f.principals.Update(context.Background(), p); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := f.svc.Login(context.Background(), "alice", "password123", "")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

// -- switch tenant --

func TestSwitchTenant_Success(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	t1 := f.addTenant(t, "clinic-a", true)
	t2 := f.addTenant(t, "clinic-b", true)
	f.addMembership(t, t1.ID, p.ID, tenant.RoleOwner)
	f.addMembership(t, t2.ID, p.ID, tenant.RoleScheduler)

	res, err := f.svc.SwitchTenant(context.Background(), p.ID, "clinic-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tenant.Slug != "clinic-b" || res.Role != tenant.RoleScheduler {
		t.Errorf("expected scheduler in clinic-b, got %s in %s", res.Role, res.Tenant.Slug)
	}
}

func TestSwitchTenant_DeniedWithoutMembership(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	f.addTenant(t, "clinic-b", true)

	_, err := f.svc.SwitchTenant(context.Background(), p.ID, "clinic-b")
	if !errors.Is(err, tenant.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

// -- memberships --

func TestInvite_DuplicateActiveMembership(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "bob", "password123")
	tn := f.addTenant(t, "demo-clinic", true)
	f.addMembership(t, tn.ID, p.ID, tenant.RoleMember)

	_, err := f.svc.Invite(context.Background(), tn.ID, p.ID, tenant.RoleAdmin, nil)
	if !errors.Is(err, ErrMembershipExists) {
		t.Fatalf("expected ErrMembershipExists, got %v", err)
	}
}

func TestInvite_RejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "bob", "password123")
	tn := f.addTenant(t, "demo-clinic", true)

	_, err := f.svc.Invite(context.Background(), tn.ID, p.ID, "superuser", nil)
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestInvite_OverridesApply(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "bob", "password123")
	tn := f.addTenant(t, "demo-clinic", true)

	m, err := f.svc.Invite(context.Background(), tn.ID, p.ID, tenant.RoleMember,
		map[string]bool{tenant.PermViewReports: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.HasPermission(tenant.PermViewReports) {
		t.Error("override should grant report access to a member")
	}
}

func TestListMyTenants(t *testing.T) {
	f := newFixture(t)
	p := f.addPrincipal(t, "alice", "password123")
	t1 := f.addTenant(t, "clinic-a", true)
	t2 := f.addTenant(t, "clinic-b", true)
	f.addMembership(t, t1.ID, p.ID, tenant.RoleOwner)
	m2 := f.addMembership(t, t2.ID, p.ID, tenant.RoleMember)
	if err := f.memberships.SetActive(context.Background(), m2.ID, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	list, err := f.svc.ListMyTenants(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Tenant.Slug != "clinic-a" {
		t.Fatalf("expected only clinic-a, got %+v", list)
	}
}
