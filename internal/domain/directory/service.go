package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/auth"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// Provisioner creates and destroys tenant schemas. Implemented by
// tenant.Provisioner.
type Provisioner interface {
	Provision(ctx context.Context, slug string) error
	Deprovision(ctx context.Context, slug string) error
}

// LockoutPolicy controls login throttling.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// Service coordinates tenant lifecycle, authentication, and membership
// management over the shared schema.
type Service struct {
	tenants     TenantRepository
	principals  PrincipalRepository
	memberships MembershipRepository
	provisioner Provisioner
	issuer      *auth.TokenIssuer
	lockout     LockoutPolicy
	log         zerolog.Logger

	now func() time.Time
}

func NewService(
	tenants TenantRepository,
	principals PrincipalRepository,
	memberships MembershipRepository,
	provisioner Provisioner,
	issuer *auth.TokenIssuer,
	lockout LockoutPolicy,
	log zerolog.Logger,
) *Service {
	if lockout.MaxAttempts <= 0 {
		lockout.MaxAttempts = 5
	}
	if lockout.Duration <= 0 {
		lockout.Duration = 15 * time.Minute
	}
	return &Service{
		tenants:     tenants,
		principals:  principals,
		memberships: memberships,
		provisioner: provisioner,
		issuer:      issuer,
		lockout:     lockout,
		log:         log,
		now:         time.Now,
	}
}

// -- Tenant lifecycle --

// CreateTenant registers a tenant record, provisions its schema, and makes
// ownerID the owner. desiredSlug is optional; when empty the slug is derived
// from the name, disambiguated with a numeric suffix if taken.
func (s *Service) CreateTenant(ctx context.Context, name, desiredSlug string, ownerID uuid.UUID) (*Tenant, error) {
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}

	slug := desiredSlug
	if slug == "" {
		base := tenant.GenerateSlug(name)
		unique, err := tenant.UniqueSlug(ctx, base, s.tenants.SlugExists)
		if err != nil {
			return nil, fmt.Errorf("derive slug for %q: %w", name, err)
		}
		slug = unique
	} else if !tenant.ValidSlug(slug) {
		return nil, tenant.ErrInvalidIdentifier
	}

	t := &Tenant{
		Slug:     slug,
		Name:     name,
		Timezone: "UTC",
		Plan:     "standard",
		Active:   true,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, err
	}

	// Schema provisioning happens after the record insert; if it fails the
	// record is removed so a retry can reuse the slug.
	if err := s.provisioner.Provision(ctx, slug); err != nil {
		if delErr := s.tenants.Delete(ctx, t.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("tenant_slug", slug).
				Msg("failed to remove tenant record after provisioning failure")
		}
		return nil, err
	}

	if ownerID != uuid.Nil {
		now := s.now()
		m := &Membership{
			TenantID:    t.ID,
			PrincipalID: ownerID,
			Role:        tenant.RoleOwner,
			Active:      true,
			JoinedAt:    &now,
		}
		if err := s.memberships.Create(ctx, m); err != nil {
			s.log.Error().Err(err).Str("tenant_slug", slug).
				Msg("tenant provisioned but owner membership failed")
			return nil, err
		}
	}

	s.log.Info().Str("tenant_slug", slug).Str("tenant_id", t.ID.String()).Msg("tenant created")
	return t, nil
}

func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

func (s *Service) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return s.tenants.GetBySlug(ctx, slug)
}

func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	return s.tenants.List(ctx, limit, offset)
}

func (s *Service) UpdateTenant(ctx context.Context, t *Tenant) error {
	if t.Name == "" {
		return fmt.Errorf("tenant name is required")
	}
	return s.tenants.Update(ctx, t)
}

// DeactivateTenant marks the tenant inactive. Its schema and data stay in
// place; all routed requests fail with ErrTenantInactive until reactivated.
func (s *Service) DeactivateTenant(ctx context.Context, id uuid.UUID) error {
	return s.tenants.SetActive(ctx, id, false)
}

func (s *Service) ReactivateTenant(ctx context.Context, id uuid.UUID) error {
	return s.tenants.SetActive(ctx, id, true)
}

// DropTenant destroys the tenant schema and removes the directory record.
// This is irreversible; callers gate it behind owner-level confirmation.
func (s *Service) DropTenant(ctx context.Context, id uuid.UUID) error {
	t, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.provisioner.Deprovision(ctx, t.Slug); err != nil {
		return err
	}
	if err := s.tenants.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("tenant_slug", t.Slug).Msg("tenant dropped")
	return nil
}

// ownerTenantBySlug resolves the slug and requires an active owner
// membership. Unlike ValidateAccess it admits inactive tenants, so the
// lifecycle operations below stay reachable after deactivation.
func (s *Service) ownerTenantBySlug(ctx context.Context, principalID uuid.UUID, slug string) (*Tenant, error) {
	t, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	m, err := s.memberships.GetActive(ctx, t.ID, principalID)
	if err != nil {
		if err == ErrMembershipNotFound {
			return nil, tenant.ErrAccessDenied
		}
		return nil, err
	}
	if m.Role != tenant.RoleOwner {
		return nil, tenant.ErrAccessDenied
	}
	return t, nil
}

// ReactivateTenantBySlug flips a deactivated tenant back to active on
// behalf of one of its owners.
func (s *Service) ReactivateTenantBySlug(ctx context.Context, principalID uuid.UUID, slug string) error {
	t, err := s.ownerTenantBySlug(ctx, principalID, slug)
	if err != nil {
		return err
	}
	return s.ReactivateTenant(ctx, t.ID)
}

// DropTenantBySlug destroys the tenant on behalf of one of its owners,
// whether or not the tenant is still active.
func (s *Service) DropTenantBySlug(ctx context.Context, principalID uuid.UUID, slug string) error {
	t, err := s.ownerTenantBySlug(ctx, principalID, slug)
	if err != nil {
		return err
	}
	return s.DropTenant(ctx, t.ID)
}

// -- Access validation --

// ValidateAccess implements tenant.AccessValidator. It resolves the slug to
// a tenant record, checks the tenant is active, and requires an active
// membership for the principal. Reads only the public schema.
func (s *Service) ValidateAccess(ctx context.Context, principalID uuid.UUID, slug string) (*tenant.Access, error) {
	t, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, tenant.ErrTenantInactive
	}

	m, err := s.memberships.GetActive(ctx, t.ID, principalID)
	if err != nil {
		if err == ErrMembershipNotFound {
			return nil, tenant.ErrAccessDenied
		}
		return nil, err
	}

	if err := s.memberships.TouchLastAccess(ctx, m.ID); err != nil {
		s.log.Warn().Err(err).Str("tenant_slug", slug).Msg("failed to update membership last access")
	}

	return &tenant.Access{
		TenantID:    t.ID,
		PrincipalID: principalID,
		Role:        m.Role,
		Permissions: m.EffectivePermissions(),
	}, nil
}

// -- Registration and login --

// RegisterInput carries the register request. When TenantName is set a new
// tenant is provisioned with the registrant as owner.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	FullName   string
	TenantName string
	TenantSlug string
}

// AuthResult is returned by Login, Register, and SwitchTenant.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresIn int        `json:"expires_in"`
	Principal *Principal `json:"principal"`
	Tenant    *Tenant    `json:"tenant,omitempty"`
	Role      string     `json:"role,omitempty"`
}

// Register creates the principal and, when a tenant name is given, a tenant
// owned by the new principal.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if in.Username == "" || in.Email == "" {
		return nil, fmt.Errorf("username and email are required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	p := &Principal{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Active:       true,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}

	res := &AuthResult{Principal: p, ExpiresIn: int(s.issuer.TTL().Seconds())}

	if in.TenantName != "" {
		t, err := s.CreateTenant(ctx, in.TenantName, in.TenantSlug, p.ID)
		if err != nil {
			return nil, err
		}
		res.Tenant = t
		res.Role = tenant.RoleOwner

		token, err := s.issuer.Issue(p.ID, t.Slug, tenant.RoleOwner,
			tenant.EffectivePermissions(tenant.RoleOwner, nil))
		if err != nil {
			return nil, err
		}
		res.Token = token
		return res, nil
	}

	token, err := s.issuer.Issue(p.ID, "", "", nil)
	if err != nil {
		return nil, err
	}
	res.Token = token
	return res, nil
}

// Login checks credentials and issues a token. When the principal belongs
// to exactly one tenant (or tenantSlug names one) the token carries that
// tenant's claim; otherwise the caller picks via SwitchTenant.
func (s *Service) Login(ctx context.Context, username, password, tenantSlug string) (*AuthResult, error) {
	p, err := s.principals.GetByUsername(ctx, username)
	if err != nil {
		if err == ErrPrincipalNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if p.Locked(now) {
		return nil, ErrAccountLocked
	}
	if !p.Active {
		return nil, ErrAccountInactive
	}

	if !auth.CheckPassword(p.PasswordHash, password) {
		attempts := p.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= s.lockout.MaxAttempts {
			until := now.Add(s.lockout.Duration)
			lockedUntil = &until
			s.log.Warn().Str("username", username).Int("attempts", attempts).
				Msg("account locked after repeated login failures")
		}
		if recErr := s.principals.RecordLoginFailure(ctx, p.ID, attempts, lockedUntil); recErr != nil {
			s.log.Error().Err(recErr).Msg("failed to record login failure")
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.principals.RecordLoginSuccess(ctx, p.ID); err != nil {
		s.log.Error().Err(err).Msg("failed to reset login failure counter")
	}

	res := &AuthResult{Principal: p, ExpiresIn: int(s.issuer.TTL().Seconds())}

	memberships, err := s.memberships.ListByPrincipal(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var chosen *Membership
	switch {
	case tenantSlug != "":
		for _, m := range memberships {
			t, err := s.tenants.GetByID(ctx, m.TenantID)
			if err != nil {
				continue
			}
			if t.Slug == tenantSlug {
				chosen = m
				res.Tenant = t
				break
			}
		}
		if chosen == nil {
			return nil, tenant.ErrAccessDenied
		}
	case len(memberships) == 1:
		chosen = memberships[0]
		t, err := s.tenants.GetByID(ctx, chosen.TenantID)
		if err != nil {
			return nil, err
		}
		res.Tenant = t
	}

	if chosen != nil {
		res.Role = chosen.Role
		token, err := s.issuer.Issue(p.ID, res.Tenant.Slug, chosen.Role, chosen.EffectivePermissions())
		if err != nil {
			return nil, err
		}
		res.Token = token
		return res, nil
	}

	// No (or several) memberships: issue a tenant-less token the client
	// upgrades via SwitchTenant.
	token, err := s.issuer.Issue(p.ID, "", "", nil)
	if err != nil {
		return nil, err
	}
	res.Token = token
	return res, nil
}

// SwitchTenant re-issues a token scoped to another of the principal's
// tenants after re-checking the membership.
func (s *Service) SwitchTenant(ctx context.Context, principalID uuid.UUID, slug string) (*AuthResult, error) {
	p, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}

	access, err := s.ValidateAccess(ctx, principalID, slug)
	if err != nil {
		return nil, err
	}

	t, err := s.tenants.GetByID(ctx, access.TenantID)
	if err != nil {
		return nil, err
	}

	token, err := s.issuer.Issue(principalID, slug, access.Role, access.Permissions)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Token:     token,
		ExpiresIn: int(s.issuer.TTL().Seconds()),
		Principal: p,
		Tenant:    t,
		Role:      access.Role,
	}, nil
}

// -- Memberships --

// Invite adds a principal to a tenant with the given role. Overrides may
// grant or revoke individual permissions on top of the role defaults.
func (s *Service) Invite(ctx context.Context, tenantID, principalID uuid.UUID, role string, overrides map[string]bool) (*Membership, error) {
	if !tenant.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if _, err := s.principals.GetByID(ctx, principalID); err != nil {
		return nil, err
	}

	m := &Membership{
		TenantID:            tenantID,
		PrincipalID:         principalID,
		Role:                role,
		PermissionOverrides: overrides,
		Active:              true,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMembership changes a membership's role and overrides.
func (s *Service) UpdateMembership(ctx context.Context, m *Membership) error {
	if !tenant.ValidRole(m.Role) {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	return s.memberships.Update(ctx, m)
}

// RevokeMembership deactivates a membership without deleting its history.
func (s *Service) RevokeMembership(ctx context.Context, id uuid.UUID) error {
	return s.memberships.SetActive(ctx, id, false)
}

func (s *Service) ListMemberships(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	return s.memberships.ListByTenant(ctx, tenantID, limit, offset)
}

// ListMyTenants returns the tenants the principal can enter, paired with
// the membership granting access.
func (s *Service) ListMyTenants(ctx context.Context, principalID uuid.UUID) ([]*TenantMembership, error) {
	memberships, err := s.memberships.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	out := make([]*TenantMembership, 0, len(memberships))
	for _, m := range memberships {
		t, err := s.tenants.GetByID(ctx, m.TenantID)
		if err != nil {
			s.log.Warn().Err(err).Str("tenant_id", m.TenantID.String()).
				Msg("membership references missing tenant")
			continue
		}
		out = append(out, &TenantMembership{Tenant: t, Membership: m})
	}
	return out, nil
}
