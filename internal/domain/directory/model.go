// Package directory owns the shared-schema records: tenants, principals,
// and the memberships joining them. Everything here lives in the public
// schema and is reachable without tenant routing.
package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// Tenant maps to the public.tenant table.
type Tenant struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Slug         string    `db:"slug" json:"slug"`
	Name         string    `db:"name" json:"name"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	Timezone     string    `db:"timezone" json:"timezone"`
	Plan         string    `db:"plan" json:"plan"`
	LogoURL      *string   `db:"logo_url" json:"logo_url,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Principal maps to the public.principal table. A principal is a login
// identity; tenant membership is modelled separately so one login can
// belong to several practices.
type Principal struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Username            string     `db:"username" json:"username"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FullName            string     `db:"full_name" json:"full_name"`
	Active              bool       `db:"active" json:"active"`
	EmailVerified       bool       `db:"email_verified" json:"email_verified"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"-"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Locked reports whether the principal is currently locked out.
func (p *Principal) Locked(now time.Time) bool {
	return p.LockedUntil != nil && now.Before(*p.LockedUntil)
}

// Membership maps to the public.membership table. At most one active
// membership may exist per (tenant, principal) pair.
type Membership struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	TenantID            uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	PrincipalID         uuid.UUID       `db:"principal_id" json:"principal_id"`
	Role                string          `db:"role" json:"role"`
	PermissionOverrides map[string]bool `db:"permission_overrides" json:"permission_overrides,omitempty"`
	Active              bool            `db:"active" json:"active"`
	InvitedAt           time.Time       `db:"invited_at" json:"invited_at"`
	JoinedAt            *time.Time      `db:"joined_at" json:"joined_at,omitempty"`
	LastAccessAt        *time.Time      `db:"last_access_at" json:"last_access_at,omitempty"`
}

// EffectivePermissions resolves the membership's permission set from role
// defaults plus its per-membership overrides.
func (m *Membership) EffectivePermissions() map[string]bool {
	return tenant.EffectivePermissions(m.Role, m.PermissionOverrides)
}

// HasPermission reports whether the membership grants the named permission.
func (m *Membership) HasPermission(permission string) bool {
	return m.EffectivePermissions()[permission]
}

// TenantMembership pairs a membership with its tenant for listing the
// practices a principal can enter.
type TenantMembership struct {
	Tenant     *Tenant     `json:"tenant"`
	Membership *Membership `json:"membership"`
}
