package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TenantRepository defines the persistence interface for tenant records.
type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, t *Tenant) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, int, error)
}

// PrincipalRepository defines the persistence interface for principals.
type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetByUsername(ctx context.Context, username string) (*Principal, error)
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	Update(ctx context.Context, p *Principal) error
	RecordLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id uuid.UUID) error
}

// MembershipRepository defines the persistence interface for memberships.
type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	GetActive(ctx context.Context, tenantID, principalID uuid.UUID) (*Membership, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Membership, int, error)
	ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*Membership, error)
	Update(ctx context.Context, m *Membership) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	TouchLastAccess(ctx context.Context, id uuid.UUID) error
}
