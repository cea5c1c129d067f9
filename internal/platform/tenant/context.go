package tenant

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	slugKey   contextKey = "tenant_slug"
	accessKey contextKey = "tenant_access"
)

// Access is the membership snapshot attached to a validated tenant request.
// Permissions holds the effective permission set after role defaults and
// per-membership overrides are merged.
type Access struct {
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
	Role        string
	Permissions map[string]bool
}

// Can reports whether the membership grants the named permission.
func (a *Access) Can(permission string) bool {
	if a == nil {
		return false
	}
	return a.Permissions[permission]
}

// AccessValidator checks that a principal holds an active membership in an
// active tenant. It reads only the shared namespace, so it is safe to call
// before routing. Implemented by the directory service.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, principalID uuid.UUID, slug string) (*Access, error)
}

// WithCurrent attaches the resolved tenant slug and membership snapshot to
// the request context. Only the tenant middleware calls this; the values
// live exactly as long as the request.
func WithCurrent(ctx context.Context, slug string, access *Access) context.Context {
	ctx = context.WithValue(ctx, slugKey, slug)
	return context.WithValue(ctx, accessKey, access)
}

// CurrentSlug returns the tenant slug for the request, or "" on public paths.
func CurrentSlug(ctx context.Context) string {
	s, _ := ctx.Value(slugKey).(string)
	return s
}

// CurrentAccess returns the validated membership snapshot, or nil on public
// paths.
func CurrentAccess(ctx context.Context) *Access {
	a, _ := ctx.Value(accessKey).(*Access)
	return a
}

// CurrentPrincipalID returns the principal attached to the validated tenant
// request, or uuid.Nil.
func CurrentPrincipalID(ctx context.Context) uuid.UUID {
	if a := CurrentAccess(ctx); a != nil {
		return a.PrincipalID
	}
	return uuid.Nil
}
