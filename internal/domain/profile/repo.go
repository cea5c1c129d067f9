package profile

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for profiles.
type Repository interface {
	GetByPrincipal(ctx context.Context, principalID uuid.UUID) (*Profile, error)
	// Upsert inserts the profile or updates the existing row for the same
	// principal.
	Upsert(ctx context.Context, p *Profile) error
	List(ctx context.Context) ([]*Profile, error)
}
