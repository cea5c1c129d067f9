package route

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for routes and their stops.
type Repository interface {
	Create(ctx context.Context, r *Route) error
	GetByID(ctx context.Context, id int64) (*Route, error)
	GetByClinicianAndDate(ctx context.Context, clinicianID uuid.UUID, date time.Time) (*Route, error)
	Update(ctx context.Context, r *Route) error
	Delete(ctx context.Context, id int64) error
	ListByClinician(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*Route, error)
	ListByDate(ctx context.Context, date time.Time) ([]*Route, error)

	// ReplaceStops drops the route's existing stops and inserts the given
	// ones in order.
	ReplaceStops(ctx context.Context, routeID int64, stops []*Stop) error
	GetStop(ctx context.Context, routeID, stopID int64) (*Stop, error)
	UpdateStop(ctx context.Context, s *Stop) error
}
