package patient

import "context"

// Repository defines the persistence interface for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SetStatus(ctx context.Context, id int64, status string) error
	AdjustCompletedVisits(ctx context.Context, id int64, delta int) error
	List(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Patient, int, error)
}
