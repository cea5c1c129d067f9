package appointment

import "context"

// Repository defines the persistence interface for appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error)
}
