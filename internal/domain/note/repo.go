package note

import "context"

// Repository defines the persistence interface for notes.
type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id int64) (*Note, error)
	Update(ctx context.Context, n *Note) error
	Delete(ctx context.Context, id int64) error
	ListByAppointment(ctx context.Context, appointmentID int64) ([]*Note, error)
	// ListByPatient joins through the appointment table to collect every
	// note written for the patient's appointments.
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Note, int, error)
}

// TemplateRepository defines the persistence interface for note templates.
type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id int64) (*Template, error)
	Update(ctx context.Context, t *Template) error
	List(ctx context.Context, activeOnly bool) ([]*Template, error)
}
