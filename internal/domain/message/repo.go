package message

import (
	"context"
	"time"
)

// Repository defines the persistence interface for messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	UpdateStatus(ctx context.Context, id int64, status string, sentAt *time.Time, failureReason *string) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Message, int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Message, error)
}

// TemplateRepository defines the persistence interface for message templates.
type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id int64) (*Template, error)
	Update(ctx context.Context, t *Template) error
	List(ctx context.Context, activeOnly bool) ([]*Template, error)
}
