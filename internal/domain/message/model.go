// Package message logs outbound patient communications. Delivery goes
// through a pluggable gateway; the built-in gateway only logs, real
// SMS/call providers plug in behind the same interface.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Message types.
const (
	TypeSMS  = "sms"
	TypeCall = "call"
)

// Delivery statuses. A message is pending until the gateway accepts it,
// then sent; delivery receipts move it to delivered or failed.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Message maps to the tenant-schema message table. Exactly one of
// RecipientID (an internal principal) or RecipientPhone is set.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	SenderID       uuid.UUID  `db:"sender_id" json:"sender_id"`
	RecipientID    *uuid.UUID `db:"recipient_id" json:"recipient_id,omitempty"`
	RecipientPhone *string    `db:"recipient_phone" json:"recipient_phone,omitempty"`
	Type           string     `db:"type" json:"type"`
	Content        string     `db:"content" json:"content"`
	Status         string     `db:"status" json:"status"`
	TemplateID     *int64     `db:"template_id" json:"template_id,omitempty"`
	ScheduledAt    *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt         *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	FailureReason  *string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Template is a reusable message body, typically appointment reminders.
type Template struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Content   string    `db:"content" json:"content"`
	Category  string    `db:"category" json:"category,omitempty"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	Type        string
	Status      string
	PrincipalID uuid.UUID // matches sender or internal recipient
	Since       time.Time
}

func validType(t string) bool {
	return t == TypeSMS || t == TypeCall
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusFailed:
		return true
	}
	return false
}
