package message

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/audit"
)

// Gateway hands a message to a delivery provider. The provider is expected
// to accept or reject synchronously; delivery receipts arrive later through
// ConfirmDelivery.
type Gateway interface {
	Deliver(ctx context.Context, m *Message) error
}

// LogGateway is the built-in gateway: it logs the message and accepts it.
// Real SMS/call providers replace it behind the same interface.
type LogGateway struct {
	log zerolog.Logger
}

func NewLogGateway(log zerolog.Logger) *LogGateway {
	return &LogGateway{log: log}
}

func (g *LogGateway) Deliver(_ context.Context, m *Message) error {
	g.log.Info().
		Int64("message_id", m.ID).
		Str("type", m.Type).
		Msg("message handed to gateway")
	return nil
}

// Auditor records audit entries. Implemented by audit.Sink.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo      Repository
	templates TemplateRepository
	gateway   Gateway
	audit     Auditor

	now func() time.Time
}

func NewService(repo Repository, templates TemplateRepository, gateway Gateway, auditor Auditor) *Service {
	return &Service{
		repo:      repo,
		templates: templates,
		gateway:   gateway,
		audit:     auditor,
		now:       time.Now,
	}
}

// Send records a message and hands it to the gateway. A future ScheduledAt
// leaves it pending for DispatchDue to pick up later.
func (s *Service) Send(ctx context.Context, m *Message) error {
	if err := s.prepare(ctx, m); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}
	s.record(ctx, audit.ActionCreate, "message", m.ID, m)

	if m.ScheduledAt != nil && m.ScheduledAt.After(s.now()) {
		return nil
	}
	return s.dispatch(ctx, m)
}

// SendBulk records one message per internal recipient. Messages that fail
// at the gateway are marked failed without aborting the rest.
func (s *Service) SendBulk(ctx context.Context, m *Message, recipients []uuid.UUID) ([]*Message, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	var sent []*Message
	for _, id := range recipients {
		rid := id
		cp := *m
		cp.RecipientID = &rid
		cp.RecipientPhone = nil
		if err := s.Send(ctx, &cp); err != nil {
			return sent, fmt.Errorf("send to %s after %d messages: %w", rid, len(sent), err)
		}
		sent = append(sent, &cp)
	}
	return sent, nil
}

func (s *Service) prepare(ctx context.Context, m *Message) error {
	if m.SenderID == uuid.Nil {
		return fmt.Errorf("sender is required")
	}
	if m.RecipientID == nil && m.RecipientPhone == nil {
		return fmt.Errorf("either recipient_id or recipient_phone is required")
	}
	if m.Type == "" {
		m.Type = TypeSMS
	}
	if !validType(m.Type) {
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if m.ScheduledAt != nil && !m.ScheduledAt.After(s.now()) {
		return fmt.Errorf("scheduled time must be in the future")
	}

	if m.Content == "" && m.TemplateID != nil {
		t, err := s.templates.GetByID(ctx, *m.TemplateID)
		if err != nil {
			return err
		}
		if !t.Active {
			return fmt.Errorf("template %q is inactive", t.Name)
		}
		m.Content = t.Content
	}
	if m.Content == "" {
		return fmt.Errorf("content is required")
	}

	m.Status = StatusPending
	m.SentAt = nil
	m.FailureReason = nil
	return nil
}

// dispatch hands one pending message to the gateway and persists the
// outcome. A gateway rejection marks the message failed, not an error to
// the caller.
func (s *Service) dispatch(ctx context.Context, m *Message) error {
	if err := s.gateway.Deliver(ctx, m); err != nil {
		reason := err.Error()
		m.Status = StatusFailed
		m.FailureReason = &reason
		return s.repo.UpdateStatus(ctx, m.ID, StatusFailed, nil, &reason)
	}
	sentAt := s.now().UTC()
	m.Status = StatusSent
	m.SentAt = &sentAt
	return s.repo.UpdateStatus(ctx, m.ID, StatusSent, &sentAt, nil)
}

// DispatchDue sends every pending message whose scheduled time has passed.
// It returns how many messages were handed to the gateway.
func (s *Service) DispatchDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, m := range due {
		if err := s.dispatch(ctx, m); err != nil {
			return dispatched, err
		}
		if m.Status == StatusSent {
			dispatched++
		}
	}
	return dispatched, nil
}

// ConfirmDelivery applies a delivery receipt to a sent message.
func (s *Service) ConfirmDelivery(ctx context.Context, id int64, delivered bool, reason string) (*Message, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusSent {
		return nil, fmt.Errorf("cannot confirm delivery for message in status %q", m.Status)
	}

	status := StatusDelivered
	var failureReason *string
	if !delivered {
		status = StatusFailed
		if reason != "" {
			failureReason = &reason
		}
	}
	if err := s.repo.UpdateStatus(ctx, id, status, nil, failureReason); err != nil {
		return nil, err
	}
	m.Status = status
	m.FailureReason = failureReason
	return m, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Message, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]*Message, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	if t.Name == "" || t.Content == "" {
		return fmt.Errorf("template name and content are required")
	}
	t.Active = true
	if err := s.templates.Create(ctx, t); err != nil {
		return err
	}
	s.record(ctx, audit.ActionCreate, "message_template", t.ID, t)
	return nil
}

func (s *Service) UpdateTemplate(ctx context.Context, t *Template) error {
	if t.Name == "" || t.Content == "" {
		return fmt.Errorf("template name and content are required")
	}
	if err := s.templates.Update(ctx, t); err != nil {
		return err
	}
	s.record(ctx, audit.ActionUpdate, "message_template", t.ID, t)
	return nil
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]*Template, error) {
	return s.templates.List(ctx, activeOnly)
}

func (s *Service) record(ctx context.Context, action, resourceType string, id int64, after interface{}) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Action: action, ResourceType: resourceType, ResourceID: &id}
	if after != nil {
		e.NewValues, _ = json.Marshal(after)
	}
	s.audit.Record(ctx, e)
}
