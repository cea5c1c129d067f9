package note

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/therapyhub/therapyhub/internal/platform/audit"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// ErrNotAuthor is returned when someone other than the authoring clinician
// (or a tenant owner/admin) tries to change a note.
var ErrNotAuthor = errors.New("only the authoring clinician can change this note")

// Auditor records audit entries. Implemented by audit.Sink.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo      Repository
	templates TemplateRepository
	audit     Auditor
}

func NewService(repo Repository, templates TemplateRepository, auditor Auditor) *Service {
	return &Service{repo: repo, templates: templates, audit: auditor}
}

// Create writes a note for an appointment. The author is the requesting
// principal; an empty body is prefilled from the named template.
func (s *Service) Create(ctx context.Context, n *Note) error {
	if n.AppointmentID == 0 {
		return fmt.Errorf("appointment_id is required")
	}
	if n.NoteType == "" {
		n.NoteType = TypeVisit
	}
	if !validType(n.NoteType) {
		return fmt.Errorf("unknown note type %q", n.NoteType)
	}
	n.ClinicianID = tenant.CurrentPrincipalID(ctx)

	if n.Content == "" && n.TemplateID != nil {
		t, err := s.templates.GetByID(ctx, *n.TemplateID)
		if err != nil {
			return err
		}
		if !t.Active {
			return fmt.Errorf("template %q is inactive", t.Name)
		}
		n.Content = t.Content
	}
	if n.Content == "" {
		return fmt.Errorf("content is required")
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.record(ctx, audit.ActionCreate, "note", n.ID, nil, n)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Note, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, content, noteType string) (*Note, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(ctx, n) {
		return nil, ErrNotAuthor
	}

	before := *n
	if content != "" {
		n.Content = content
	}
	if noteType != "" {
		if !validType(noteType) {
			return nil, fmt.Errorf("unknown note type %q", noteType)
		}
		n.NoteType = noteType
	}
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionUpdate, "note", id, &before, n)
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(ctx, n) {
		return ErrNotAuthor
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionDelete, "note", id, n, nil)
	return nil
}

func (s *Service) ListByAppointment(ctx context.Context, appointmentID int64) ([]*Note, error) {
	return s.repo.ListByAppointment(ctx, appointmentID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Note, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	if t.Name == "" || t.Content == "" {
		return fmt.Errorf("template name and content are required")
	}
	t.Active = true
	t.CreatedBy = tenant.CurrentPrincipalID(ctx)
	if err := s.templates.Create(ctx, t); err != nil {
		return err
	}
	s.record(ctx, audit.ActionCreate, "note_template", t.ID, nil, t)
	return nil
}

func (s *Service) UpdateTemplate(ctx context.Context, t *Template) error {
	if t.Name == "" || t.Content == "" {
		return fmt.Errorf("template name and content are required")
	}
	if err := s.templates.Update(ctx, t); err != nil {
		return err
	}
	s.record(ctx, audit.ActionUpdate, "note_template", t.ID, nil, t)
	return nil
}

func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]*Template, error) {
	return s.templates.List(ctx, activeOnly)
}

func canEdit(ctx context.Context, n *Note) bool {
	a := tenant.CurrentAccess(ctx)
	if a == nil {
		return false
	}
	if a.Role == tenant.RoleOwner || a.Role == tenant.RoleAdmin {
		return true
	}
	return a.PrincipalID == n.ClinicianID
}

func (s *Service) record(ctx context.Context, action, resourceType string, id int64, before, after interface{}) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Action: action, ResourceType: resourceType, ResourceID: &id}
	if before != nil {
		e.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		e.NewValues, _ = json.Marshal(after)
	}
	s.audit.Record(ctx, e)
}
