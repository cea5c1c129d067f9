package appointment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/therapyhub/therapyhub/internal/platform/audit"
)

// Auditor records audit entries. Implemented by audit.Sink.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// VisitRecorder adjusts a patient's completed-visit counter. Implemented by
// patient.Service.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, patientID int64, delta int) error
}

type Service struct {
	repo   Repository
	visits VisitRecorder
	audit  Auditor
}

func NewService(repo Repository, visits VisitRecorder, auditor Auditor) *Service {
	return &Service{repo: repo, visits: visits, audit: auditor}
}

// Create schedules an appointment. A recurrence rule expands into a series
// of rows sharing the first occurrence's id as series id.
func (s *Service) Create(ctx context.Context, a *Appointment) ([]*Appointment, error) {
	if a.PatientID == 0 {
		return nil, fmt.Errorf("patient_id is required")
	}
	if !a.EndTime.After(a.StartTime) {
		return nil, fmt.Errorf("appointment end time must be after start time")
	}
	if !validRecurrence(a.RecurrenceRule) {
		return nil, fmt.Errorf("unknown recurrence rule %q", a.RecurrenceRule)
	}
	if a.RecurrenceRule != "" && a.RecurrenceEndDate == nil {
		return nil, fmt.Errorf("recurrence_end_date is required for recurring appointments")
	}
	if a.Type == "" {
		a.Type = "session"
	}
	a.Status = StatusScheduled

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionCreate, a.ID, nil, a)
	created := []*Appointment{a}

	if a.RecurrenceRule == "" {
		return created, nil
	}

	duration := a.EndTime.Sub(a.StartTime)
	start := nextOccurrence(a.RecurrenceRule, a.StartTime)
	for i := 1; i < maxOccurrences && !start.After(*a.RecurrenceEndDate); i++ {
		occ := &Appointment{
			PatientID:      a.PatientID,
			ClinicianID:    a.ClinicianID,
			StartTime:      start,
			EndTime:        start.Add(duration),
			Type:           a.Type,
			Status:         StatusScheduled,
			Location:       a.Location,
			RecurrenceRule: a.RecurrenceRule,
			SeriesID:       &a.ID,
			Notes:          a.Notes,
		}
		if err := s.repo.Create(ctx, occ); err != nil {
			return created, fmt.Errorf("expand recurrence after %d occurrences: %w", len(created), err)
		}
		created = append(created, occ)
		start = nextOccurrence(a.RecurrenceRule, start)
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if !a.EndTime.After(a.StartTime) {
		return fmt.Errorf("appointment end time must be after start time")
	}
	if !validStatus(a.Status) {
		return fmt.Errorf("unknown appointment status %q", a.Status)
	}
	old, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	s.record(ctx, audit.ActionUpdate, a.ID, old, a)
	return nil
}

// Complete marks a scheduled appointment completed and counts the visit
// against the patient's authorization.
func (s *Service) Complete(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled {
		return nil, fmt.Errorf("cannot complete appointment in status %q", a.Status)
	}

	a.Status = StatusCompleted
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	if err := s.visits.RecordVisit(ctx, a.PatientID, 1); err != nil {
		return nil, fmt.Errorf("appointment completed but visit counter failed: %w", err)
	}
	s.record(ctx, audit.ActionUpdate, id, nil, a)
	return a, nil
}

// Cancel marks a scheduled appointment cancelled. Completed appointments
// cannot be cancelled; reopen them instead.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled {
		return nil, fmt.Errorf("cannot cancel appointment in status %q", a.Status)
	}

	a.Status = StatusCancelled
	if reason != "" {
		a.CancelReason = &reason
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionUpdate, id, nil, a)
	return a, nil
}

// MarkNoShow records that a scheduled appointment was missed. No visit is
// counted against the patient's authorization.
func (s *Service) MarkNoShow(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled {
		return nil, fmt.Errorf("cannot mark no-show for appointment in status %q", a.Status)
	}

	a.Status = StatusNoShow
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionUpdate, id, nil, a)
	return a, nil
}

// Reopen returns a completed or cancelled appointment to scheduled. A
// completed appointment gives the visit back to the patient's allowance.
func (s *Service) Reopen(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusScheduled {
		return a, nil
	}

	wasCompleted := a.Status == StatusCompleted
	a.Status = StatusScheduled
	a.CancelReason = nil
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	if wasCompleted {
		if err := s.visits.RecordVisit(ctx, a.PatientID, -1); err != nil {
			return nil, fmt.Errorf("appointment reopened but visit counter failed: %w", err)
		}
	}
	s.record(ctx, audit.ActionUpdate, id, nil, a)
	return a, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) record(ctx context.Context, action string, id int64, before, after interface{}) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Action: action, ResourceType: "appointment", ResourceID: &id}
	if before != nil {
		e.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		e.NewValues, _ = json.Marshal(after)
	}
	s.audit.Record(ctx, e)
}
