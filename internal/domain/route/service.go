package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/therapyhub/therapyhub/internal/domain/appointment"
	"github.com/therapyhub/therapyhub/internal/platform/audit"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

var (
	// ErrNotAssigned is returned when a member tries to touch another
	// clinician's route.
	ErrNotAssigned = errors.New("route belongs to another clinician")
	// ErrNoAppointments is returned when the clinician has nothing
	// scheduled on the requested day.
	ErrNoAppointments = errors.New("no scheduled appointments on that date")
)

// AppointmentSource lists appointments for route planning. Implemented by
// appointment.Service.
type AppointmentSource interface {
	List(ctx context.Context, filter appointment.Filter, limit, offset int) ([]*appointment.Appointment, int, error)
}

// Auditor records audit entries. Implemented by audit.Sink.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo         Repository
	appointments AppointmentSource
	audit        Auditor

	now func() time.Time
}

func NewService(repo Repository, appointments AppointmentSource, auditor Auditor) *Service {
	return &Service{repo: repo, appointments: appointments, audit: auditor, now: time.Now}
}

// Plan builds (or rebuilds) the clinician's route for a day from their
// scheduled appointments, ordered by start time. Travel between stops uses
// fixed estimates.
func (s *Service) Plan(ctx context.Context, clinicianID uuid.UUID, date time.Time) (*Route, error) {
	if err := s.mayManage(ctx, clinicianID); err != nil {
		return nil, err
	}
	day := midnight(date)

	appts, _, err := s.appointments.List(ctx, appointment.Filter{
		ClinicianID: clinicianID,
		From:        day,
		To:          day.AddDate(0, 0, 1),
		Status:      appointment.StatusScheduled,
	}, 100, 0)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, ErrNoAppointments
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartTime.Before(appts[j].StartTime) })

	rt, err := s.repo.GetByClinicianAndDate(ctx, clinicianID, day)
	switch {
	case errors.Is(err, ErrNotFound):
		rt = &Route{ClinicianID: clinicianID, RouteDate: day, Status: StatusPlanned}
		if err := s.repo.Create(ctx, rt); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	var stops []*Stop
	duration, distance := 0, 0.0
	for i, a := range appts {
		stops = append(stops, &Stop{
			AppointmentID: a.ID,
			StopOrder:     i + 1,
			Status:        StopPending,
		})
		duration += int(a.EndTime.Sub(a.StartTime).Minutes())
		if i > 0 {
			duration += travelMinutesBetweenStops
			distance += travelMilesBetweenStops
		}
	}

	rt.Status = StatusPlanned
	rt.EstimatedDuration = duration
	rt.TotalDistance = distance
	if err := s.repo.Update(ctx, rt); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceStops(ctx, rt.ID, stops); err != nil {
		return nil, err
	}
	rt.Stops = stops

	s.record(ctx, audit.ActionCreate, rt.ID, rt)
	return rt, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Route, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByClinician(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*Route, error) {
	return s.repo.ListByClinician(ctx, clinicianID, from, to)
}

// Today returns every route planned for the current day.
func (s *Service) Today(ctx context.Context) ([]*Route, error) {
	return s.repo.ListByDate(ctx, midnight(s.now()))
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	rt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.mayManage(ctx, rt.ClinicianID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionDelete, id, nil)
	return nil
}

// Cancel marks the route cancelled without touching its appointments.
func (s *Service) Cancel(ctx context.Context, id int64) (*Route, error) {
	rt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.mayManage(ctx, rt.ClinicianID); err != nil {
		return nil, err
	}
	rt.Status = StatusCancelled
	if err := s.repo.Update(ctx, rt); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionUpdate, id, rt)
	return rt, nil
}

// UpdateStopStatus moves one stop through its visit lifecycle and keeps the
// route status in step: the first arrival puts the route in progress, and
// the route completes once every stop is completed or skipped.
func (s *Service) UpdateStopStatus(ctx context.Context, routeID, stopID int64, status string) (*Stop, error) {
	if !validStopStatus(status) {
		return nil, fmt.Errorf("unknown stop status %q", status)
	}
	rt, err := s.repo.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if err := s.mayManage(ctx, rt.ClinicianID); err != nil {
		return nil, err
	}
	stop, err := s.repo.GetStop(ctx, routeID, stopID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stop.Status = status
	if status == StopArrived && stop.ArrivalTime == nil {
		stop.ArrivalTime = &now
	}
	if status == StopCompleted && stop.DepartureTime == nil {
		stop.DepartureTime = &now
	}
	if err := s.repo.UpdateStop(ctx, stop); err != nil {
		return nil, err
	}

	if err := s.reconcileStatus(ctx, rt, stop); err != nil {
		return nil, err
	}
	s.record(ctx, audit.ActionUpdate, stopID, stop)
	return stop, nil
}

// UpdateStopNotes replaces the visit notes for one stop.
func (s *Service) UpdateStopNotes(ctx context.Context, routeID, stopID int64, notes string) (*Stop, error) {
	rt, err := s.repo.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if err := s.mayManage(ctx, rt.ClinicianID); err != nil {
		return nil, err
	}
	stop, err := s.repo.GetStop(ctx, routeID, stopID)
	if err != nil {
		return nil, err
	}
	stop.VisitNotes = &notes
	if err := s.repo.UpdateStop(ctx, stop); err != nil {
		return nil, err
	}
	return stop, nil
}

func (s *Service) reconcileStatus(ctx context.Context, rt *Route, changed *Stop) error {
	allSettled := true
	anyTouched := false
	for _, st := range rt.Stops {
		if st.ID == changed.ID {
			st = changed
		}
		if !st.settled() {
			allSettled = false
		}
		if st.Status != StopPending {
			anyTouched = true
		}
	}

	status := StatusPlanned
	switch {
	case allSettled:
		status = StatusCompleted
	case anyTouched:
		status = StatusInProgress
	}
	if status == rt.Status {
		return nil
	}
	rt.Status = status
	return s.repo.Update(ctx, rt)
}

// mayManage allows managing roles to touch any route; members and
// schedulers only their own.
func (s *Service) mayManage(ctx context.Context, clinicianID uuid.UUID) error {
	a := tenant.CurrentAccess(ctx)
	if a == nil {
		return ErrNotAssigned
	}
	switch a.Role {
	case tenant.RoleOwner, tenant.RoleAdmin, tenant.RoleManager:
		return nil
	}
	if a.PrincipalID != clinicianID {
		return ErrNotAssigned
	}
	return nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) record(ctx context.Context, action string, id int64, after interface{}) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Action: action, ResourceType: "route", ResourceID: &id}
	if after != nil {
		e.NewValues, _ = json.Marshal(after)
	}
	s.audit.Record(ctx, e)
}
