package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/therapyhub/therapyhub/internal/platform/audit"
)

type fakeRepo struct {
	byID   map[int64]*Appointment
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]*Appointment), nextID: 1}
}

func (r *fakeRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = r.nextID
	r.nextID++
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := r.byID[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *fakeRepo) List(_ context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range r.byID {
		if filter.PatientID != 0 && a.PatientID != filter.PatientID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type fakeVisits struct {
	deltas map[int64]int
	err    error
}

func newFakeVisits() *fakeVisits {
	return &fakeVisits{deltas: make(map[int64]int)}
}

func (v *fakeVisits) RecordVisit(_ context.Context, patientID int64, delta int) error {
	if v.err != nil {
		return v.err
	}
	v.deltas[patientID] += delta
	return nil
}

type captureAuditor struct {
	entries []audit.Entry
}

func (a *captureAuditor) Record(_ context.Context, e audit.Entry) {
	a.entries = append(a.entries, e)
}

func fixture() (*Service, *fakeRepo, *fakeVisits, *captureAuditor) {
	repo := newFakeRepo()
	visits := newFakeVisits()
	auditor := &captureAuditor{}
	return NewService(repo, visits, auditor), repo, visits, auditor
}

func baseAppointment() *Appointment {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &Appointment{
		PatientID:   1,
		ClinicianID: uuid.New(),
		StartTime:   start,
		EndTime:     start.Add(50 * time.Minute),
	}
}

func TestCreate_OneOff(t *testing.T) {
	svc, _, _, auditor := fixture()

	a := baseAppointment()
	created, err := svc.Create(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected one appointment, got %d", len(created))
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled status, got %s", a.Status)
	}
	if a.Type != "session" {
		t.Errorf("expected default type session, got %s", a.Type)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != audit.ActionCreate {
		t.Errorf("expected one create audit entry, got %+v", auditor.entries)
	}
}

func TestCreate_RejectsInvertedTimes(t *testing.T) {
	svc, _, _, _ := fixture()

	a := baseAppointment()
	a.EndTime = a.StartTime.Add(-time.Hour)
	if _, err := svc.Create(context.Background(), a); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestCreate_RejectsUnknownRecurrence(t *testing.T) {
	svc, _, _, _ := fixture()

	a := baseAppointment()
	a.RecurrenceRule = "daily"
	if _, err := svc.Create(context.Background(), a); err == nil {
		t.Fatal("expected error for unknown recurrence rule")
	}
}

func TestCreate_RecurrenceNeedsEndDate(t *testing.T) {
	svc, _, _, _ := fixture()

	a := baseAppointment()
	a.RecurrenceRule = RecurWeekly
	if _, err := svc.Create(context.Background(), a); err == nil {
		t.Fatal("expected error for recurring appointment without end date")
	}
}

func TestCreate_ExpandsWeeklySeries(t *testing.T) {
	svc, repo, _, _ := fixture()

	a := baseAppointment()
	a.RecurrenceRule = RecurWeekly
	end := a.StartTime.AddDate(0, 0, 28) // four more weeks
	a.RecurrenceEndDate = &end

	created, err := svc.Create(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 5 {
		t.Fatalf("expected 5 occurrences, got %d", len(created))
	}
	for i, occ := range created[1:] {
		if occ.SeriesID == nil || *occ.SeriesID != a.ID {
			t.Errorf("occurrence %d not linked to series %d", i+1, a.ID)
		}
		want := a.StartTime.AddDate(0, 0, 7*(i+1))
		if !occ.StartTime.Equal(want) {
			t.Errorf("occurrence %d start = %v, want %v", i+1, occ.StartTime, want)
		}
		if occ.EndTime.Sub(occ.StartTime) != 50*time.Minute {
			t.Errorf("occurrence %d lost the session duration", i+1)
		}
	}
	if len(repo.byID) != 5 {
		t.Errorf("expected 5 stored rows, got %d", len(repo.byID))
	}
}

func TestCreate_SeriesCappedAtMaxOccurrences(t *testing.T) {
	svc, _, _, _ := fixture()

	a := baseAppointment()
	a.RecurrenceRule = RecurWeekly
	end := a.StartTime.AddDate(5, 0, 0)
	a.RecurrenceEndDate = &end

	created, err := svc.Create(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != maxOccurrences {
		t.Fatalf("expected series capped at %d, got %d", maxOccurrences, len(created))
	}
}

func TestComplete_CountsVisit(t *testing.T) {
	svc, repo, visits, _ := fixture()

	a := baseAppointment()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Complete(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if visits.deltas[a.PatientID] != 1 {
		t.Errorf("expected one visit counted, got %d", visits.deltas[a.PatientID])
	}

	stored, _ := repo.GetByID(context.Background(), a.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("status not persisted, got %s", stored.Status)
	}
}

func TestComplete_OnlyFromScheduled(t *testing.T) {
	svc, _, visits, _ := fixture()

	a := baseAppointment()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Complete(context.Background(), a.ID); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	if _, err := svc.Complete(context.Background(), a.ID); err == nil {
		t.Fatal("expected error completing a completed appointment")
	}
	if visits.deltas[a.PatientID] != 1 {
		t.Errorf("visit counted twice: %d", visits.deltas[a.PatientID])
	}
}

func TestCancel_SetsReason(t *testing.T) {
	svc, _, _, _ := fixture()

	a := baseAppointment()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Cancel(context.Background(), a.ID, "patient sick")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.CancelReason == nil || *got.CancelReason != "patient sick" {
		t.Errorf("expected cancel reason persisted, got %v", got.CancelReason)
	}
}

func TestCancel_RejectsCompleted(t *testing.T) {
	svc, _, _, _ := fixture()

	a := baseAppointment()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Complete(context.Background(), a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), a.ID, ""); err == nil {
		t.Fatal("expected error cancelling a completed appointment")
	}
}

func TestMarkNoShow(t *testing.T) {
	svc, _, visits, _ := fixture()

	a := baseAppointment()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.MarkNoShow(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("no-show: %v", err)
	}
	if got.Status != StatusNoShow {
		t.Errorf("expected no_show, got %s", got.Status)
	}
	if visits.deltas[a.PatientID] != 0 {
		t.Errorf("no-show must not count a visit, got %d", visits.deltas[a.PatientID])
	}
}

func TestReopen_CompletedGivesVisitBack(t *testing.T) {
	svc, _, visits, _ := fixture()

	a := baseAppointment()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Complete(context.Background(), a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := svc.Reopen(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", got.Status)
	}
	if visits.deltas[a.PatientID] != 0 {
		t.Errorf("expected visit refunded, net delta %d", visits.deltas[a.PatientID])
	}
}

func TestReopen_CancelledClearsReason(t *testing.T) {
	svc, _, visits, _ := fixture()

	a := baseAppointment()
	if _, err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), a.ID, "double booked"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, err := svc.Reopen(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.CancelReason != nil {
		t.Errorf("expected cancel reason cleared, got %v", *got.CancelReason)
	}
	if visits.deltas[a.PatientID] != 0 {
		t.Errorf("reopening a cancelled appointment must not touch visits, got %d", visits.deltas[a.PatientID])
	}
}

func TestGet_Unknown(t *testing.T) {
	svc, _, _, _ := fixture()

	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
