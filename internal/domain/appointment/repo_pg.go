package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// ErrNotFound is returned when the appointment does not exist in the routed
// tenant schema.
var ErrNotFound = errors.New("appointment not found")

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct{}

// NewRepo returns the Postgres repository. There is no pool fallback:
// appointment rows are only reachable through the routed connection.
func NewRepo() Repository {
	return &repoPG{}
}

func conn(ctx context.Context) (queryable, error) {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx, nil
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c, nil
	}
	return nil, tenant.ErrNoTenant
}

const columns = `id, patient_id, clinician_id, start_time, end_time, type, status,
	location, recurrence_rule, recurrence_end_date, series_id, cancel_reason, notes,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO appointment (
			patient_id, clinician_id, start_time, end_time, type, status,
			location, recurrence_rule, recurrence_end_date, series_id, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		a.PatientID, a.ClinicianID, a.StartTime, a.EndTime, a.Type, a.Status,
		a.Location, a.RecurrenceRule, a.RecurrenceEndDate, a.SeriesID, a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	a := &Appointment{}
	err = scanInto(q.QueryRow(ctx, `SELECT `+columns+` FROM appointment WHERE id = $1`, id), a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE appointment SET
			patient_id = $2, clinician_id = $3, start_time = $4, end_time = $5,
			type = $6, status = $7, location = $8, cancel_reason = $9, notes = $10,
			updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.ClinicianID, a.StartTime, a.EndTime,
		a.Type, a.Status, a.Location, a.CancelReason, a.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := `WHERE 1=1`
	args := []interface{}{}
	if filter.PatientID != 0 {
		args = append(args, filter.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if filter.ClinicianID != uuid.Nil {
		args = append(args, filter.ClinicianID)
		where += fmt.Sprintf(` AND clinician_id = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where += fmt.Sprintf(` AND start_time >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where += fmt.Sprintf(` AND start_time < $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointment `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM appointment %s ORDER BY start_time LIMIT $%d OFFSET $%d`,
		columns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appointments []*Appointment
	for rows.Next() {
		a := &Appointment{}
		if err := scanInto(rows, a); err != nil {
			return nil, 0, err
		}
		appointments = append(appointments, a)
	}
	return appointments, total, rows.Err()
}

func scanInto(row pgx.Row, a *Appointment) error {
	return row.Scan(
		&a.ID, &a.PatientID, &a.ClinicianID, &a.StartTime, &a.EndTime, &a.Type, &a.Status,
		&a.Location, &a.RecurrenceRule, &a.RecurrenceEndDate, &a.SeriesID, &a.CancelReason, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	)
}
