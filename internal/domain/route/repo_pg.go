package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

var (
	ErrNotFound     = errors.New("route not found")
	ErrStopNotFound = errors.New("route stop not found")
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
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

type repoPG struct{}

// NewRepo returns the Postgres route repository. There is no pool fallback:
// rows are only reachable through the routed connection.
func NewRepo() Repository {
	return &repoPG{}
}

const routeColumns = `id, clinician_id, route_date, total_distance, estimated_duration, status,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rt *Route) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO route (clinician_id, route_date, total_distance, estimated_duration, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		rt.ClinicianID, rt.RouteDate, rt.TotalDistance, rt.EstimatedDuration, rt.Status,
	).Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Route, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rt := &Route{}
	err = scanRoute(q.QueryRow(ctx, `SELECT `+routeColumns+` FROM route WHERE id = $1`, id), rt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rt.Stops, err = r.stops(ctx, q, rt.ID); err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *repoPG) GetByClinicianAndDate(ctx context.Context, clinicianID uuid.UUID, date time.Time) (*Route, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rt := &Route{}
	err = scanRoute(q.QueryRow(ctx,
		`SELECT `+routeColumns+` FROM route WHERE clinician_id = $1 AND route_date = $2`,
		clinicianID, date), rt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rt.Stops, err = r.stops(ctx, q, rt.ID); err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *repoPG) Update(ctx context.Context, rt *Route) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE route SET total_distance = $2, estimated_duration = $3, status = $4, updated_at = NOW()
		WHERE id = $1`,
		rt.ID, rt.TotalDistance, rt.EstimatedDuration, rt.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, `DELETE FROM route_stop WHERE route_id = $1`, id); err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `DELETE FROM route WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByClinician(ctx context.Context, clinicianID uuid.UUID, from, to time.Time) ([]*Route, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + routeColumns + ` FROM route WHERE clinician_id = $1`
	args := []interface{}{clinicianID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(` AND route_date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(` AND route_date <= $%d`, len(args))
	}
	rows, err := q.Query(ctx, query+` ORDER BY route_date DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoutes(rows)
}

func (r *repoPG) ListByDate(ctx context.Context, date time.Time) ([]*Route, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+routeColumns+` FROM route WHERE route_date = $1`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes, err := collectRoutes(rows)
	if err != nil {
		return nil, err
	}
	for _, rt := range routes {
		if rt.Stops, err = r.stops(ctx, q, rt.ID); err != nil {
			return nil, err
		}
	}
	return routes, nil
}

const stopColumns = `id, route_id, appointment_id, stop_order, visit_notes, arrival_time,
	departure_time, status`

func (r *repoPG) ReplaceStops(ctx context.Context, routeID int64, stops []*Stop) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, `DELETE FROM route_stop WHERE route_id = $1`, routeID); err != nil {
		return err
	}
	for _, s := range stops {
		s.RouteID = routeID
		err := q.QueryRow(ctx, `
			INSERT INTO route_stop (route_id, appointment_id, stop_order, visit_notes, arrival_time, departure_time, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			s.RouteID, s.AppointmentID, s.StopOrder, s.VisitNotes, s.ArrivalTime, s.DepartureTime, s.Status,
		).Scan(&s.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetStop(ctx context.Context, routeID, stopID int64) (*Stop, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	s := &Stop{}
	err = scanStop(q.QueryRow(ctx,
		`SELECT `+stopColumns+` FROM route_stop WHERE id = $1 AND route_id = $2`,
		stopID, routeID), s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStopNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) UpdateStop(ctx context.Context, s *Stop) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE route_stop SET visit_notes = $2, arrival_time = $3, departure_time = $4, status = $5
		WHERE id = $1`,
		s.ID, s.VisitNotes, s.ArrivalTime, s.DepartureTime, s.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStopNotFound
	}
	return nil
}

func (r *repoPG) stops(ctx context.Context, q queryable, routeID int64) ([]*Stop, error) {
	rows, err := q.Query(ctx,
		`SELECT `+stopColumns+` FROM route_stop WHERE route_id = $1 ORDER BY stop_order`,
		routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []*Stop
	for rows.Next() {
		s := &Stop{}
		if err := scanStop(rows, s); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func collectRoutes(rows pgx.Rows) ([]*Route, error) {
	var routes []*Route
	for rows.Next() {
		rt := &Route{}
		if err := scanRoute(rows, rt); err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func scanRoute(row pgx.Row, rt *Route) error {
	return row.Scan(
		&rt.ID, &rt.ClinicianID, &rt.RouteDate, &rt.TotalDistance, &rt.EstimatedDuration, &rt.Status,
		&rt.CreatedAt, &rt.UpdatedAt,
	)
}

func scanStop(row pgx.Row, s *Stop) error {
	return row.Scan(
		&s.ID, &s.RouteID, &s.AppointmentID, &s.StopOrder, &s.VisitNotes, &s.ArrivalTime,
		&s.DepartureTime, &s.Status,
	)
}
