package note

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

var (
	ErrNotFound         = errors.New("note not found")
	ErrTemplateNotFound = errors.New("note template not found")
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

// NewRepo returns the Postgres note repository. There is no pool fallback:
// rows are only reachable through the routed connection.
func NewRepo() Repository {
	return &repoPG{}
}

const noteColumns = `id, appointment_id, clinician_id, content, note_type, template_id,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO note (appointment_id, clinician_id, content, note_type, template_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		n.AppointmentID, n.ClinicianID, n.Content, n.NoteType, n.TemplateID,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Note, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	n := &Note{}
	err = scanNote(q.QueryRow(ctx, `SELECT `+noteColumns+` FROM note WHERE id = $1`, id), n)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *repoPG) Update(ctx context.Context, n *Note) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE note SET content = $2, note_type = $3, template_id = $4, updated_at = NOW()
		WHERE id = $1`,
		n.ID, n.Content, n.NoteType, n.TemplateID,
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
	tag, err := q.Exec(ctx, `DELETE FROM note WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByAppointment(ctx context.Context, appointmentID int64) ([]*Note, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+noteColumns+` FROM note WHERE appointment_id = $1 ORDER BY created_at`,
		appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Note, int, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = q.QueryRow(ctx, `
		SELECT COUNT(*) FROM note n
		JOIN appointment a ON a.id = n.appointment_id
		WHERE a.patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx, `
		SELECT n.id, n.appointment_id, n.clinician_id, n.content, n.note_type, n.template_id,
		       n.created_at, n.updated_at
		FROM note n
		JOIN appointment a ON a.id = n.appointment_id
		WHERE a.patient_id = $1
		ORDER BY n.created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	return notes, total, err
}

func collectNotes(rows pgx.Rows) ([]*Note, error) {
	var notes []*Note
	for rows.Next() {
		n := &Note{}
		if err := scanNote(rows, n); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func scanNote(row pgx.Row, n *Note) error {
	return row.Scan(
		&n.ID, &n.AppointmentID, &n.ClinicianID, &n.Content, &n.NoteType, &n.TemplateID,
		&n.CreatedAt, &n.UpdatedAt,
	)
}

type templateRepoPG struct{}

// NewTemplateRepo returns the Postgres note template repository.
func NewTemplateRepo() TemplateRepository {
	return &templateRepoPG{}
}

const templateColumns = `id, name, content, category, created_by, active, created_at`

func (r *templateRepoPG) Create(ctx context.Context, t *Template) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO note_template (name, content, category, created_by, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		t.Name, t.Content, t.Category, t.CreatedBy, t.Active,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *templateRepoPG) GetByID(ctx context.Context, id int64) (*Template, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	t := &Template{}
	err = q.QueryRow(ctx, `SELECT `+templateColumns+` FROM note_template WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Content, &t.Category, &t.CreatedBy, &t.Active, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *templateRepoPG) Update(ctx context.Context, t *Template) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE note_template SET name = $2, content = $3, category = $4, active = $5
		WHERE id = $1`,
		t.ID, t.Name, t.Content, t.Category, t.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *templateRepoPG) List(ctx context.Context, activeOnly bool) ([]*Template, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + templateColumns + ` FROM note_template`
	if activeOnly {
		query += ` WHERE active`
	}
	rows, err := q.Query(ctx, query+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Content, &t.Category, &t.CreatedBy, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
