package message

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
	ErrNotFound         = errors.New("message not found")
	ErrTemplateNotFound = errors.New("message template not found")
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

// NewRepo returns the Postgres message repository. There is no pool
// fallback: rows are only reachable through the routed connection.
func NewRepo() Repository {
	return &repoPG{}
}

const messageColumns = `id, sender_id, recipient_id, recipient_phone, type, content, status,
	template_id, scheduled_at, sent_at, failure_reason, created_at`

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO message (
			sender_id, recipient_id, recipient_phone, type, content, status,
			template_id, scheduled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		m.SenderID, m.RecipientID, m.RecipientPhone, m.Type, m.Content, m.Status,
		m.TemplateID, m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Message, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	m := &Message{}
	err = scanMessage(q.QueryRow(ctx, `SELECT `+messageColumns+` FROM message WHERE id = $1`, id), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id int64, status string, sentAt *time.Time, failureReason *string) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE message SET status = $2, sent_at = COALESCE($3, sent_at), failure_reason = $4
		WHERE id = $1`,
		id, status, sentAt, failureReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter Filter, limit, offset int) ([]*Message, int, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := `WHERE 1=1`
	args := []interface{}{}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.PrincipalID != uuid.Nil {
		args = append(args, filter.PrincipalID)
		where += fmt.Sprintf(` AND (sender_id = $%d OR recipient_id = $%d)`, len(args), len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM message `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM message %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		messageColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		if err := scanMessage(rows, m); err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

func (r *repoPG) ListDue(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT `+messageColumns+` FROM message
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at LIMIT $3`,
		StatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*Message
	for rows.Next() {
		m := &Message{}
		if err := scanMessage(rows, m); err != nil {
			return nil, err
		}
		due = append(due, m)
	}
	return due, rows.Err()
}

func scanMessage(row pgx.Row, m *Message) error {
	return row.Scan(
		&m.ID, &m.SenderID, &m.RecipientID, &m.RecipientPhone, &m.Type, &m.Content, &m.Status,
		&m.TemplateID, &m.ScheduledAt, &m.SentAt, &m.FailureReason, &m.CreatedAt,
	)
}

type templateRepoPG struct{}

// NewTemplateRepo returns the Postgres template repository.
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
		INSERT INTO message_template (name, content, category, created_by, active)
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
	err = scanTemplate(q.QueryRow(ctx, `SELECT `+templateColumns+` FROM message_template WHERE id = $1`, id), t)
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
		UPDATE message_template SET name = $2, content = $3, category = $4, active = $5
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
	query := `SELECT ` + templateColumns + ` FROM message_template`
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
		if err := scanTemplate(rows, t); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func scanTemplate(row pgx.Row, t *Template) error {
	return row.Scan(&t.ID, &t.Name, &t.Content, &t.Category, &t.CreatedBy, &t.Active, &t.CreatedAt)
}
