package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

var ErrNotFound = errors.New("profile not found")

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

// NewRepo returns the Postgres profile repository. There is no pool
// fallback: rows are only reachable through the routed connection.
func NewRepo() Repository {
	return &repoPG{}
}

const columns = `id, principal_id, title, license_number, license_state, license_expiry,
	specializations, certifications, default_appointment_minutes, max_daily_appointments,
	working_days, email_notifications, sms_notifications, theme, language, timezone,
	created_at, updated_at`

func (r *repoPG) GetByPrincipal(ctx context.Context, principalID uuid.UUID) (*Profile, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	p := &Profile{}
	err = scanProfile(q.QueryRow(ctx,
		`SELECT `+columns+` FROM profile WHERE principal_id = $1`, principalID), p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Upsert(ctx context.Context, p *Profile) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO profile (
			principal_id, title, license_number, license_state, license_expiry,
			specializations, certifications, default_appointment_minutes,
			max_daily_appointments, working_days, email_notifications,
			sms_notifications, theme, language, timezone
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (principal_id) DO UPDATE SET
			title = EXCLUDED.title,
			license_number = EXCLUDED.license_number,
			license_state = EXCLUDED.license_state,
			license_expiry = EXCLUDED.license_expiry,
			specializations = EXCLUDED.specializations,
			certifications = EXCLUDED.certifications,
			default_appointment_minutes = EXCLUDED.default_appointment_minutes,
			max_daily_appointments = EXCLUDED.max_daily_appointments,
			working_days = EXCLUDED.working_days,
			email_notifications = EXCLUDED.email_notifications,
			sms_notifications = EXCLUDED.sms_notifications,
			theme = EXCLUDED.theme,
			language = EXCLUDED.language,
			timezone = EXCLUDED.timezone,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		p.PrincipalID, p.Title, p.LicenseNumber, p.LicenseState, p.LicenseExpiry,
		p.Specializations, p.Certifications, p.DefaultAppointmentMinutes,
		p.MaxDailyAppointments, p.WorkingDays, p.EmailNotifications,
		p.SMSNotifications, p.Theme, p.Language, p.Timezone,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) List(ctx context.Context) ([]*Profile, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+columns+` FROM profile ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p := &Profile{}
		if err := scanProfile(rows, p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row, p *Profile) error {
	return row.Scan(
		&p.ID, &p.PrincipalID, &p.Title, &p.LicenseNumber, &p.LicenseState, &p.LicenseExpiry,
		&p.Specializations, &p.Certifications, &p.DefaultAppointmentMinutes, &p.MaxDailyAppointments,
		&p.WorkingDays, &p.EmailNotifications, &p.SMSNotifications, &p.Theme, &p.Language, &p.Timezone,
		&p.CreatedAt, &p.UpdatedAt,
	)
}
