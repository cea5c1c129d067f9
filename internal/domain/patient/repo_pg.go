package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// ErrNotFound is returned when the patient does not exist in the routed
// tenant schema.
var ErrNotFound = errors.New("patient not found")

// queryable abstracts pgxpool.Conn and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct{}

// NewRepo returns the Postgres repository. Tenant-scoped tables are only
// reachable through the routed connection in the context, so there is no
// pool fallback: a query without a routed connection is a bug.
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

const columns = `id, first_name, last_name, date_of_birth, gender, phone, email,
	address_line1, address_line2, city, state, postal_code,
	emergency_contact_name, emergency_contact_phone,
	insurance_provider, insurance_member_id, diagnosis, therapy_type,
	authorized_visits, completed_visits, status, notes, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO patient (
			first_name, last_name, date_of_birth, gender, phone, email,
			address_line1, address_line2, city, state, postal_code,
			emergency_contact_name, emergency_contact_phone,
			insurance_provider, insurance_member_id, diagnosis, therapy_type,
			authorized_visits, status, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13,
			$14, $15, $16, $17,
			$18, $19, $20
		) RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.Phone, p.Email,
		p.AddressLine1, p.AddressLine2, p.City, p.State, p.PostalCode,
		p.EmergencyContactName, p.EmergencyContactPhone,
		p.InsuranceProvider, p.InsuranceMemberID, p.Diagnosis, p.TherapyType,
		p.AuthorizedVisits, p.Status, p.Notes,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	return scanPatient(q.QueryRow(ctx, `SELECT `+columns+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE patient SET
			first_name = $2, last_name = $3, date_of_birth = $4, gender = $5,
			phone = $6, email = $7, address_line1 = $8, address_line2 = $9,
			city = $10, state = $11, postal_code = $12,
			emergency_contact_name = $13, emergency_contact_phone = $14,
			insurance_provider = $15, insurance_member_id = $16,
			diagnosis = $17, therapy_type = $18, authorized_visits = $19,
			status = $20, notes = $21, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Email, p.AddressLine1, p.AddressLine2,
		p.City, p.State, p.PostalCode,
		p.EmergencyContactName, p.EmergencyContactPhone,
		p.InsuranceProvider, p.InsuranceMemberID,
		p.Diagnosis, p.TherapyType, p.AuthorizedVisits,
		p.Status, p.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetStatus(ctx context.Context, id int64, status string) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`UPDATE patient SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) AdjustCompletedVisits(ctx context.Context, id int64, delta int) error {
	q, err := conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE patient SET
			completed_visits = GREATEST(completed_visits + $2, 0), updated_at = NOW()
		WHERE id = $1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Patient, int, error) {
	q, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := `WHERE 1=1`
	args := []interface{}{}
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, len(args), len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM patient %s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		columns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatientRow(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	p := &Patient{}
	err := scanInto(row, p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanPatientRow(rows pgx.Rows) (*Patient, error) {
	p := &Patient{}
	if err := scanInto(rows, p); err != nil {
		return nil, err
	}
	return p, nil
}

func scanInto(row pgx.Row, p *Patient) error {
	return row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.Phone, &p.Email,
		&p.AddressLine1, &p.AddressLine2, &p.City, &p.State, &p.PostalCode,
		&p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.InsuranceProvider, &p.InsuranceMemberID, &p.Diagnosis, &p.TherapyType,
		&p.AuthorizedVisits, &p.CompletedVisits, &p.Status, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt,
	)
}
