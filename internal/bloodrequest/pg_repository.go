package bloodrequest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/blood-bank/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const requestColumns = `id, patient_id, blood_group, quantity, status, notes,
	preferred_center, document_key, request_date, created_at, updated_at`

const detailSelect = `
	SELECT br.id, br.patient_id, br.blood_group, br.quantity, br.status, br.notes,
	       br.preferred_center, br.document_key, br.request_date, br.created_at, br.updated_at,
	       COALESCE(NULLIF(TRIM(ac.first_name || ' ' || ac.last_name), ''), ac.username)
	FROM blood_requests br
	JOIN accounts ac ON ac.id = br.patient_id`

func scanRequest(row pgx.Row, extra ...any) (*Request, error) {
	var r Request
	dest := []any{
		&r.ID,
		&r.PatientID,
		&r.BloodGroup,
		&r.Quantity,
		&r.Status,
		&r.Notes,
		&r.PreferredCenter,
		&r.DocumentKey,
		&r.RequestDate,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &r, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	r, err := scanRequest(row, &d.PatientName)
	if err != nil {
		return nil, err
	}
	d.Request = *r
	return &d, nil
}

func collectDetails(rows pgx.Rows) ([]Detail, error) {
	defer rows.Close()
	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (p *PgRepository) Create(ctx context.Context, r *Request) error {
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO blood_requests (id, patient_id, blood_group, quantity, status, notes,
			preferred_center, document_key, request_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, r.ID, r.PatientID, r.BloodGroup, r.Quantity, r.Status, r.Notes,
		r.PreferredCenter, r.DocumentKey, r.RequestDate,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert blood request: %w", err)
	}
	return nil
}

func (p *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(db.Conn(ctx, p.pool).QueryRow(ctx, detailSelect+`
		WHERE br.id = $1
	`, id))
}

func (p *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Request, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	r, err := scanRequest(db.Conn(ctx, p.pool).QueryRow(ctx, `
		UPDATE blood_requests
		SET status = $2, updated_at = now()
		WHERE id = $1
		  AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
		RETURNING `+requestColumns, id, to, allowed))
	if errors.Is(err, ErrRequestNotFound) {
		return nil, ErrInvalidState
	}
	return r, err
}

func (p *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status) ([]Detail, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, detailSelect+`
		WHERE br.patient_id = $1
		  AND ($2 = '' OR br.status = $2)
		ORDER BY br.created_at DESC
	`, patientID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list patient requests: %w", err)
	}
	return collectDetails(rows)
}

func (p *PgRepository) ListForAdmin(ctx context.Context, f AdminFilter) ([]Detail, int, error) {
	where := "WHERE br.status = $1"
	arg := string(f.Status)
	if f.History {
		where = "WHERE br.status <> $1"
		arg = string(StatusPending)
	} else if arg == "" {
		arg = string(StatusPending)
	}

	q := db.Conn(ctx, p.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM blood_requests br `+where, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count blood requests: %w", err)
	}

	limit, offset := pageBounds(f.Page, f.Size)
	rows, err := q.Query(ctx, detailSelect+`
		`+where+`
		ORDER BY br.request_date DESC, br.created_at DESC
		LIMIT $2 OFFSET $3
	`, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list blood requests: %w", err)
	}
	list, err := collectDetails(rows)
	return list, total, err
}

func (p *PgRepository) Recent(ctx context.Context, limit int) ([]Detail, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, detailSelect+`
		ORDER BY br.request_date DESC, br.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent blood requests: %w", err)
	}
	return collectDetails(rows)
}

func (p *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, `
		SELECT status, count(*) FROM blood_requests GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count blood requests by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			s Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

const defaultPageSize = 10

func pageBounds(page, size int) (limit, offset int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}
