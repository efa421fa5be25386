package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// Helpers

const detailSelect = `
	SELECT ap.id, ap.donor_id, ap.center_id, ap.date, ap.notes, ap.status,
	       ap.created_at, ap.updated_at,
	       COALESCE(NULLIF(TRIM(ac.first_name || ' ' || ac.last_name), ''), ac.username),
	       c.name, c.address
	FROM appointments ap
	JOIN donation_centers c ON c.id = ap.center_id
	JOIN accounts ac ON ac.id = ap.donor_id`

func scanCenter(row pgx.Row) (*Center, error) {
	var c Center
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCenterNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DonorID,
		&a.CenterID,
		&a.Date,
		&a.Notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	err := row.Scan(
		&d.ID,
		&d.DonorID,
		&d.CenterID,
		&d.Date,
		&d.Notes,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.DonorName,
		&d.CenterName,
		&d.CenterAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
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

func (r *PgRepository) GetCenter(ctx context.Context, id uuid.UUID) (*Center, error) {
	return scanCenter(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, address, created_at
		FROM donation_centers
		WHERE id = $1
	`, id))
}

func (r *PgRepository) ListCenters(ctx context.Context) ([]Center, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, name, address, created_at
		FROM donation_centers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	defer rows.Close()

	var result []Center
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateCenter(ctx context.Context, c *Center) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO donation_centers (id, name, address)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, c.ID, c.Name, c.Address).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert center: %w", err)
	}
	return nil
}

func (r *PgRepository) HasActive(ctx context.Context, donorID, centerID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE donor_id = $1
			  AND center_id = $2
			  AND date = $3
			  AND status IN ('PENDING', 'CONFIRMED')
		)
	`, donorID, centerID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active appointment: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, donor_id, center_id, date, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, a.ID, a.DonorID, a.CenterID, a.Date, a.Notes, a.Status).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_appointments_active") {
			return ErrDuplicateAppointment
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(db.Conn(ctx, r.pool).QueryRow(ctx, detailSelect+`
		WHERE ap.id = $1
	`, id))
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING id, donor_id, center_id, date, notes, status, created_at, updated_at
	`, id, from, to))
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrInvalidState
	}
	return a, err
}

func (r *PgRepository) ConfirmedDates(ctx context.Context, donorID uuid.UUID) ([]time.Time, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT date FROM appointments
		WHERE donor_id = $1 AND status = 'CONFIRMED'
	`, donorID)
	if err != nil {
		return nil, fmt.Errorf("confirmed dates: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

func (r *PgRepository) ListByDonor(ctx context.Context, donorID uuid.UUID, page, size int) ([]Detail, int, error) {
	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `
		SELECT count(*) FROM appointments WHERE donor_id = $1
	`, donorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count donor appointments: %w", err)
	}

	limit, offset := pageBounds(page, size)
	rows, err := q.Query(ctx, detailSelect+`
		WHERE ap.donor_id = $1
		ORDER BY ap.date DESC, ap.created_at DESC
		LIMIT $2 OFFSET $3
	`, donorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list donor appointments: %w", err)
	}
	list, err := collectDetails(rows)
	return list, total, err
}

func (r *PgRepository) NextActive(ctx context.Context, donorID uuid.UUID, from time.Time) (*Detail, error) {
	d, err := scanDetail(db.Conn(ctx, r.pool).QueryRow(ctx, detailSelect+`
		WHERE ap.donor_id = $1
		  AND ap.date >= $2
		  AND ap.status IN ('PENDING', 'CONFIRMED')
		ORDER BY ap.date
		LIMIT 1
	`, donorID, from))
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, nil
	}
	return d, err
}

func (r *PgRepository) ListForAdmin(ctx context.Context, f AdminFilter) ([]Detail, int, error) {
	where := "WHERE ap.status = $1"
	arg := string(f.Status)
	if f.History {
		where = "WHERE ap.status <> $1"
		arg = string(StatusPending)
	} else if arg == "" {
		arg = string(StatusPending)
	}

	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM appointments ap `+where, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	limit, offset := pageBounds(f.Page, f.Size)
	rows, err := q.Query(ctx, detailSelect+`
		`+where+`
		ORDER BY ap.date DESC
		LIMIT $2 OFFSET $3
	`, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	list, err := collectDetails(rows)
	return list, total, err
}

func (r *PgRepository) Recent(ctx context.Context, limit int) ([]Detail, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, detailSelect+`
		ORDER BY ap.date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent appointments: %w", err)
	}
	return collectDetails(rows)
}

func (r *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT status, count(*) FROM appointments GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count appointments by status: %w", err)
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

const defaultPageSize = 8

func pageBounds(page, size int) (limit, offset int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}
