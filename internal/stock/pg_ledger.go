package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/db"
)

type PgLedger struct {
	pool *pgxpool.Pool
}

func NewPgLedger(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.BloodGroup, &e.Units, &e.LastUpdated)
	return e, err
}

func (l *PgLedger) Get(ctx context.Context, group bloodgroup.Group) (int, error) {
	var units int
	err := db.Conn(ctx, l.pool).QueryRow(ctx, `
		SELECT units FROM blood_stock WHERE blood_group = $1
	`, group).Scan(&units)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get stock %s: %w", group, err)
	}
	return units, nil
}

func (l *PgLedger) Credit(ctx context.Context, group bloodgroup.Group, delta int) (Entry, error) {
	if delta < 1 {
		return Entry{}, ErrInvalidUnits
	}
	e, err := scanEntry(db.Conn(ctx, l.pool).QueryRow(ctx, `
		INSERT INTO blood_stock (blood_group, units, last_updated)
		VALUES ($1, $2, now())
		ON CONFLICT (blood_group) DO UPDATE
		SET units = blood_stock.units + EXCLUDED.units,
		    last_updated = now()
		RETURNING blood_group, units, last_updated
	`, group, delta))
	if err != nil {
		return Entry{}, fmt.Errorf("credit stock %s: %w", group, err)
	}
	return e, nil
}

func (l *PgLedger) Debit(ctx context.Context, group bloodgroup.Group, amount int) (Entry, error) {
	e, err := scanEntry(db.Conn(ctx, l.pool).QueryRow(ctx, `
		UPDATE blood_stock
		SET units = units - $2,
		    last_updated = now()
		WHERE blood_group = $1
		RETURNING blood_group, units, last_updated
	`, group, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNegativeStock
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return Entry{}, ErrNegativeStock
		}
		return Entry{}, fmt.Errorf("debit stock %s: %w", group, err)
	}
	return e, nil
}

func (l *PgLedger) Lock(ctx context.Context, group bloodgroup.Group) (Entry, bool, error) {
	e, err := scanEntry(db.Conn(ctx, l.pool).QueryRow(ctx, `
		SELECT blood_group, units, last_updated
		FROM blood_stock
		WHERE blood_group = $1
		FOR UPDATE
	`, group))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lock stock %s: %w", group, err)
	}
	return e, true, nil
}

func (l *PgLedger) List(ctx context.Context) ([]Entry, error) {
	rows, err := db.Conn(ctx, l.pool).Query(ctx, `
		SELECT blood_group, units, last_updated
		FROM blood_stock
		ORDER BY blood_group
	`)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
