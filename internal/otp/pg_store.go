package otp

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

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Insert(ctx context.Context, c *Code) error {
	err := db.Conn(ctx, s.pool).QueryRow(ctx, `
		INSERT INTO one_time_codes (id, account_id, code, consumed, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING created_at
	`, c.ID, c.AccountID, c.Code, c.CreatedAt).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert one-time code: %w", err)
	}
	return nil
}

// Consume flips exactly one row. SKIP LOCKED lets two concurrent verifications
// of the same code race for the row without both succeeding.
func (s *PgStore) Consume(ctx context.Context, accountID uuid.UUID, code string, issuedAfter time.Time) (bool, error) {
	var id uuid.UUID
	err := db.Conn(ctx, s.pool).QueryRow(ctx, `
		UPDATE one_time_codes
		SET consumed = TRUE
		WHERE id = (
			SELECT id
			FROM one_time_codes
			WHERE account_id = $1
			  AND code = $2
			  AND NOT consumed
			  AND created_at >= $3
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, accountID, code, issuedAfter).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("consume one-time code: %w", err)
	}
	return true, nil
}

func (s *PgStore) Revoke(ctx context.Context, accountID uuid.UUID) error {
	_, err := db.Conn(ctx, s.pool).Exec(ctx, `
		UPDATE one_time_codes
		SET consumed = TRUE
		WHERE account_id = $1 AND NOT consumed
	`, accountID)
	if err != nil {
		return fmt.Errorf("revoke one-time codes: %w", err)
	}
	return nil
}
