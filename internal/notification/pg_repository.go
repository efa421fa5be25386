package notification

import (
	"context"
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

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.AccountID,
		&n.Title,
		&n.Message,
		&n.Category,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PgRepository) Insert(ctx context.Context, n *Notification) error {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO notifications (id, account_id, title, message, category, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		RETURNING created_at
	`, n.ID, n.AccountID, n.Title, n.Message, n.Category, n.CreatedAt)
	if err := row.Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *PgRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, f Filter) ([]Notification, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, account_id, title, message, category, is_read, created_at
		FROM notifications
		WHERE account_id = $1
		  AND ($2 = '' OR category = $2)
		  AND (NOT $3 OR is_read = FALSE)
		ORDER BY created_at DESC
	`, accountID, string(f.Category), f.UnreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkRead(ctx context.Context, accountID uuid.UUID, f Filter) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE account_id = $1
		  AND is_read = FALSE
		  AND ($2 = '' OR category = $2)
	`, accountID, string(f.Category))
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}
