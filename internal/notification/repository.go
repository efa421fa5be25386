package notification

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, f Filter) ([]Notification, error)
	MarkRead(ctx context.Context, accountID uuid.UUID, f Filter) (int64, error)
}

// AdminDirectory lists the accounts that receive back-office notifications.
type AdminDirectory interface {
	ListAdminIDs(ctx context.Context) ([]uuid.UUID, error)
}
