package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists issued codes.
type Store interface {
	Insert(ctx context.Context, c *Code) error
	// Consume marks one unconsumed code matching (accountID, code) as
	// consumed and reports whether one existed. A non-zero issuedAfter
	// excludes codes created before it.
	Consume(ctx context.Context, accountID uuid.UUID, code string, issuedAfter time.Time) (bool, error)
	// Revoke consumes every outstanding code of the account.
	Revoke(ctx context.Context, accountID uuid.UUID) error
}
