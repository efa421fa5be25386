package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/db"
	"github.com/hackgods/blood-bank/internal/domainerr"
	redisclient "github.com/hackgods/blood-bank/internal/redis"
)

var (
	ErrInvalidUnits  = fmt.Errorf("%w: units must be at least 1", domainerr.ErrValidation)
	ErrNegativeStock = fmt.Errorf("%w: stock cannot go below zero", domainerr.ErrState)
	ErrStockBusy     = fmt.Errorf("%w: stock is being updated, please retry", domainerr.ErrConflict)
)

// Ledger holds one unit count per blood group. Mutations join the
// transaction carried by ctx.
type Ledger interface {
	// Get returns 0 for a group that has no entry yet.
	Get(ctx context.Context, group bloodgroup.Group) (int, error)
	// Credit adds delta units, creating the entry when missing.
	Credit(ctx context.Context, group bloodgroup.Group, delta int) (Entry, error)
	// Debit subtracts amount. Callers check availability under Lock first.
	Debit(ctx context.Context, group bloodgroup.Group, amount int) (Entry, error)
	// Lock reads the entry and holds its row lock until the transaction ends.
	Lock(ctx context.Context, group bloodgroup.Group) (Entry, bool, error)
	List(ctx context.Context) ([]Entry, error)
}

// LockKey names the critical section shared by every transition touching group.
func LockKey(group bloodgroup.Group) string {
	return "stock:" + string(group)
}

// WithGroupLock runs fn in one transaction while holding the group's lock.
// Transitions touching the ledger go through here.
func WithGroupLock(ctx context.Context, locker redisclient.Locker, tx db.TxRunner, group bloodgroup.Group, fn func(ctx context.Context) error) error {
	err := locker.WithLock(ctx, LockKey(group), func(lockCtx context.Context) error {
		return tx.RunInTx(lockCtx, fn)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrStockBusy
	}
	return err
}
