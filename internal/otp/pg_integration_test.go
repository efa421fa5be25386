//go:build integration

package otp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/blood-bank/internal/db/dbtest"
)

func TestPgStoreConsumesOnce(t *testing.T) {
	ctx := context.Background()
	pg := dbtest.NewPostgres(t)
	store := NewPgStore(pg.Pool)

	accountID := uuid.New()
	_, err := pg.Pool.Exec(ctx, `
		INSERT INTO accounts (id, username, password_hash, role) VALUES ($1, 'donor', 'x', 'DONOR')
	`, accountID)
	require.NoError(t, err)

	issued := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.Insert(ctx, &Code{ID: uuid.New(), AccountID: accountID, Code: "123456", CreatedAt: issued}))

	ok, err := store.Consume(ctx, accountID, "123456", issued.Add(time.Second))
	require.NoError(t, err)
	require.False(t, ok, "codes issued before the cutoff are expired")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Consume(ctx, accountID, "123456", time.Time{})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
}
