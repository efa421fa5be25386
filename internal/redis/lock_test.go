package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockerReleasesKeyAfterRun(t *testing.T) {
	mr, client := newMiniRedis(t)
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond)

	ran := false
	err := locker.WithLock(context.Background(), "stock:O+", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:stock:O+"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:stock:O+"))
}

func TestRedisLockerReturnsFnError(t *testing.T) {
	_, client := newMiniRedis(t)
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond)

	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "stock:A+", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRedisLockerGivesUpWhenHeld(t *testing.T) {
	mr, client := newMiniRedis(t)
	require.NoError(t, mr.Set("lock:stock:B+", "someone-else"))

	locker := NewRedisLocker(client, time.Second, 60*time.Millisecond)
	err := locker.WithLock(context.Background(), "stock:B+", func(ctx context.Context) error {
		t.Fatal("must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	got, _ := mr.Get("lock:stock:B+")
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerSerialisesSameKey(t *testing.T) {
	_, client := newMiniRedis(t)
	locker := NewRedisLocker(client, time.Second, 2*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "stock:AB-", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestLocalLockerSerialisesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(context.Background(), "stock:O-", func(ctx context.Context) error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestLocalLockerHonoursCancelledContext(t *testing.T) {
	locker := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := locker.WithLock(ctx, "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
