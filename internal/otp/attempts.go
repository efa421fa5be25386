package otp

import (
	"context"
	"sync"
	"time"

	"github.com/hackgods/blood-bank/internal/clock"
)

// AttemptLimiter counts failed verifications per key within a window.
type AttemptLimiter interface {
	Failures(ctx context.Context, key string) (int, error)
	// Fail records one failure and returns the count inside the current window.
	Fail(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type attemptWindow struct {
	count   int
	expires time.Time
}

// LocalAttempts is an in-process AttemptLimiter for single-instance setups.
type LocalAttempts struct {
	mu     sync.Mutex
	window time.Duration
	clock  clock.Clock
	keys   map[string]attemptWindow
}

func NewLocalAttempts(window time.Duration, clk clock.Clock) *LocalAttempts {
	if clk == nil {
		clk = clock.System()
	}
	return &LocalAttempts{window: window, clock: clk, keys: make(map[string]attemptWindow)}
}

func (l *LocalAttempts) Failures(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current(key).count, nil
}

func (l *LocalAttempts) Fail(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.current(key)
	if w.count == 0 {
		w.expires = l.clock.Now().Add(l.window)
	}
	w.count++
	l.keys[key] = w
	return w.count, nil
}

func (l *LocalAttempts) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}

func (l *LocalAttempts) current(key string) attemptWindow {
	w, ok := l.keys[key]
	if !ok {
		return attemptWindow{}
	}
	if !l.clock.Now().Before(w.expires) {
		delete(l.keys, key)
		return attemptWindow{}
	}
	return w
}
