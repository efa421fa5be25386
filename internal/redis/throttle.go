package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle allows one event per key per interval.
type Throttle struct {
	client   *redis.Client
	prefix   string
	interval time.Duration
}

func NewThrottle(client *redis.Client, prefix string, interval time.Duration) *Throttle {
	return &Throttle{client: client, prefix: prefix, interval: interval}
}

// Allow reports whether the event may proceed and records it if so.
func (t *Throttle) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := t.client.SetNX(ctx, fmt.Sprintf("%s:%s", t.prefix, key), "1", t.interval).Result()
	if err != nil {
		return false, fmt.Errorf("throttle: %w", err)
	}
	return ok, nil
}

// Reset clears the key so the next event is allowed immediately.
func (t *Throttle) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, fmt.Sprintf("%s:%s", t.prefix, key)).Err()
}
