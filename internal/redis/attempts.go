package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptCounter counts failures per key in a fixed window that starts at the
// first failure.
type AttemptCounter struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func NewAttemptCounter(client *redis.Client, prefix string, window time.Duration) *AttemptCounter {
	return &AttemptCounter{client: client, prefix: prefix, window: window}
}

func (c *AttemptCounter) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *AttemptCounter) Failures(ctx context.Context, key string) (int, error) {
	n, err := c.client.Get(ctx, c.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return n, nil
}

func (c *AttemptCounter) Fail(ctx context.Context, key string) (int, error) {
	k := c.key(key)
	n, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	if n == 1 {
		if err := c.client.Expire(ctx, k, c.window).Err(); err != nil {
			return int(n), fmt.Errorf("expire attempts: %w", err)
		}
	}
	return int(n), nil
}

func (c *AttemptCounter) Reset(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}
