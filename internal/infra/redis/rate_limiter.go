package redis

import (
	"context"
	"time"
)

type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// WaitAllow blocks until the key admits another call or the context ends.
// With limit=1 this enforces a minimum spacing of `window` between calls,
// which is how outgoing shared-registry traffic is throttled.
func (r *RateLimiter) WaitAllow(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		ok, err := r.Allow(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		pause := window / 4
		if pause < 50*time.Millisecond {
			pause = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

func RegistrySpacingKey() string { return "throttle:registry" }
