package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// WindowRepo keeps short-lived burst counters. Each key is an INCR counter
// with a TTL equal to the window; the counter disappears when the window
// closes.
type WindowRepo struct {
	client *goredis.Client
}

func NewWindowRepo(client *goredis.Client) *WindowRepo {
	return &WindowRepo{client: client}
}

func (r *WindowRepo) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid window payload")
	}

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("increment window key: %w", err)
	}

	count := incr.Val()
	ttl := ttlCmd.Val()
	if ttl < 0 {
		// Fresh key, or one that lost its TTL: (re)arm the window.
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("set window key ttl: %w", err)
		}
		ttl = window
	}

	return count, ttl, nil
}
