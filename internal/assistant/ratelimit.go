package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter bounds assistant requests per member over a sliding window.
// Backed by Redis so the count survives restarts and is shared between
// replicas; without Redis every request is allowed.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: client, limit: limit, window: window}
}

func (r *RateLimiter) Check(ctx context.Context, memberID string) error {
	if r.redis == nil || r.limit <= 0 {
		return nil
	}
	key := fmt.Sprintf("assistant_requests:%s", memberID)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		// A broken limiter must not take the assistant down.
		return nil
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	if count > int64(r.limit) {
		return ErrTooManyRequests
	}
	return nil
}
