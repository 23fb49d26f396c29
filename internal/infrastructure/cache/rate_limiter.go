package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window request limiter backed by Redis.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRateLimiter creates a Redis-backed rate limiter.
func NewRateLimiter(client *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger}
}

// Allow reports whether the key is under its limit for the window, and
// counts this request against it.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := "fds:ratelimit:" + key

	pipe := rl.client.TxPipeline()
	// The expiry is set only when the window's key is created, so the
	// window is not extended by later requests.
	pipe.SetNX(ctx, redisKey, 0, window)
	incr := pipe.Incr(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}
