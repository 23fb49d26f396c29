package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// VelocityTracker keeps per-user transaction timestamps in Redis sorted
// sets so windowed counts are a single round trip on the hot path. The
// database remains the source of truth; callers fall back to it when
// Redis is unavailable.
type VelocityTracker struct {
	client *redis.Client
	logger *zap.Logger

	// retention bounds how far back timestamps are kept
	retention time.Duration
}

// NewVelocityTracker creates a velocity tracker retaining 24 hours of
// activity per user.
func NewVelocityTracker(client *redis.Client, logger *zap.Logger) *VelocityTracker {
	return &VelocityTracker{
		client:    client,
		logger:    logger,
		retention: 24 * time.Hour,
	}
}

func velocityKey(userID string) string {
	return "fds:velocity:" + userID
}

// Record adds a transaction timestamp for the user and prunes expired
// entries.
func (v *VelocityTracker) Record(ctx context.Context, userID string, at time.Time) error {
	key := velocityKey(userID)
	cutoff := at.Add(-v.retention)

	pipe := v.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: fmt.Sprintf("%d", at.UnixNano()),
	})
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff.UnixMilli()))
	pipe.Expire(ctx, key, v.retention+time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		v.logger.Warn("velocity record failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("recording velocity: %w", err)
	}
	return nil
}

// CountSince returns the number of recorded transactions for the user
// at or after the given instant.
func (v *VelocityTracker) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	count, err := v.client.ZCount(ctx, velocityKey(userID),
		fmt.Sprintf("%d", since.UnixMilli()), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("counting velocity: %w", err)
	}
	return int(count), nil
}
