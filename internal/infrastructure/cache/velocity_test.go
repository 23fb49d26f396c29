package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestVelocityTracker_RecordAndCount(t *testing.T) {
	client := newTestRedis(t)
	tracker := NewVelocityTracker(client, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, tracker.Record(ctx, "USR-1", now.Add(-30*time.Minute)))
	require.NoError(t, tracker.Record(ctx, "USR-1", now.Add(-10*time.Minute)))
	require.NoError(t, tracker.Record(ctx, "USR-1", now.Add(-2*time.Hour)))

	lastHour, err := tracker.CountSince(ctx, "USR-1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, lastHour)

	lastDay, err := tracker.CountSince(ctx, "USR-1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, lastDay)
}

func TestVelocityTracker_UsersAreIsolated(t *testing.T) {
	client := newTestRedis(t)
	tracker := NewVelocityTracker(client, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, tracker.Record(ctx, "USR-1", now))

	count, err := tracker.CountSince(ctx, "USR-2", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVelocityTracker_PrunesOldEntries(t *testing.T) {
	client := newTestRedis(t)
	tracker := NewVelocityTracker(client, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, tracker.Record(ctx, "USR-1", now.Add(-48*time.Hour)))
	// The next record prunes everything past retention
	require.NoError(t, tracker.Record(ctx, "USR-1", now))

	count, err := tracker.CountSince(ctx, "USR-1", now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRateLimiter_Allow(t *testing.T) {
	client := newTestRedis(t)
	limiter := NewRateLimiter(client, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "client-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, err := limiter.Allow(ctx, "client-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request exceeds the limit")

	// A different client has its own budget
	allowed, err = limiter.Allow(ctx, "client-2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCache_GetSetDelete(t *testing.T) {
	client := newTestRedis(t)
	c := NewCache(client, zap.NewNop())
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorAs(t, err, &ErrKeyNotFound{})

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.Error(t, err)
}
