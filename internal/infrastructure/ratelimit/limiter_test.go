package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlidingWindowLimiter_PerMinute(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerMinute: 5})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed, "6th request should be denied")
}

func TestSlidingWindowLimiter_KeysAreIndependent(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerMinute: 1})
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSlidingWindowLimiter_WindowSlides(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerMinute: 2})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "ops")
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, err := limiter.Allow(ctx, "ops")
	require.NoError(t, err)
	assert.False(t, allowed)

	now = start.Add(61 * time.Second)
	allowed, err = limiter.Allow(ctx, "ops")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSlidingWindowLimiter_HourWindowDominates(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerMinute: 10, RequestsPerHour: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "ops")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "ops")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestSlidingWindowLimiter_Reset(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerMinute: 1})
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "ops")
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "ops"))

	allowed, err := limiter.Allow(ctx, "ops")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSlidingWindowLimiter_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerMinute: 1})
	mr.Close()

	_, err := limiter.Allow(context.Background(), "ops")

	assert.Error(t, err)
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{RequestsPerHour: 1}.Enabled())
}
