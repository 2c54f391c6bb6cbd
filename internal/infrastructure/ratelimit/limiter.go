// Package ratelimit provides a Redis-backed sliding-window limiter shared by
// every instance of the billing API.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chatdesk:ratelimit:"

// Config sets the request budget per window; a zero limit disables that window.
type Config struct {
	RequestsPerMinute int
	RequestsPerHour   int
}

// Enabled reports whether any window is limited.
func (c Config) Enabled() bool {
	return c.RequestsPerMinute > 0 || c.RequestsPerHour > 0
}

type SlidingWindowLimiter struct {
	client *redis.Client
	config Config
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a Redis-backed sliding window limiter.
func NewSlidingWindowLimiter(client *redis.Client, config Config) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{client: client, config: config, now: time.Now}
}

// Allow records one request for key and reports whether it fits every window.
// A rejected request still counts against the window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windows := []struct {
		duration time.Duration
		limit    int
	}{
		{time.Minute, l.config.RequestsPerMinute},
		{time.Hour, l.config.RequestsPerHour},
	}

	now := l.now()
	for _, window := range windows {
		if window.limit <= 0 {
			continue
		}
		allowed, err := l.checkWindow(ctx, key, window.duration, window.limit, now)
		if err != nil {
			return false, err
		}
		if !allowed {
			return false, nil
		}
	}
	return true, nil
}

func (l *SlidingWindowLimiter) checkWindow(ctx context.Context, key string, window time.Duration, limit int, now time.Time) (bool, error) {
	redisKey := l.windowKey(key, window)
	windowStart := now.Add(-window).UnixNano()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	zcard := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, redisKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}
	return zcard.Val() < int64(limit), nil
}

// Reset clears every window of key.
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	keys := []string{l.windowKey(key, time.Minute), l.windowKey(key, time.Hour)}
	if err := l.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for %s: %w", key, err)
	}
	return nil
}

func (l *SlidingWindowLimiter) windowKey(identifier string, window time.Duration) string {
	return keyPrefix + identifier + ":" + window.String()
}
