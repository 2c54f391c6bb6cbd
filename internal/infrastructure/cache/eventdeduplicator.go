package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// eventKeyPrefix namespaces consumer dedupe keys away from other service data
const eventKeyPrefix = "chatdesk:dedupe:"

// EventDeduplicator provides Redis-based at-most-once claims for bus consumers.
type EventDeduplicator struct {
	client *redis.Client
}

// NewEventDeduplicator creates a deduplicator backed by Redis SET NX.
func NewEventDeduplicator(client *redis.Client) *EventDeduplicator {
	return &EventDeduplicator{client: client}
}

func (d *EventDeduplicator) buildKey(key string) string {
	return eventKeyPrefix + key
}

// Claim atomically takes the key for ttl using SetNX.
// Returns false when another delivery already holds it.
func (d *EventDeduplicator) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := d.client.SetNX(ctx, d.buildKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim dedupe key: %w", err)
	}
	return acquired, nil
}

// Release drops a claim so a failed delivery can be retried.
func (d *EventDeduplicator) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release dedupe key: %w", err)
	}
	return nil
}
