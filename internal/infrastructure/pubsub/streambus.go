package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/shared/logger"
)

const (
	streamKeyPrefix = "chatdesk:stream:"
	fieldEnvelope   = "envelope"
	fieldEventType  = "event_type"
	// defaultStreamMaxLen caps each stream approximately; consumers ack long before trimming matters.
	defaultStreamMaxLen = 100000
)

// StreamKey maps a routing key such as "default.email" onto its Redis stream.
func StreamKey(routingKey string) string {
	return streamKeyPrefix + routingKey
}

// RedisStreamBus implements outbox.MessageBus on Redis Streams. Each routing
// key is a stream; consumer groups give at-least-once delivery.
type RedisStreamBus struct {
	client *redis.Client
	maxLen int64
	logger logger.Interface
}

// NewRedisStreamBus creates a MessageBus that appends to Redis streams.
func NewRedisStreamBus(client *redis.Client, logger logger.Interface) *RedisStreamBus {
	return &RedisStreamBus{
		client: client,
		maxLen: defaultStreamMaxLen,
		logger: logger,
	}
}

var _ outbox.MessageBus = (*RedisStreamBus)(nil)

func (b *RedisStreamBus) Publish(ctx context.Context, envelope outbox.Envelope, routingKey string) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(routingKey),
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			fieldEnvelope:  string(data),
			fieldEventType: envelope.EventType,
		},
	}).Result()
	if err != nil {
		b.logger.Errorw("failed to publish envelope",
			"routing_key", routingKey,
			"envelope_id", envelope.ID,
			"event_type", envelope.EventType,
			"error", err,
		)
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}

	b.logger.Debugw("envelope published",
		"routing_key", routingKey,
		"envelope_id", envelope.ID,
		"stream_id", id,
	)
	return nil
}

func decodeMessage(msg redis.XMessage) (outbox.Envelope, error) {
	var env outbox.Envelope
	raw, ok := msg.Values[fieldEnvelope].(string)
	if !ok {
		return env, fmt.Errorf("stream message %s has no envelope field", msg.ID)
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return env, fmt.Errorf("failed to decode stream message %s: %w", msg.ID, err)
	}
	return env, nil
}
