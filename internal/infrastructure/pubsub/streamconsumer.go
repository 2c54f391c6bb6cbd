package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/shared/logger"
)

const (
	defaultBatchSize     = 32
	defaultBlock         = 5 * time.Second
	defaultMinIdle       = time.Minute
	defaultMaxDeliveries = 10
	errorBackoff         = time.Second
)

// ConsumerConfig tunes one consumer group member. A negative Block polls without blocking.
type ConsumerConfig struct {
	Group         string
	Consumer      string
	BatchSize     int64
	Block         time.Duration
	MinIdle       time.Duration
	MaxDeliveries int64
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Block == 0 {
		c.Block = defaultBlock
	}
	if c.MinIdle <= 0 {
		c.MinIdle = defaultMinIdle
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = defaultMaxDeliveries
	}
	return c
}

// DeliveryRecorder observes handler outcomes; it may be nil.
type DeliveryRecorder interface {
	RecordDelivery(routingKey, result string)
}

const (
	DeliveryAcked      = "acked"
	DeliveryFailed     = "failed"
	DeliveryDropped    = "dropped"
	DeliveryDeadLetter = "dead_letter"
)

// StreamConsumer feeds one routing key's stream to an outbox.Handler. Messages
// are acked only after the handler succeeds; failures stay pending and are
// reclaimed after MinIdle until MaxDeliveries is reached.
type StreamConsumer struct {
	client     *redis.Client
	routingKey string
	stream     string
	cfg        ConsumerConfig
	handler    outbox.Handler
	recorder   DeliveryRecorder
	logger     logger.Interface
}

// NewStreamConsumer creates a consumer group reader for routingKey that feeds handler.
func NewStreamConsumer(client *redis.Client, routingKey string, handler outbox.Handler, cfg ConsumerConfig, logger logger.Interface) *StreamConsumer {
	return &StreamConsumer{
		client:     client,
		routingKey: routingKey,
		stream:     StreamKey(routingKey),
		cfg:        cfg.withDefaults(),
		handler:    handler,
		logger:     logger.With("routing_key", routingKey, "group", cfg.Group),
	}
}

// SetDeliveryRecorder sets the metrics hook (optional dependency injection)
func (c *StreamConsumer) SetDeliveryRecorder(r DeliveryRecorder) {
	c.recorder = r
}

// EnsureGroup creates the stream and group when missing.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", c.cfg.Group, c.stream, err)
	}
	return nil
}

// Run consumes until ctx is canceled.
func (c *StreamConsumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.Infow("stream consumer started", "consumer", c.cfg.Consumer)

	for {
		if ctx.Err() != nil {
			c.logger.Infow("stream consumer stopped", "reason", ctx.Err())
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Errorw("stream poll failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// Poll reclaims stale pending messages, then reads new ones once. It returns
// the number of messages handled successfully.
func (c *StreamConsumer) Poll(ctx context.Context) (int, error) {
	handled, err := c.reclaim(ctx)
	if err != nil {
		return handled, err
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return handled, nil
		}
		return handled, fmt.Errorf("failed to read from %s: %w", c.stream, err)
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			if c.process(ctx, msg) {
				handled++
			}
		}
	}
	return handled, nil
}

func (c *StreamConsumer) reclaim(ctx context.Context) (int, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.cfg.Group,
		Idle:   c.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  c.cfg.BatchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list pending messages on %s: %w", c.stream, err)
	}

	var retry []string
	for _, p := range pending {
		if p.RetryCount >= c.cfg.MaxDeliveries {
			c.logger.Errorw("dropping message after max deliveries",
				"stream_id", p.ID,
				"deliveries", p.RetryCount,
			)
			c.ack(ctx, p.ID)
			c.record(DeliveryDeadLetter)
			continue
		}
		retry = append(retry, p.ID)
	}
	if len(retry) == 0 {
		return 0, nil
	}

	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.MinIdle,
		Messages: retry,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending messages on %s: %w", c.stream, err)
	}

	handled := 0
	for _, msg := range msgs {
		if c.process(ctx, msg) {
			handled++
		}
	}
	return handled, nil
}

func (c *StreamConsumer) process(ctx context.Context, msg redis.XMessage) bool {
	env, err := decodeMessage(msg)
	if err != nil {
		// redelivery cannot fix a malformed message
		c.logger.Warnw("dropping undecodable stream message", "stream_id", msg.ID, "error", err)
		c.ack(ctx, msg.ID)
		c.record(DeliveryDropped)
		return false
	}

	if err := c.handler.Handle(ctx, env); err != nil {
		c.logger.Warnw("handler failed, message left pending",
			"stream_id", msg.ID,
			"envelope_id", env.ID,
			"event_type", env.EventType,
			"error", err,
		)
		c.record(DeliveryFailed)
		return false
	}

	c.ack(ctx, msg.ID)
	c.record(DeliveryAcked)
	return true
}

func (c *StreamConsumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.cfg.Group, id).Err(); err != nil {
		c.logger.Errorw("failed to ack stream message", "stream_id", id, "error", err)
	}
}

func (c *StreamConsumer) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordDelivery(c.routingKey, result)
	}
}
