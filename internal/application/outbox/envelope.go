// Package outbox persists domain events with the state change that raised them
// and publishes them to the message bus once the transaction has committed.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatdesk/internal/domain/shared/events"
)

const QueueDefault = "default"

// RoutingKey derives the bus destination from a (queueType, domain) pair, e.g. "default.email".
func RoutingKey(queueType, domain string) string {
	return queueType + "." + domain
}

// Envelope is the wire format shared by the outbox table and the bus.
type Envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	CorrelationID string          `json:"correlation_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope creates a pending envelope carrying the JSON form of e.
func NewEnvelope(e events.DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s event: %w", e.GetEventType(), err)
	}
	return Envelope{
		ID:            uuid.NewString(),
		EventType:     e.GetEventType(),
		AggregateID:   e.GetAggregateID(),
		CorrelationID: e.GetCorrelationID(),
		OccurredAt:    e.GetOccurredAt(),
		Payload:       payload,
	}, nil
}

// Decode unmarshals the payload into the concrete event type.
func (e Envelope) Decode(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// MessageBus delivers envelopes at least once.
type MessageBus interface {
	Publish(ctx context.Context, envelope Envelope, routingKey string) error
}

// Handler consumes envelopes from one routing key. Handlers must tolerate redelivery.
type Handler interface {
	Handle(ctx context.Context, envelope Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, envelope Envelope) error {
	return f(ctx, envelope)
}

// routingKeysFor fans an event out to its own domain stream and, when it
// requests a customer notification, to the email stream.
func routingKeysFor(e events.DomainEvent) []string {
	keys := []string{RoutingKey(QueueDefault, e.GetEventDomain())}
	if n, ok := e.(events.Notifiable); ok && n.ShouldSendEmail() {
		keys = append(keys, RoutingKey(QueueDefault, events.DomainEmail))
	}
	return keys
}
