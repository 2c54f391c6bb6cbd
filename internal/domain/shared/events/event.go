package events

import (
	"time"
)

// Event domains name the bus stream an event belongs to.
const (
	DomainSubscription = "subscription"
	DomainEntitlement  = "entitlement"
	DomainEmail        = "email"
)

// DomainEvent is an immutable fact produced by a state transition.
// Events are serialized into outbox envelopes, so implementations must be JSON-friendly.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetEventDomain() string
	GetCorrelationID() string
	GetOccurredAt() time.Time
}

// Notifiable is implemented by events that may require a customer email.
type Notifiable interface {
	ShouldSendEmail() bool
}
