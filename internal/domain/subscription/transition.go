package subscription

import (
	"chatdesk/internal/domain/shared/events"
	vo "chatdesk/internal/domain/subscription/valueobjects"
)

// Transition is the outcome of one state-machine action: the events to publish
// after commit and, for downgrades, the free-tier row that must be inserted in
// the same transaction.
type Transition struct {
	Replacement *Subscription
	// IgnoredStatus is set when the provider reported a status the local row cannot move to.
	IgnoredStatus vo.SubscriptionStatus

	events  []events.DomainEvent
	pending []pendingEvent
	changed bool
}

// pendingEvent belongs to a row that has no database ID yet.
type pendingEvent struct {
	event   *SubscriptionStatusEvent
	subject *Subscription
}

func (t *Transition) Events() []events.DomainEvent {
	return t.events
}

// Changed reports whether the aggregate must be persisted.
func (t *Transition) Changed() bool {
	return t.changed || t.Replacement != nil
}

// BindIDs copies database IDs into events raised for rows that were inserted after the event was built.
func (t *Transition) BindIDs() {
	for _, p := range t.pending {
		p.event.SubscriptionID = p.subject.ID()
	}
}

func (t *Transition) add(e events.DomainEvent) {
	t.events = append(t.events, e)
}

func (t *Transition) addFor(subject *Subscription, e *SubscriptionStatusEvent) {
	t.events = append(t.events, e)
	t.pending = append(t.pending, pendingEvent{event: e, subject: subject})
}

func (t *Transition) merge(other *Transition) {
	if other == nil {
		return
	}
	t.events = append(t.events, other.events...)
	t.pending = append(t.pending, other.pending...)
	t.changed = t.changed || other.changed
	if other.Replacement != nil {
		t.Replacement = other.Replacement
	}
}
