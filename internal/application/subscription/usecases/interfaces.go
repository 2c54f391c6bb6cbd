package usecases

import (
	"context"
	"fmt"
	"time"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
)

// EventCommitter runs a unit of work and publishes its events after commit.
// *outbox.Dispatcher satisfies it.
type EventCommitter interface {
	Commit(ctx context.Context, work outbox.UnitOfWork) error
}

// SweepRecorder observes per-item sweeper outcomes; it may be nil.
type SweepRecorder interface {
	RecordSweep(outcome string)
}

// SaveTransition persists sub and, for downgrades, inserts the replacement row in
// the same transaction. The prior row is terminalized before the replacement is
// inserted so the tenant never has two current subscriptions.
func SaveTransition(ctx context.Context, repo subscription.SubscriptionRepository, sub *subscription.Subscription, tr *subscription.Transition) error {
	if tr == nil || !tr.Changed() {
		return nil
	}
	if err := repo.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription %d: %w", sub.ID(), err)
	}
	if tr.Replacement != nil {
		if err := repo.Create(ctx, tr.Replacement); err != nil {
			return fmt.Errorf("failed to create replacement subscription for tenant %d: %w", sub.TenantID(), err)
		}
	}
	tr.BindIDs()
	return nil
}

// SupersedeCurrent terminalizes the tenant's current row unless it is the row
// with keepID. Call it only once the incoming row is itself current.
func SupersedeCurrent(ctx context.Context, repo subscription.SubscriptionRepository, tenantID, keepID uint, now time.Time) ([]events.DomainEvent, error) {
	prior, err := repo.GetCurrentByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current subscription: %w", err)
	}
	if prior == nil || (keepID != 0 && prior.ID() == keepID) {
		return nil, nil
	}
	tr := prior.Supersede(subscription.ReasonSuperseded, now)
	if err := SaveTransition(ctx, repo, prior, tr); err != nil {
		return nil, err
	}
	return tr.Events(), nil
}

// SavePromotingTransition is SaveTransition for a row that may have just become
// current, e.g. incomplete to active. The tenant's previous current row is
// superseded first and its events lead the returned slice.
func SavePromotingTransition(ctx context.Context, repo subscription.SubscriptionRepository, sub *subscription.Subscription, tr *subscription.Transition, wasCurrent bool, now time.Time) ([]events.DomainEvent, error) {
	if tr == nil || !tr.Changed() {
		return nil, nil
	}
	var raised []events.DomainEvent
	if !wasCurrent && sub.Status().IsCurrent() {
		superseded, err := SupersedeCurrent(ctx, repo, sub.TenantID(), sub.ID(), now)
		if err != nil {
			return nil, err
		}
		raised = superseded
	}
	if err := SaveTransition(ctx, repo, sub, tr); err != nil {
		return nil, err
	}
	return append(raised, tr.Events()...), nil
}

// LoadFreePlan resolves the downgrade target by name. A missing plan yields nil
// so cancellation proceeds without replacement.
func LoadFreePlan(ctx context.Context, plans subscription.PlanRepository, name string) (*subscription.Plan, error) {
	if name == "" {
		return nil, nil
	}
	plan, err := plans.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load downgrade plan %q: %w", name, err)
	}
	return plan, nil
}
