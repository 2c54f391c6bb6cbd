package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatdesk/internal/application/billing/paymentgateway"
	subscriptionUsecases "chatdesk/internal/application/subscription/usecases"
	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/db"
	"chatdesk/internal/shared/logger"
)

// ProcessedEventStore is the ledger of provider event ids already applied.
type ProcessedEventStore interface {
	IsProcessed(ctx context.Context, providerEventID string) (bool, error)
	// MarkProcessed must run in the same transaction as the state change.
	MarkProcessed(ctx context.Context, providerEventID, eventType string, at time.Time) error
}

// ReconcileWebhookUseCase maps verified provider events onto subscription transitions.
// Actions are derived from diffs against local state, so redelivery is harmless.
type ReconcileWebhookUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	planRepo         subscription.PlanRepository
	processed        ProcessedEventStore
	gateway          paymentgateway.PaymentGateway
	committer        subscriptionUsecases.EventCommitter
	policy           entitlement.Policy
	gatewayTimeout   time.Duration
	now              func() time.Time
	logger           logger.Interface
}

// NewReconcileWebhookUseCase creates the reconciler. gatewayTimeout bounds each
// provider fetch made while handling an event.
func NewReconcileWebhookUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	planRepo subscription.PlanRepository,
	processed ProcessedEventStore,
	gateway paymentgateway.PaymentGateway,
	committer subscriptionUsecases.EventCommitter,
	policy entitlement.Policy,
	gatewayTimeout time.Duration,
	logger logger.Interface,
) *ReconcileWebhookUseCase {
	return &ReconcileWebhookUseCase{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		processed:        processed,
		gateway:          gateway,
		committer:        committer,
		policy:           policy,
		gatewayTimeout:   gatewayTimeout,
		now:              biztime.NowUTC,
		logger:           logger,
	}
}

// Reconcile applies one provider event. It returns applied=false for unknown,
// malformed, duplicate, or no-op events; only persistence failures are errors.
func (uc *ReconcileWebhookUseCase) Reconcile(ctx context.Context, eventType string, event *paymentgateway.Event) (bool, error) {
	if event == nil {
		uc.logger.Warnw("webhook event is nil", "event_type", eventType)
		return false, nil
	}
	if eventType == "" {
		eventType = event.Type
	}

	switch eventType {
	case paymentgateway.EventSubscriptionCreated, paymentgateway.EventSubscriptionUpdated:
		return uc.handleSubscriptionChanged(ctx, eventType, event)
	case paymentgateway.EventSubscriptionDeleted:
		return uc.handleSubscriptionDeleted(ctx, event)
	case paymentgateway.EventInvoicePaymentFailed:
		return uc.handlePaymentFailed(ctx, event)
	case paymentgateway.EventInvoicePaymentSucceeded, paymentgateway.EventInvoicePaid:
		return uc.handlePaymentSucceeded(ctx, eventType, event)
	default:
		return uc.HandleUnknownEvent(eventType, event), nil
	}
}

// HandleUnknownEvent logs and drops event types this engine does not act on.
func (uc *ReconcileWebhookUseCase) HandleUnknownEvent(eventType string, event *paymentgateway.Event) bool {
	uc.logger.Infow("ignoring unhandled webhook event type",
		"event_type", eventType,
		"event_id", event.ID,
	)
	return false
}

func (uc *ReconcileWebhookUseCase) handleSubscriptionChanged(ctx context.Context, eventType string, event *paymentgateway.Event) (bool, error) {
	if event.ProviderSubscriptionID == "" {
		uc.logger.Warnw("subscription event without subscription id", "event_id", event.ID, "event_type", eventType)
		return false, nil
	}

	state := uc.fetchState(ctx, event)
	if state == nil {
		uc.logger.Warnw("no subscription state available for webhook",
			"event_id", event.ID,
			"provider_subscription_id", event.ProviderSubscriptionID,
		)
		return false, nil
	}

	plan, err := uc.resolvePlan(ctx, state.PriceID, event)
	if err != nil {
		return false, err
	}
	freePlan, err := subscriptionUsecases.LoadFreePlan(ctx, uc.planRepo, uc.policy.DefaultDowngradePlanName)
	if err != nil {
		return false, err
	}

	return uc.apply(ctx, event, eventType, func(txCtx context.Context, now time.Time) ([]events.DomainEvent, bool, error) {
		sub, err := uc.subscriptionRepo.GetByProviderID(txCtx, event.ProviderSubscriptionID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load subscription: %w", err)
		}
		if sub == nil {
			return uc.createFromProvider(txCtx, event, state, plan, now)
		}

		wasCurrent := sub.Status().IsCurrent()
		tr, err := sub.ApplyProviderState(*state, plan, freePlan, now)
		if err != nil {
			uc.logger.Warnw("provider state rejected", "subscription_id", sub.ID(), "error", err)
			return nil, false, nil
		}
		if tr.IgnoredStatus != "" {
			uc.logger.Warnw("ignoring provider status the local subscription cannot move to",
				"subscription_id", sub.ID(),
				"local_status", sub.Status(),
				"provider_status", tr.IgnoredStatus,
			)
		}
		raised, err := subscriptionUsecases.SavePromotingTransition(txCtx, uc.subscriptionRepo, sub, tr, wasCurrent, now)
		if err != nil {
			return nil, false, err
		}
		return raised, tr.Changed(), nil
	})
}

// createFromProvider inserts the first local row for a provider subscription. When
// that row is current it terminalizes the tenant's previous current row in the
// same transaction; an incomplete row waits for promotion.
func (uc *ReconcileWebhookUseCase) createFromProvider(
	ctx context.Context,
	event *paymentgateway.Event,
	state *subscription.ProviderState,
	plan *subscription.Plan,
	now time.Time,
) ([]events.DomainEvent, bool, error) {
	if event.TenantID == 0 {
		uc.logger.Warnw("cannot create subscription without tenant metadata",
			"event_id", event.ID,
			"provider_subscription_id", event.ProviderSubscriptionID,
		)
		return nil, false, nil
	}
	if plan == nil {
		uc.logger.Warnw("cannot create subscription for unknown price",
			"event_id", event.ID,
			"price_id", state.PriceID,
		)
		return nil, false, nil
	}
	if state.Status.IsTerminal() {
		uc.logger.Infow("skipping creation of already terminal subscription",
			"provider_subscription_id", event.ProviderSubscriptionID,
			"status", state.Status,
		)
		return nil, false, nil
	}

	sub, tr, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		TenantID:               event.TenantID,
		Plan:                   plan,
		ProviderSubscriptionID: event.ProviderSubscriptionID,
		Status:                 state.Status,
		CurrentPeriodStart:     state.CurrentPeriodStart,
		CurrentPeriodEnd:       state.CurrentPeriodEnd,
		CancelAtPeriodEnd:      state.CancelAtPeriodEnd,
		Reason:                 subscription.ReasonProviderUpdate,
	}, now)
	if err != nil {
		uc.logger.Warnw("invalid subscription from provider", "event_id", event.ID, "error", err)
		return nil, false, nil
	}

	var raised []events.DomainEvent
	if sub.Status().IsCurrent() {
		raised, err = subscriptionUsecases.SupersedeCurrent(ctx, uc.subscriptionRepo, event.TenantID, 0, now)
		if err != nil {
			return nil, false, err
		}
	}
	if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
		return nil, false, fmt.Errorf("failed to create subscription: %w", err)
	}
	tr.BindIDs()

	uc.logger.Infow("subscription created from provider",
		"subscription_id", sub.ID(),
		"tenant_id", sub.TenantID(),
		"plan_id", sub.PlanID(),
		"status", sub.Status(),
	)
	return append(raised, tr.Events()...), true, nil
}

func (uc *ReconcileWebhookUseCase) handleSubscriptionDeleted(ctx context.Context, event *paymentgateway.Event) (bool, error) {
	if event.ProviderSubscriptionID == "" {
		uc.logger.Warnw("deletion event without subscription id", "event_id", event.ID)
		return false, nil
	}
	freePlan, err := subscriptionUsecases.LoadFreePlan(ctx, uc.planRepo, uc.policy.DefaultDowngradePlanName)
	if err != nil {
		return false, err
	}

	return uc.apply(ctx, event, paymentgateway.EventSubscriptionDeleted, func(txCtx context.Context, now time.Time) ([]events.DomainEvent, bool, error) {
		sub, err := uc.loadExisting(txCtx, event)
		if sub == nil || err != nil {
			return nil, false, err
		}
		tr := sub.MarkDeleted(freePlan, now)
		if err := subscriptionUsecases.SaveTransition(txCtx, uc.subscriptionRepo, sub, tr); err != nil {
			return nil, false, err
		}
		return tr.Events(), tr.Changed(), nil
	})
}

func (uc *ReconcileWebhookUseCase) handlePaymentFailed(ctx context.Context, event *paymentgateway.Event) (bool, error) {
	if event.ProviderSubscriptionID == "" || event.AttemptCount < 0 {
		uc.logger.Warnw("malformed payment failure event", "event_id", event.ID, "attempt_count", event.AttemptCount)
		return false, nil
	}

	return uc.apply(ctx, event, paymentgateway.EventInvoicePaymentFailed, func(txCtx context.Context, now time.Time) ([]events.DomainEvent, bool, error) {
		sub, err := uc.loadExisting(txCtx, event)
		if sub == nil || err != nil {
			return nil, false, err
		}
		occurredAt := event.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = now
		}
		wasCurrent := sub.Status().IsCurrent()
		tr := sub.RecordPaymentFailure(event.AttemptCount, occurredAt, event.FailureReason, uc.policy, now)
		raised, err := subscriptionUsecases.SavePromotingTransition(txCtx, uc.subscriptionRepo, sub, tr, wasCurrent, now)
		if err != nil {
			return nil, false, err
		}
		if sub.HasReachedMaxRetries() {
			uc.logger.Warnw("subscription reached max payment retries",
				"subscription_id", sub.ID(),
				"tenant_id", sub.TenantID(),
				"attempt_count", sub.PaymentRetryCount(),
			)
		}
		return raised, tr.Changed(), nil
	})
}

func (uc *ReconcileWebhookUseCase) handlePaymentSucceeded(ctx context.Context, eventType string, event *paymentgateway.Event) (bool, error) {
	if event.ProviderSubscriptionID == "" {
		// one-off invoices carry no subscription
		uc.logger.Debugw("invoice event without subscription", "event_id", event.ID)
		return false, nil
	}

	return uc.apply(ctx, event, eventType, func(txCtx context.Context, now time.Time) ([]events.DomainEvent, bool, error) {
		sub, err := uc.loadExisting(txCtx, event)
		if sub == nil || err != nil {
			return nil, false, err
		}
		wasCurrent := sub.Status().IsCurrent()
		tr := sub.RecordPaymentSuccess(now)
		raised, err := subscriptionUsecases.SavePromotingTransition(txCtx, uc.subscriptionRepo, sub, tr, wasCurrent, now)
		if err != nil {
			return nil, false, err
		}
		return raised, tr.Changed(), nil
	})
}

type reconcileStep func(txCtx context.Context, now time.Time) ([]events.DomainEvent, bool, error)

// apply runs step in one transaction guarded by the processed-event ledger and
// re-runs it from a fresh read when the subscription row's version moved on.
func (uc *ReconcileWebhookUseCase) apply(ctx context.Context, event *paymentgateway.Event, eventType string, step reconcileStep) (bool, error) {
	var applied bool
	err := db.RetryOnConflict(ctx, func(ctx context.Context) error {
		applied = false
		return uc.committer.Commit(ctx, func(txCtx context.Context) ([]events.DomainEvent, error) {
			if event.ID != "" {
				done, err := uc.processed.IsProcessed(txCtx, event.ID)
				if err != nil {
					return nil, fmt.Errorf("failed to check processed webhook events: %w", err)
				}
				if done {
					uc.logger.Infow("webhook event already processed", "event_id", event.ID, "event_type", eventType)
					return nil, nil
				}
			}

			now := uc.now()
			raised, changed, err := step(txCtx, now)
			if err != nil {
				return nil, err
			}
			applied = changed

			if event.ID != "" && changed {
				if err := uc.processed.MarkProcessed(txCtx, event.ID, eventType, now); err != nil {
					return nil, fmt.Errorf("failed to record processed webhook event: %w", err)
				}
			}
			return raised, nil
		})
	})
	if err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			uc.logger.Errorw("gave up reconciling webhook after repeated version conflicts", "event_id", event.ID)
		}
		return false, err
	}
	return applied, nil
}

func (uc *ReconcileWebhookUseCase) loadExisting(ctx context.Context, event *paymentgateway.Event) (*subscription.Subscription, error) {
	sub, err := uc.subscriptionRepo.GetByProviderID(ctx, event.ProviderSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		uc.logger.Warnw("subscription not found for webhook",
			"event_id", event.ID,
			"event_type", event.Type,
			"provider_subscription_id", event.ProviderSubscriptionID,
		)
	}
	return sub, nil
}

// fetchState prefers the gateway's current view over the possibly stale payload.
func (uc *ReconcileWebhookUseCase) fetchState(ctx context.Context, event *paymentgateway.Event) *subscription.ProviderState {
	fetchCtx, cancel := context.WithTimeout(ctx, uc.gatewayTimeout)
	defer cancel()

	state, err := uc.gateway.GetSubscription(fetchCtx, event.ProviderSubscriptionID)
	if err == nil && state != nil {
		return state
	}
	uc.logger.Warnw("failed to fetch subscription from gateway, using webhook payload",
		"provider_subscription_id", event.ProviderSubscriptionID,
		"error", err,
	)
	return event.Snapshot
}

// resolvePlan returns nil when the price is unknown locally; callers keep the previous plan.
func (uc *ReconcileWebhookUseCase) resolvePlan(ctx context.Context, priceID string, event *paymentgateway.Event) (*subscription.Plan, error) {
	if priceID == "" {
		return nil, nil
	}
	plan, err := uc.planRepo.GetByProviderPriceID(ctx, priceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan for price %s: %w", priceID, err)
	}
	if plan == nil {
		uc.logger.Warnw("plan not found for provider price, keeping previous plan",
			"price_id", priceID,
			"event_id", event.ID,
			"provider_subscription_id", event.ProviderSubscriptionID,
		)
	}
	return plan, nil
}
