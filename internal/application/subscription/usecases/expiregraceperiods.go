package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatdesk/internal/application/billing/paymentgateway"
	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/db"
	"chatdesk/internal/shared/logger"
)

// Sweep outcomes reported to the SweepRecorder.
const (
	SweepOutcomeExpired = "expired"
	SweepOutcomeSkipped = "skipped"
	SweepOutcomeFailed  = "failed"
)

// ExpireGracePeriodsUseCase closes grace periods that ran out and downgrades
// subscriptions whose retries were exhausted without a grace period.
// It runs as a scheduled batch job; every item commits on its own.
type ExpireGracePeriodsUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	planRepo         subscription.PlanRepository
	gateway          paymentgateway.PaymentGateway
	committer        EventCommitter
	policy           entitlement.Policy
	gatewayTimeout   time.Duration
	recorder         SweepRecorder
	now              func() time.Time
	logger           logger.Interface
}

// NewExpireGracePeriodsUseCase creates the grace period sweeper.
func NewExpireGracePeriodsUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	planRepo subscription.PlanRepository,
	gateway paymentgateway.PaymentGateway,
	committer EventCommitter,
	policy entitlement.Policy,
	gatewayTimeout time.Duration,
	logger logger.Interface,
) *ExpireGracePeriodsUseCase {
	return &ExpireGracePeriodsUseCase{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		gateway:          gateway,
		committer:        committer,
		policy:           policy,
		gatewayTimeout:   gatewayTimeout,
		now:              biztime.NowUTC,
		logger:           logger,
	}
}

// SetSweepRecorder sets the metrics hook (optional dependency injection)
func (uc *ExpireGracePeriodsUseCase) SetSweepRecorder(r SweepRecorder) {
	uc.recorder = r
}

// Execute returns the number of subscriptions expired in this pass.
// Item failures are logged and skipped; only the candidate queries can fail the run.
func (uc *ExpireGracePeriodsUseCase) Execute(ctx context.Context) (int, error) {
	now := uc.now()

	candidates, err := uc.findCandidates(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	uc.logger.Infow("found subscriptions with expired grace periods", "count", len(candidates))

	freePlan, err := LoadFreePlan(ctx, uc.planRepo, uc.policy.DefaultDowngradePlanName)
	if err != nil {
		return 0, err
	}
	if freePlan == nil {
		uc.logger.Warnw("downgrade plan not found, expiring without replacement",
			"plan_name", uc.policy.DefaultDowngradePlanName,
		)
	}

	expired := 0
	for _, id := range candidates {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		sub, err := uc.expireOne(ctx, id, freePlan)
		switch {
		case err != nil:
			uc.record(SweepOutcomeFailed)
			uc.logger.Errorw("failed to expire grace period",
				"subscription_id", id,
				"error", err,
			)
			continue
		case sub == nil:
			uc.record(SweepOutcomeSkipped)
			continue
		}

		uc.record(SweepOutcomeExpired)
		expired++
		uc.cancelRemote(ctx, sub)
	}

	uc.logger.Infow("grace period sweep completed", "expired", expired, "candidates", len(candidates))
	return expired, nil
}

// findCandidates unions both sweeper queries, deduplicated by id, in query order.
func (uc *ExpireGracePeriodsUseCase) findCandidates(ctx context.Context, now time.Time) ([]uint, error) {
	inGrace, err := uc.subscriptionRepo.FindExpiredGracePeriods(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired grace periods: %w", err)
	}
	cutoff := now.AddDate(0, 0, -uc.policy.StripeRetryPeriodDays)
	exhausted, err := uc.subscriptionRepo.FindExhaustedRetriesWithoutGrace(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriptions with exhausted retries: %w", err)
	}

	seen := make(map[uint]struct{}, len(inGrace)+len(exhausted))
	ids := make([]uint, 0, len(inGrace)+len(exhausted))
	for _, sub := range append(inGrace, exhausted...) {
		if _, ok := seen[sub.ID()]; ok {
			continue
		}
		seen[sub.ID()] = struct{}{}
		ids = append(ids, sub.ID())
	}
	return ids, nil
}

// expireOne reloads the row inside its own transaction and re-checks it, so a
// payment that landed since the query was run wins. It returns nil when the row
// no longer qualifies.
func (uc *ExpireGracePeriodsUseCase) expireOne(ctx context.Context, id uint, freePlan *subscription.Plan) (*subscription.Subscription, error) {
	var expired *subscription.Subscription
	err := db.RetryOnConflict(ctx, func(ctx context.Context) error {
		expired = nil
		return uc.committer.Commit(ctx, func(txCtx context.Context) ([]events.DomainEvent, error) {
			sub, err := uc.subscriptionRepo.GetByID(txCtx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to reload subscription: %w", err)
			}
			if sub == nil {
				return nil, nil
			}

			tr, err := sub.ExpireGracePeriod(uc.policy, freePlan, uc.now())
			if err != nil {
				if errors.Is(err, subscription.ErrGracePeriodNotExpired) || errors.Is(err, subscription.ErrSubscriptionCanceled) {
					uc.logger.Infow("subscription no longer eligible for expiry", "subscription_id", id, "status", sub.Status())
					return nil, nil
				}
				return nil, err
			}
			if err := SaveTransition(txCtx, uc.subscriptionRepo, sub, tr); err != nil {
				return nil, err
			}
			expired = sub

			uc.logger.Infow("grace period expired",
				"subscription_id", sub.ID(),
				"tenant_id", sub.TenantID(),
				"downgraded", tr.Replacement != nil,
			)
			return tr.Events(), nil
		})
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// cancelRemote is best effort; the local cancellation already committed.
func (uc *ExpireGracePeriodsUseCase) cancelRemote(ctx context.Context, sub *subscription.Subscription) {
	if sub.IsFreeTier() || sub.ProviderSubscriptionID() == "" {
		return
	}
	cancelCtx, cancel := context.WithTimeout(ctx, uc.gatewayTimeout)
	defer cancel()

	if err := uc.gateway.CancelSubscription(cancelCtx, sub.ProviderSubscriptionID(), true); err != nil {
		uc.logger.Warnw("failed to cancel subscription at payment provider",
			"subscription_id", sub.ID(),
			"provider_subscription_id", sub.ProviderSubscriptionID(),
			"error", err,
		)
	}
}

func (uc *ExpireGracePeriodsUseCase) record(outcome string) {
	if uc.recorder != nil {
		uc.recorder.RecordSweep(outcome)
	}
}
