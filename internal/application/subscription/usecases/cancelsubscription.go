package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatdesk/internal/application/billing/paymentgateway"
	"chatdesk/internal/application/subscription/dto"
	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/db"
	apperrors "chatdesk/internal/shared/errors"
	"chatdesk/internal/shared/logger"
)

type CancelSubscriptionCommand struct {
	SubscriptionID uint
	Reason         string
	Immediate      bool
}

type CancelSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	planRepo         subscription.PlanRepository
	gateway          paymentgateway.PaymentGateway
	committer        EventCommitter
	policy           entitlement.Policy
	gatewayTimeout   time.Duration
	now              func() time.Time
	logger           logger.Interface
}

// NewCancelSubscriptionUseCase creates the use case behind subscription cancellation.
func NewCancelSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	planRepo subscription.PlanRepository,
	gateway paymentgateway.PaymentGateway,
	committer EventCommitter,
	policy entitlement.Policy,
	gatewayTimeout time.Duration,
	logger logger.Interface,
) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
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

// Execute cancels locally first; the provider call afterwards is best effort and
// the next webhook converges any difference.
func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, cmd CancelSubscriptionCommand) (*dto.SubscriptionDTO, error) {
	reason := cmd.Reason
	if reason == "" {
		reason = subscription.ReasonUserRequested
	}

	var freePlan *subscription.Plan
	if cmd.Immediate {
		var err error
		freePlan, err = LoadFreePlan(ctx, uc.planRepo, uc.policy.DefaultDowngradePlanName)
		if err != nil {
			return nil, err
		}
	}

	var canceled *subscription.Subscription
	err := db.RetryOnConflict(ctx, func(ctx context.Context) error {
		canceled = nil
		return uc.committer.Commit(ctx, func(txCtx context.Context) ([]events.DomainEvent, error) {
			sub, err := uc.subscriptionRepo.GetByID(txCtx, cmd.SubscriptionID)
			if err != nil {
				return nil, fmt.Errorf("failed to get subscription: %w", err)
			}
			if sub == nil {
				return nil, subscription.ErrSubscriptionNotFound
			}

			tr, err := sub.Cancel(cmd.Immediate, reason, freePlan, uc.now())
			if err != nil {
				return nil, err
			}
			if err := SaveTransition(txCtx, uc.subscriptionRepo, sub, tr); err != nil {
				return nil, err
			}
			canceled = sub
			return tr.Events(), nil
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrSubscriptionNotFound):
			return nil, apperrors.NewNotFoundError("subscription not found")
		case errors.Is(err, subscription.ErrSubscriptionCanceled):
			return nil, apperrors.NewConflictError("subscription already canceled")
		}
		uc.logger.Errorw("failed to cancel subscription", "error", err, "subscription_id", cmd.SubscriptionID)
		return nil, err
	}

	uc.cancelRemote(ctx, canceled, cmd.Immediate)

	uc.logger.Infow("subscription canceled",
		"subscription_id", canceled.ID(),
		"reason", reason,
		"immediate", cmd.Immediate,
		"status", canceled.Status(),
	)
	return dto.ToSubscriptionDTO(canceled), nil
}

func (uc *CancelSubscriptionUseCase) cancelRemote(ctx context.Context, sub *subscription.Subscription, immediate bool) {
	if sub.IsFreeTier() || sub.ProviderSubscriptionID() == "" {
		return
	}
	cancelCtx, cancel := context.WithTimeout(ctx, uc.gatewayTimeout)
	defer cancel()

	if err := uc.gateway.CancelSubscription(cancelCtx, sub.ProviderSubscriptionID(), immediate); err != nil {
		uc.logger.Warnw("failed to cancel subscription at payment provider",
			"subscription_id", sub.ID(),
			"provider_subscription_id", sub.ProviderSubscriptionID(),
			"immediate", immediate,
			"error", err,
		)
	}
}
