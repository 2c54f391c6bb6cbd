package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatdesk/internal/application/subscription/dto"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/db"
	apperrors "chatdesk/internal/shared/errors"
	"chatdesk/internal/shared/logger"
)

type CreateSubscriptionCommand struct {
	TenantID uint
	PlanID   uint
	// ProviderSubscriptionID links a paid plan to the provider's subscription; ignored for free plans.
	ProviderSubscriptionID string
	Status                 vo.SubscriptionStatus
}

// CreateSubscriptionUseCase attaches a new subscription to a tenant. A row that
// starts current terminalizes whichever row was current before; an incomplete
// row defers that until payment promotes it.
type CreateSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	planRepo         subscription.PlanRepository
	committer        EventCommitter
	now              func() time.Time
	logger           logger.Interface
}

// NewCreateSubscriptionUseCase creates the use case behind subscription creation.
func NewCreateSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	planRepo subscription.PlanRepository,
	committer EventCommitter,
	logger logger.Interface,
) *CreateSubscriptionUseCase {
	return &CreateSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		committer:        committer,
		now:              biztime.NowUTC,
		logger:           logger,
	}
}

func (uc *CreateSubscriptionUseCase) Execute(ctx context.Context, cmd CreateSubscriptionCommand) (*dto.SubscriptionDTO, error) {
	if cmd.TenantID == 0 {
		return nil, apperrors.NewValidationError("tenant ID is required")
	}
	if cmd.Status != "" && !cmd.Status.IsCurrent() && cmd.Status != vo.StatusIncomplete {
		return nil, apperrors.NewValidationError("status must be active, trialing, past_due or incomplete", cmd.Status.String())
	}

	plan, err := uc.planRepo.GetByID(ctx, cmd.PlanID)
	if err != nil {
		uc.logger.Errorw("failed to get plan", "error", err, "plan_id", cmd.PlanID)
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, apperrors.NewNotFoundError("plan not found")
	}

	if !plan.IsFree() && cmd.ProviderSubscriptionID != "" {
		existing, err := uc.subscriptionRepo.GetByProviderID(ctx, cmd.ProviderSubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check provider subscription: %w", err)
		}
		if existing != nil {
			return nil, apperrors.NewConflictError("provider subscription already linked", cmd.ProviderSubscriptionID)
		}
	}

	var created *subscription.Subscription
	err = db.RetryOnConflict(ctx, func(ctx context.Context) error {
		created = nil
		return uc.committer.Commit(ctx, func(txCtx context.Context) ([]events.DomainEvent, error) {
			now := uc.now()
			sub, tr, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
				TenantID:               cmd.TenantID,
				Plan:                   plan,
				ProviderSubscriptionID: cmd.ProviderSubscriptionID,
				Status:                 cmd.Status,
				Reason:                 subscription.ReasonUserRequested,
			}, now)
			if err != nil {
				return nil, err
			}

			// an incomplete row leaves the current one in place until it is promoted
			var raised []events.DomainEvent
			if sub.Status().IsCurrent() {
				raised, err = SupersedeCurrent(txCtx, uc.subscriptionRepo, cmd.TenantID, 0, now)
				if err != nil {
					return nil, err
				}
			}
			if err := uc.subscriptionRepo.Create(txCtx, sub); err != nil {
				return nil, fmt.Errorf("failed to create subscription: %w", err)
			}
			tr.BindIDs()
			created = sub
			return append(raised, tr.Events()...), nil
		})
	})
	if err != nil {
		if errors.Is(err, subscription.ErrProviderIDRequired) {
			return nil, apperrors.NewValidationError(err.Error())
		}
		if apperrors.IsDuplicateError(err) {
			return nil, apperrors.NewConflictError("subscription already exists")
		}
		uc.logger.Errorw("failed to create subscription", "error", err, "tenant_id", cmd.TenantID, "plan_id", cmd.PlanID)
		return nil, err
	}

	uc.logger.Infow("subscription created",
		"subscription_id", created.ID(),
		"tenant_id", created.TenantID(),
		"plan_id", created.PlanID(),
		"status", created.Status(),
	)
	return dto.ToSubscriptionDTO(created), nil
}
