package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	"chatdesk/internal/infrastructure/persistence/mappers"
	"chatdesk/internal/infrastructure/persistence/models"
	"chatdesk/internal/shared/db"
	"chatdesk/internal/shared/logger"
)

var currentStatuses = []string{
	vo.StatusActive.String(),
	vo.StatusTrialing.String(),
	vo.StatusPastDue.String(),
}

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SubscriptionMapper
	logger logger.Interface
}

// NewSubscriptionRepository creates the GORM subscription repository.
func NewSubscriptionRepository(db *gorm.DB, logger logger.Interface) subscription.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mappers.NewSubscriptionMapper(),
		logger: logger,
	}
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, entity *subscription.Subscription) error {
	model := r.mapper.ToModel(entity)
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.Create(model).Error; err != nil {
		r.logger.Errorw("failed to create subscription in database", "tenant_id", model.TenantID, "error", err)
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	entity.SetID(model.ID)
	entity.SetVersion(model.Version)

	r.logger.Infow("subscription created successfully",
		"id", model.ID,
		"tenant_id", model.TenantID,
		"plan_id", model.PlanID,
		"status", model.Status,
	)
	return nil
}

func (r *SubscriptionRepositoryImpl) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *SubscriptionRepositoryImpl) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	return r.first(ctx, "provider_subscription_id = ?", providerSubscriptionID)
}

// GetCurrentByTenant prefers the newest row if more than one is current.
func (r *SubscriptionRepositoryImpl) GetCurrentByTenant(ctx context.Context, tenantID uint) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("tenant_id = ? AND status IN ?", tenantID, currentStatuses).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get current subscription", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to get current subscription: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// Update writes every mutable column guarded by the version read at load time.
func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, entity *subscription.Subscription) error {
	model := r.mapper.ToModel(entity)
	next := model.Version + 1

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]interface{}{
			"plan_id":                   model.PlanID,
			"status":                    model.Status,
			"current_period_start":      model.CurrentPeriodStart,
			"current_period_end":        model.CurrentPeriodEnd,
			"cancel_at_period_end":      model.CancelAtPeriodEnd,
			"canceled_at":               model.CanceledAt,
			"cancellation_requested_at": model.CancellationRequestedAt,
			"payment_retry_count":       model.PaymentRetryCount,
			"first_payment_failure_at":  model.FirstPaymentFailureAt,
			"last_payment_failed_at":    model.LastPaymentFailedAt,
			"next_retry_at":             model.NextRetryAt,
			"has_reached_max_retries":   model.HasReachedMaxRetries,
			"is_in_grace_period":        model.IsInGracePeriod,
			"grace_period_ends_at":      model.GracePeriodEndsAt,
			"amount":                    model.Amount,
			"currency":                  model.Currency,
			"version":                   next,
			"updated_at":                model.UpdatedAt,
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update subscription", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		r.logger.Warnw("subscription version conflict", "id", model.ID, "version", model.Version)
		return db.ErrVersionConflict
	}

	entity.SetVersion(next)
	r.logger.Debugw("subscription updated", "id", model.ID, "version", next, "status", model.Status)
	return nil
}

func (r *SubscriptionRepositoryImpl) FindExpiredGracePeriods(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	var rows []*models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("is_in_grace_period = ?", true).
		Where("grace_period_ends_at IS NOT NULL AND grace_period_ends_at <= ?", now).
		Where("status NOT IN ?", []string{vo.StatusCanceled.String(), vo.StatusIncompleteExpired.String()}).
		Order("grace_period_ends_at ASC").
		Find(&rows).Error
	if err != nil {
		r.logger.Errorw("failed to find expired grace periods", "error", err)
		return nil, fmt.Errorf("failed to find expired grace periods: %w", err)
	}
	return r.mapper.ToEntities(rows)
}

func (r *SubscriptionRepositoryImpl) FindExhaustedRetriesWithoutGrace(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	var rows []*models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("has_reached_max_retries = ?", true).
		Where("is_in_grace_period = ?", false).
		Where("status = ?", vo.StatusPastDue.String()).
		Where("first_payment_failure_at IS NOT NULL AND first_payment_failure_at <= ?", cutoff).
		Order("first_payment_failure_at ASC").
		Find(&rows).Error
	if err != nil {
		r.logger.Errorw("failed to find exhausted subscriptions", "error", err)
		return nil, fmt.Errorf("failed to find exhausted subscriptions: %w", err)
	}
	return r.mapper.ToEntities(rows)
}

func (r *SubscriptionRepositoryImpl) first(ctx context.Context, query string, arg interface{}) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	if err := db.GetTxFromContext(ctx, r.db).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get subscription", "query", query, "error", err)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return r.mapper.ToEntity(&model)
}
