package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/infrastructure/persistence/mappers"
	"chatdesk/internal/infrastructure/persistence/models"
	"chatdesk/internal/shared/logger"
)

// PlanRepositoryImpl is read-only; plans are managed outside billing.
type PlanRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewPlanRepository creates the GORM plan repository.
func NewPlanRepository(db *gorm.DB, logger logger.Interface) subscription.PlanRepository {
	return &PlanRepositoryImpl{db: db, logger: logger}
}

func (r *PlanRepositoryImpl) GetByID(ctx context.Context, id uint) (*subscription.Plan, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PlanRepositoryImpl) GetByProviderPriceID(ctx context.Context, priceID string) (*subscription.Plan, error) {
	if priceID == "" {
		return nil, nil
	}
	return r.first(ctx, "provider_price_id = ?", priceID)
}

func (r *PlanRepositoryImpl) GetByName(ctx context.Context, name string) (*subscription.Plan, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *PlanRepositoryImpl) first(ctx context.Context, query string, arg interface{}) (*subscription.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get plan", "query", query, "error", err)
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return mappers.PlanToEntity(&model)
}
