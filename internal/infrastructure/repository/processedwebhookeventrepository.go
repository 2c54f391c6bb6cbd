package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chatdesk/internal/infrastructure/persistence/models"
	"chatdesk/internal/shared/db"
	apperrors "chatdesk/internal/shared/errors"
	"chatdesk/internal/shared/logger"
)

// ProcessedWebhookEventRepositoryImpl is the ledger of provider event ids that changed state.
type ProcessedWebhookEventRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewProcessedWebhookEventRepository creates the processed-event ledger.
func NewProcessedWebhookEventRepository(db *gorm.DB, logger logger.Interface) *ProcessedWebhookEventRepositoryImpl {
	return &ProcessedWebhookEventRepositoryImpl{db: db, logger: logger}
}

func (r *ProcessedWebhookEventRepositoryImpl) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.ProcessedWebhookEventModel{}).
		Where("event_id = ?", providerEventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check processed webhook event: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed treats a concurrent insert of the same id as success.
func (r *ProcessedWebhookEventRepositoryImpl) MarkProcessed(ctx context.Context, providerEventID, eventType string, at time.Time) error {
	row := &models.ProcessedWebhookEventModel{
		EventID:     providerEventID,
		EventType:   eventType,
		ProcessedAt: at,
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(row).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			r.logger.Debugw("webhook event already recorded", "event_id", providerEventID)
			return nil
		}
		return fmt.Errorf("failed to record processed webhook event: %w", err)
	}
	return nil
}

// DeleteBefore prunes ledger rows older than cutoff and returns how many were removed.
func (r *ProcessedWebhookEventRepositoryImpl) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&models.ProcessedWebhookEventModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune processed webhook events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
