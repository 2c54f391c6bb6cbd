package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/infrastructure/persistence/mappers"
	"chatdesk/internal/infrastructure/persistence/models"
	"chatdesk/internal/shared/db"
	"chatdesk/internal/shared/logger"
)

const maxLastErrorLength = 1000

type OutboxRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewOutboxRepository creates the GORM-backed outbox store.
func NewOutboxRepository(db *gorm.DB, logger logger.Interface) outbox.Store {
	return &OutboxRepositoryImpl{db: db, logger: logger}
}

func (r *OutboxRepositoryImpl) Append(ctx context.Context, records []*outbox.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEventModel, 0, len(records))
	for _, rec := range records {
		rows = append(rows, mappers.OutboxRecordToModel(rec))
	}

	if err := db.GetTxFromContext(ctx, r.db).Create(&rows).Error; err != nil {
		r.logger.Errorw("failed to append outbox records", "count", len(rows), "error", err)
		return fmt.Errorf("failed to append outbox records: %w", err)
	}
	for i, row := range rows {
		records[i].ID = row.ID
	}
	return nil
}

func (r *OutboxRepositoryImpl) MarkPublished(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEventModel{}).
		Where("id = ? AND published_at IS NULL", id).
		Updates(map[string]interface{}{
			"published_at": at,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   "",
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox record %d published: %w", id, err)
	}
	return nil
}

func (r *OutboxRepositoryImpl) MarkFailed(ctx context.Context, id uint, reason string) error {
	if len(reason) > maxLastErrorLength {
		reason = reason[:maxLastErrorLength]
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox record %d failed: %w", id, err)
	}
	return nil
}

func (r *OutboxRepositoryImpl) ListUnpublished(ctx context.Context, createdBefore time.Time, limit int) ([]*outbox.Record, error) {
	var rows []*models.OutboxEventModel
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND created_at < ?", createdBefore).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		r.logger.Errorw("failed to list unpublished outbox records", "error", err)
		return nil, fmt.Errorf("failed to list unpublished outbox records: %w", err)
	}

	records := make([]*outbox.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, mappers.OutboxModelToRecord(row))
	}
	return records, nil
}
