package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chatdesk/internal/domain/tenant"
	"chatdesk/internal/infrastructure/persistence/mappers"
	"chatdesk/internal/infrastructure/persistence/models"
	"chatdesk/internal/shared/db"
	"chatdesk/internal/shared/logger"
)

type TenantRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewTenantRepository creates the GORM tenant repository.
func NewTenantRepository(db *gorm.DB, logger logger.Interface) tenant.TenantRepository {
	return &TenantRepositoryImpl{db: db, logger: logger}
}

func (r *TenantRepositoryImpl) GetByID(ctx context.Context, id uint) (*tenant.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get tenant", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return mappers.TenantToEntity(&model), nil
}

// TenantUserRepositoryImpl reads seats in creation order and writes only status columns.
type TenantUserRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewTenantUserRepository creates the GORM tenant user repository.
func NewTenantUserRepository(db *gorm.DB, logger logger.Interface) tenant.TenantUserRepository {
	return &TenantUserRepositoryImpl{db: db, logger: logger}
}

func (r *TenantUserRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint) ([]*tenant.TenantUser, error) {
	var rows []*models.TenantUserModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to list tenant users", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to list tenant users: %w", err)
	}

	users := make([]*tenant.TenantUser, 0, len(rows))
	for _, row := range rows {
		u, err := mappers.TenantUserToEntity(row)
		if err != nil {
			return nil, fmt.Errorf("failed to map tenant user %d: %w", row.ID, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *TenantUserRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status tenant.EntityStatus, at time.Time) error {
	return updateEntityStatus(db.GetTxFromContext(ctx, r.db), &models.TenantUserModel{}, id, status, at)
}

type ChannelAccountRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewChannelAccountRepository creates the GORM channel account repository.
func NewChannelAccountRepository(db *gorm.DB, logger logger.Interface) tenant.ChannelAccountRepository {
	return &ChannelAccountRepositoryImpl{db: db, logger: logger}
}

func (r *ChannelAccountRepositoryImpl) ListByTenant(ctx context.Context, tenantID uint) ([]*tenant.ChannelAccount, error) {
	var rows []*models.ChannelAccountModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to list channel accounts", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to list channel accounts: %w", err)
	}

	channels := make([]*tenant.ChannelAccount, 0, len(rows))
	for _, row := range rows {
		c, err := mappers.ChannelAccountToEntity(row)
		if err != nil {
			return nil, fmt.Errorf("failed to map channel account %d: %w", row.ID, err)
		}
		channels = append(channels, c)
	}
	return channels, nil
}

func (r *ChannelAccountRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status tenant.EntityStatus, at time.Time) error {
	return updateEntityStatus(db.GetTxFromContext(ctx, r.db), &models.ChannelAccountModel{}, id, status, at)
}

// updateEntityStatus touches the status column and the matching timestamp only.
func updateEntityStatus(tx *gorm.DB, model interface{}, id uint, status tenant.EntityStatus, at time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid entity status: %s", status)
	}
	columns := map[string]interface{}{"status": string(status)}
	if status == tenant.EntityStatusSuspended {
		columns["suspended_at"] = at
	} else {
		columns["resumed_at"] = at
	}

	result := tx.Model(model).Where("id = ?", id).UpdateColumns(columns)
	if result.Error != nil {
		return fmt.Errorf("failed to update status of %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entity %d not found", id)
	}
	return nil
}
