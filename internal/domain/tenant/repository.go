package tenant

import (
	"context"
	"time"
)

// Repositories below exclude soft-deleted rows and write only status columns.

type TenantUserRepository interface {
	ListByTenant(ctx context.Context, tenantID uint) ([]*TenantUser, error)
	UpdateStatus(ctx context.Context, id uint, status EntityStatus, at time.Time) error
}

type ChannelAccountRepository interface {
	ListByTenant(ctx context.Context, tenantID uint) ([]*ChannelAccount, error)
	UpdateStatus(ctx context.Context, id uint, status EntityStatus, at time.Time) error
}

type TenantRepository interface {
	GetByID(ctx context.Context, id uint) (*Tenant, error)
}
