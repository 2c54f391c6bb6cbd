package models

import (
	"time"

	"gorm.io/gorm"

	"chatdesk/internal/shared/constants"
)

// TenantModel holds the contact details read for billing notifications.
type TenantModel struct {
	ID           uint   `gorm:"primarykey"`
	Name         string `gorm:"not null;size:200"`
	BillingEmail string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (TenantModel) TableName() string {
	return constants.TableTenants
}

// TenantUserModel is a seat. Billing writes only the status columns.
type TenantUserModel struct {
	ID          uint   `gorm:"primarykey"`
	TenantID    uint   `gorm:"not null;index:idx_tenant_user_created,priority:1"`
	Email       string `gorm:"not null;size:255"`
	Status      string `gorm:"not null;size:20;default:active"`
	SuspendedAt *time.Time
	ResumedAt   *time.Time
	CreatedAt   time.Time `gorm:"index:idx_tenant_user_created,priority:2"`
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (TenantUserModel) TableName() string {
	return constants.TableTenantUsers
}

// ChannelAccountModel is a connected messaging channel.
type ChannelAccountModel struct {
	ID          uint   `gorm:"primarykey"`
	TenantID    uint   `gorm:"not null;index:idx_tenant_channel_created,priority:1"`
	ChannelType string `gorm:"not null;size:20"`
	Name        string `gorm:"size:200"`
	Status      string `gorm:"not null;size:20;default:active"`
	SuspendedAt *time.Time
	ResumedAt   *time.Time
	CreatedAt   time.Time `gorm:"index:idx_tenant_channel_created,priority:2"`
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (ChannelAccountModel) TableName() string {
	return constants.TableChannelAccounts
}
