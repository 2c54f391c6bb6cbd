package models

import (
	"time"

	"gorm.io/gorm"

	"chatdesk/internal/shared/constants"
)

// SubscriptionModel is the persistence shape of a subscription row. Version backs optimistic locking.
type SubscriptionModel struct {
	ID                      uint   `gorm:"primarykey"`
	TenantID                uint   `gorm:"not null;index:idx_tenant_status,priority:1"`
	PlanID                  uint   `gorm:"not null;index:idx_plan_subscription"`
	ProviderSubscriptionID  string `gorm:"uniqueIndex;not null;size:100;comment:provider id or free_<uuid>"`
	Status                  string `gorm:"not null;size:20;index:idx_tenant_status,priority:2"`
	CurrentPeriodStart      time.Time
	CurrentPeriodEnd        time.Time
	CancelAtPeriodEnd       bool `gorm:"not null;default:false"`
	CanceledAt              *time.Time
	CancellationRequestedAt *time.Time
	PaymentRetryCount       int `gorm:"not null;default:0"`
	FirstPaymentFailureAt   *time.Time
	LastPaymentFailedAt     *time.Time
	NextRetryAt             *time.Time
	HasReachedMaxRetries    bool       `gorm:"not null;default:false"`
	IsInGracePeriod         bool       `gorm:"not null;default:false;index:idx_grace,priority:1"`
	GracePeriodEndsAt       *time.Time `gorm:"index:idx_grace,priority:2"`
	Amount                  int64      `gorm:"not null;default:0"`
	Currency                string     `gorm:"size:3"`
	Version                 int        `gorm:"not null;default:1"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (SubscriptionModel) TableName() string {
	return constants.TableSubscriptions
}

func (s *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
