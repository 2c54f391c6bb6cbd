package models

import (
	"time"

	"chatdesk/internal/shared/constants"
)

// PlanModel stores an entitlement bundle. Limits of -1 mean unlimited.
type PlanModel struct {
	ID                   uint   `gorm:"primarykey"`
	Name                 string `gorm:"uniqueIndex;not null;size:100"`
	MaxUsers             int    `gorm:"not null;default:0"`
	MaxChannels          int    `gorm:"not null;default:0"`
	MaxWhatsAppChannels  int    `gorm:"column:max_whatsapp_channels;not null;default:0"`
	MaxFacebookChannels  int    `gorm:"not null;default:0"`
	MaxInstagramChannels int    `gorm:"not null;default:0"`
	MaxTelegramChannels  int    `gorm:"not null;default:0"`
	Price                int64  `gorm:"not null;default:0;comment:minor units"`
	Currency             string `gorm:"size:3"`
	ProviderPriceID      string `gorm:"size:100;index:idx_provider_price"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (PlanModel) TableName() string {
	return constants.TablePlans
}
