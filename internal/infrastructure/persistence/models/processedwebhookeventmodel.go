package models

import (
	"time"

	"chatdesk/internal/shared/constants"
)

// ProcessedWebhookEventModel records provider event ids that already changed state.
type ProcessedWebhookEventModel struct {
	ID          uint      `gorm:"primarykey"`
	EventID     string    `gorm:"uniqueIndex;not null;size:255"`
	EventType   string    `gorm:"not null;size:100"`
	ProcessedAt time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

func (ProcessedWebhookEventModel) TableName() string {
	return constants.TableProcessedWebhookEvents
}
