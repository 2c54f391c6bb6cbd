package models

import (
	"time"

	"gorm.io/datatypes"

	"chatdesk/internal/shared/constants"
)

// OutboxEventModel is one envelope per routing key, written in the same
// transaction as the state change that raised it.
type OutboxEventModel struct {
	ID            uint           `gorm:"primarykey"`
	EnvelopeID    string         `gorm:"not null;size:36;uniqueIndex:idx_envelope_route,priority:1"`
	RoutingKey    string         `gorm:"not null;size:100;uniqueIndex:idx_envelope_route,priority:2"`
	EventType     string         `gorm:"not null;size:100"`
	AggregateID   string         `gorm:"not null;size:64"`
	CorrelationID string         `gorm:"size:36;index"`
	Payload       datatypes.JSON `gorm:"not null"`
	OccurredAt    time.Time
	Attempts      int        `gorm:"not null;default:0"`
	LastError     string     `gorm:"size:1000"`
	PublishedAt   *time.Time `gorm:"index:idx_outbox_pending,priority:1"`
	CreatedAt     time.Time  `gorm:"index:idx_outbox_pending,priority:2"`
}

func (OutboxEventModel) TableName() string {
	return constants.TableOutboxEvents
}
