package tenant

import (
	"strconv"
	"time"

	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/shared/events"
)

const EventTypeEntityStatus = "tenant.entity_status"

// EntityStatusEvent is raised once per suspend or restore flip.
type EntityStatusEvent struct {
	TenantID      uint                    `json:"tenant_id"`
	EntityKind    EntityKind              `json:"entity_kind"`
	EntityID      uint                    `json:"entity_id"`
	ChannelType   entitlement.ChannelType `json:"channel_type,omitempty"`
	Status        EntityStatus            `json:"status"`
	Reason        string                  `json:"reason,omitempty"`
	CorrelationID string                  `json:"correlation_id"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

func (e *EntityStatusEvent) GetAggregateID() string   { return strconv.FormatUint(uint64(e.EntityID), 10) }
func (e *EntityStatusEvent) GetEventType() string     { return EventTypeEntityStatus }
func (e *EntityStatusEvent) GetEventDomain() string   { return events.DomainEntitlement }
func (e *EntityStatusEvent) GetCorrelationID() string { return e.CorrelationID }
func (e *EntityStatusEvent) GetOccurredAt() time.Time { return e.OccurredAt }
