package usecases

import (
	"context"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/shared/logger"
)

// TenantSyncer is satisfied by SyncTenantEntitlementsUseCase.
type TenantSyncer interface {
	SyncTenant(ctx context.Context, tenantID uint) (*SyncResult, error)
}

// SubscriptionEventHandler consumes the subscription stream and re-syncs the
// affected tenant. Redelivery is harmless because a sync with unchanged inputs
// writes nothing.
type SubscriptionEventHandler struct {
	syncer TenantSyncer
	logger logger.Interface
}

// NewSubscriptionEventHandler creates the handler that resyncs a tenant on subscription events.
func NewSubscriptionEventHandler(syncer TenantSyncer, logger logger.Interface) *SubscriptionEventHandler {
	return &SubscriptionEventHandler{syncer: syncer, logger: logger}
}

var _ outbox.Handler = (*SubscriptionEventHandler)(nil)

func (h *SubscriptionEventHandler) Handle(ctx context.Context, envelope outbox.Envelope) error {
	var tenantID uint
	switch envelope.EventType {
	case subscription.EventTypeSubscriptionStatus:
		var e subscription.SubscriptionStatusEvent
		if err := envelope.Decode(&e); err != nil {
			h.logger.Warnw("dropping undecodable subscription event", "envelope_id", envelope.ID, "error", err)
			return nil
		}
		tenantID = e.TenantID
	case subscription.EventTypePaymentStatus:
		var e subscription.PaymentStatusEvent
		if err := envelope.Decode(&e); err != nil {
			h.logger.Warnw("dropping undecodable payment event", "envelope_id", envelope.ID, "error", err)
			return nil
		}
		tenantID = e.TenantID
	default:
		h.logger.Debugw("ignoring event on subscription stream", "event_type", envelope.EventType)
		return nil
	}

	if tenantID == 0 {
		h.logger.Warnw("subscription event without tenant", "envelope_id", envelope.ID)
		return nil
	}

	// errors leave the message pending so the consumer redelivers it
	_, err := h.syncer.SyncTenant(ctx, tenantID)
	return err
}
