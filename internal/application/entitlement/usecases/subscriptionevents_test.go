package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/domain/tenant"
)

type stubSyncer struct {
	calls []uint
	err   error
}

func (s *stubSyncer) SyncTenant(ctx context.Context, tenantID uint) (*SyncResult, error) {
	s.calls = append(s.calls, tenantID)
	return &SyncResult{TenantID: tenantID}, s.err
}

func envelopeFor(t *testing.T, e events.DomainEvent) outbox.Envelope {
	t.Helper()
	env, err := outbox.NewEnvelope(e)
	require.NoError(t, err)
	return env
}

func TestSubscriptionEventHandler_SyncsTenantOfEvent(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		event events.DomainEvent
	}{
		{name: "status event", event: &subscription.SubscriptionStatusEvent{TenantID: 7, SubscriptionID: 1, Action: subscription.ActionCancel, OccurredAt: now}},
		{name: "payment event", event: &subscription.PaymentStatusEvent{TenantID: 7, SubscriptionID: 1, Action: subscription.ActionSuspend, OccurredAt: now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &stubSyncer{}
			h := NewSubscriptionEventHandler(syncer, nopLogger{})

			err := h.Handle(context.Background(), envelopeFor(t, tt.event))

			require.NoError(t, err)
			assert.Equal(t, []uint{7}, syncer.calls)
		})
	}
}

func TestSubscriptionEventHandler_IgnoresOtherEvents(t *testing.T) {
	syncer := &stubSyncer{}
	h := NewSubscriptionEventHandler(syncer, nopLogger{})

	err := h.Handle(context.Background(), envelopeFor(t, &tenant.EntityStatusEvent{TenantID: 7, EntityID: 3}))
	require.NoError(t, err)

	err = h.Handle(context.Background(), outbox.Envelope{ID: "x", EventType: subscription.EventTypeSubscriptionStatus, Payload: []byte("{broken")})
	require.NoError(t, err)

	err = h.Handle(context.Background(), envelopeFor(t, &subscription.SubscriptionStatusEvent{SubscriptionID: 1}))
	require.NoError(t, err)

	assert.Empty(t, syncer.calls)
}

func TestSubscriptionEventHandler_SyncFailureIsReturnedForRedelivery(t *testing.T) {
	syncer := &stubSyncer{err: errors.New("db down")}
	h := NewSubscriptionEventHandler(syncer, nopLogger{})

	err := h.Handle(context.Background(), envelopeFor(t, &subscription.SubscriptionStatusEvent{TenantID: 9}))

	assert.Error(t, err)
}
