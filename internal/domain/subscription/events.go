package subscription

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"chatdesk/internal/domain/shared/events"
)

// Action tells consumers what happened to a subscription and selects the email template.
type Action string

const (
	ActionCreate           Action = "create"
	ActionReactivate       Action = "reactivate"
	ActionGracePeriodStart Action = "grace_period_start"
	ActionGracePeriodEnd   Action = "grace_period_end"
	ActionSuspend          Action = "suspend"
	ActionCancel           Action = "cancel"
	ActionPlanChanged      Action = "plan_changed"
	ActionStatusUpdate     Action = "status_update"
)

func (a Action) String() string {
	return string(a)
}

const (
	EventTypeSubscriptionStatus = "subscription.status"
	EventTypePaymentStatus      = "subscription.payment"
)

// SubscriptionStatusEvent announces lifecycle changes of a subscription row.
// Downgraded is set on a terminal cancel when a free replacement row was created.
type SubscriptionStatusEvent struct {
	TenantID              uint       `json:"tenant_id"`
	SubscriptionID        uint       `json:"subscription_id"`
	PlanID                uint       `json:"plan_id"`
	PreviousPlanID        uint       `json:"previous_plan_id,omitempty"`
	Status                string     `json:"status"`
	Action                Action     `json:"action"`
	Reason                string     `json:"reason,omitempty"`
	SendEmailNotification bool       `json:"send_email_notification"`
	IsImmediate           bool       `json:"is_immediate"`
	Downgraded            bool       `json:"downgraded,omitempty"`
	CurrentPeriodEnd      *time.Time `json:"current_period_end,omitempty"`
	CorrelationID         string     `json:"correlation_id"`
	OccurredAt            time.Time  `json:"occurred_at"`
}

func (e *SubscriptionStatusEvent) GetAggregateID() string   { return strconv.FormatUint(uint64(e.SubscriptionID), 10) }
func (e *SubscriptionStatusEvent) GetEventType() string     { return EventTypeSubscriptionStatus }
func (e *SubscriptionStatusEvent) GetEventDomain() string   { return events.DomainSubscription }
func (e *SubscriptionStatusEvent) GetCorrelationID() string { return e.CorrelationID }
func (e *SubscriptionStatusEvent) GetOccurredAt() time.Time { return e.OccurredAt }
func (e *SubscriptionStatusEvent) ShouldSendEmail() bool    { return e.SendEmailNotification }

// PaymentStatusEvent announces dunning progress: failures, grace period start and end, suspension.
type PaymentStatusEvent struct {
	TenantID              uint       `json:"tenant_id"`
	SubscriptionID        uint       `json:"subscription_id"`
	PlanID                uint       `json:"plan_id"`
	Action                Action     `json:"action"`
	Reason                string     `json:"reason,omitempty"`
	SendEmailNotification bool       `json:"send_email_notification"`
	IsImmediate           bool       `json:"is_immediate"`
	Downgraded            bool       `json:"downgraded,omitempty"`
	PaymentRetryCount     int        `json:"payment_retry_count"`
	NextRetryAt           *time.Time `json:"next_retry_at,omitempty"`
	GracePeriodEndsAt     *time.Time `json:"grace_period_ends_at,omitempty"`
	CorrelationID         string     `json:"correlation_id"`
	OccurredAt            time.Time  `json:"occurred_at"`
}

func (e *PaymentStatusEvent) GetAggregateID() string   { return strconv.FormatUint(uint64(e.SubscriptionID), 10) }
func (e *PaymentStatusEvent) GetEventType() string     { return EventTypePaymentStatus }
func (e *PaymentStatusEvent) GetEventDomain() string   { return events.DomainSubscription }
func (e *PaymentStatusEvent) GetCorrelationID() string { return e.CorrelationID }
func (e *PaymentStatusEvent) GetOccurredAt() time.Time { return e.OccurredAt }
func (e *PaymentStatusEvent) ShouldSendEmail() bool    { return e.SendEmailNotification }

func (s *Subscription) statusEvent(action Action, reason string, sendEmail, immediate bool, now time.Time) *SubscriptionStatusEvent {
	periodEnd := s.currentPeriodEnd
	return &SubscriptionStatusEvent{
		TenantID:              s.tenantID,
		SubscriptionID:        s.id,
		PlanID:                s.planID,
		Status:                s.status.String(),
		Action:                action,
		Reason:                reason,
		SendEmailNotification: sendEmail,
		IsImmediate:           immediate,
		CurrentPeriodEnd:      &periodEnd,
		CorrelationID:         uuid.NewString(),
		OccurredAt:            now,
	}
}

func (s *Subscription) paymentEvent(action Action, reason string, sendEmail bool, now time.Time) *PaymentStatusEvent {
	return &PaymentStatusEvent{
		TenantID:              s.tenantID,
		SubscriptionID:        s.id,
		PlanID:                s.planID,
		Action:                action,
		Reason:                reason,
		SendEmailNotification: sendEmail,
		PaymentRetryCount:     s.paymentRetryCount,
		NextRetryAt:           copyTime(s.nextRetryAt),
		GracePeriodEndsAt:     copyTime(s.gracePeriodEndsAt),
		CorrelationID:         uuid.NewString(),
		OccurredAt:            now,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
