package dto

import (
	"time"

	"chatdesk/internal/domain/subscription"
)

type SubscriptionDTO struct {
	ID                     uint       `json:"id"`
	TenantID               uint       `json:"tenant_id"`
	PlanID                 uint       `json:"plan_id"`
	ProviderSubscriptionID string     `json:"provider_subscription_id"`
	Status                 string     `json:"status"`
	CurrentPeriodStart     time.Time  `json:"current_period_start"`
	CurrentPeriodEnd       time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
	CanceledAt             *time.Time `json:"canceled_at,omitempty"`
	PaymentRetryCount      int        `json:"payment_retry_count"`
	IsInGracePeriod        bool       `json:"is_in_grace_period"`
	GracePeriodEndsAt      *time.Time `json:"grace_period_ends_at,omitempty"`
	Amount                 int64      `json:"amount"`
	Currency               string     `json:"currency"`
}

func ToSubscriptionDTO(s *subscription.Subscription) *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                     s.ID(),
		TenantID:               s.TenantID(),
		PlanID:                 s.PlanID(),
		ProviderSubscriptionID: s.ProviderSubscriptionID(),
		Status:                 s.Status().String(),
		CurrentPeriodStart:     s.CurrentPeriodStart(),
		CurrentPeriodEnd:       s.CurrentPeriodEnd(),
		CancelAtPeriodEnd:      s.CancelAtPeriodEnd(),
		CanceledAt:             s.CanceledAt(),
		PaymentRetryCount:      s.PaymentRetryCount(),
		IsInGracePeriod:        s.IsInGracePeriod(),
		GracePeriodEndsAt:      s.GracePeriodEndsAt(),
		Amount:                 s.Amount(),
		Currency:               s.Currency(),
	}
}
