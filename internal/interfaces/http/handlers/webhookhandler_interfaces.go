package handlers

import (
	"context"
	"time"

	"chatdesk/internal/application/billing/paymentgateway"
	entitlementUsecases "chatdesk/internal/application/entitlement/usecases"
	subdto "chatdesk/internal/application/subscription/dto"
	"chatdesk/internal/application/subscription/usecases"
)

// Use case interfaces consumed by the handlers

type webhookVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) (*paymentgateway.Event, error)
}

type webhookReconciler interface {
	Reconcile(ctx context.Context, eventType string, event *paymentgateway.Event) (bool, error)
}

// WebhookObserver records per-request webhook outcomes; it may be nil.
type WebhookObserver interface {
	ObserveWebhook(eventType string, status int, elapsed time.Duration)
}

type createSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd usecases.CreateSubscriptionCommand) (*subdto.SubscriptionDTO, error)
}

type cancelSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd usecases.CancelSubscriptionCommand) (*subdto.SubscriptionDTO, error)
}

type tenantSyncer interface {
	SyncTenant(ctx context.Context, tenantID uint) (*entitlementUsecases.SyncResult, error)
}
