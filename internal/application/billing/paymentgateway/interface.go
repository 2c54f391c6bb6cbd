package paymentgateway

import (
	"context"
	"time"

	"chatdesk/internal/domain/subscription"
)

// Canonical event types understood by the reconciler. Adapters map provider names onto these.
const (
	EventSubscriptionCreated     = "subscription.created"
	EventSubscriptionUpdated     = "subscription.updated"
	EventSubscriptionDeleted     = "subscription.deleted"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaid             = "invoice.paid"
)

// PaymentGateway is the only route to the payment provider. Cancel is the sole mutating call.
type PaymentGateway interface {
	GetSubscription(ctx context.Context, providerSubscriptionID string) (*subscription.ProviderState, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID string, immediate bool) error
	// VerifyWebhookSignature authenticates and parses a webhook delivery.
	VerifyWebhookSignature(body []byte, signature string) (*Event, error)
}

// Event is a verified, provider-neutral webhook event.
type Event struct {
	ID                     string
	Type                   string
	ProviderSubscriptionID string
	// TenantID comes from subscription metadata set at checkout; zero when absent.
	TenantID uint
	// Snapshot is the subscription state embedded in the payload, used when the gateway fetch fails.
	Snapshot *subscription.ProviderState
	// AttemptCount is the invoice attempt number for invoice events.
	AttemptCount  int
	FailureReason string
	OccurredAt    time.Time
}
