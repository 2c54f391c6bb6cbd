package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// HTTP Headers
	HeaderContentType     = "Content-Type"
	HeaderXRequestID      = "X-Request-ID"
	HeaderStripeSignature = "Stripe-Signature"

	ContentTypeJSON = "application/json"

	// Context keys
	ContextKeyRequestID = "request_id"

	// Database table names
	TablePlans                  = "plans"
	TableSubscriptions          = "subscriptions"
	TableTenants                = "tenants"
	TableTenantUsers            = "tenant_users"
	TableChannelAccounts        = "channel_accounts"
	TableOutboxEvents           = "outbox_events"
	TableProcessedWebhookEvents = "processed_webhook_events"

	// Webhook request bodies larger than this are rejected before signature verification.
	MaxWebhookBodyBytes = 64 * 1024

	ErrMsgInternalServerError = "Internal server error occurred"
	ErrMsgResourceNotFound    = "Resource not found"
	ErrMsgValidationFailed    = "Validation failed"
	ErrMsgConflict            = "Resource already exists"
)
