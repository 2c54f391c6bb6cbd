// Package routes provides HTTP route configurations.
package routes

import (
	"github.com/gin-gonic/gin"

	"chatdesk/internal/interfaces/http/handlers"
	"chatdesk/internal/interfaces/http/middleware"
)

// BillingRouteConfig contains dependencies for the billing routes.
type BillingRouteConfig struct {
	WebhookHandler       *handlers.WebhookHandler
	SubscriptionHandler  *handlers.SubscriptionHandler
	EntitlementHandler   *handlers.EntitlementHandler
	AdminTokenMiddleware *middleware.AdminTokenMiddleware
	// RateLimiter may be nil, in which case /api is not throttled.
	RateLimiter *middleware.RateLimiter
}

// SetupBillingRoutes configures the provider webhook and the operator API.
// Routes:
//
//	POST /webhooks/stripe
//	POST /api/tenants/:id/subscriptions
//	POST /api/tenants/:id/entitlements/sync
//	POST /api/subscriptions/:id/cancel
func SetupBillingRoutes(engine *gin.Engine, cfg *BillingRouteConfig) {
	// Authenticated by the provider signature, not by the admin token
	webhooks := engine.Group("/webhooks")
	{
		webhooks.POST("/stripe", cfg.WebhookHandler.HandleStripeWebhook)
	}

	api := engine.Group("/api")
	api.Use(cfg.RateLimiter.Limit(), cfg.AdminTokenMiddleware.RequireAdminToken())
	{
		tenants := api.Group("/tenants/:id")
		{
			tenants.POST("/subscriptions", cfg.SubscriptionHandler.CreateSubscription)
			tenants.POST("/entitlements/sync", cfg.EntitlementHandler.SyncTenant)
		}

		api.POST("/subscriptions/:id/cancel", cfg.SubscriptionHandler.CancelSubscription)
	}
}
