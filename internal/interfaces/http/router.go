package http

import (
	"chatdesk/internal/interfaces/http/middleware"
	"chatdesk/internal/interfaces/http/routes"
)

// SetupRoutes configures all HTTP routes
func (c *Container) SetupRoutes() {
	c.engine.Use(middleware.RequestID())
	c.engine.Use(middleware.RequestLogger(c.log))
	c.engine.Use(middleware.Recovery(c.log))

	routes.SetupSystemRoutes(c.engine)
	routes.SetupBillingRoutes(c.engine, &routes.BillingRouteConfig{
		WebhookHandler:       c.hdlrs.webhookHandler,
		SubscriptionHandler:  c.hdlrs.subscriptionHandler,
		EntitlementHandler:   c.hdlrs.entitlementHandler,
		AdminTokenMiddleware: c.adminTokenMiddleware,
		RateLimiter:          c.rateLimiter,
	})
}
