package http

import (
	"chatdesk/internal/infrastructure/ratelimit"
	"chatdesk/internal/interfaces/http/handlers"
	"chatdesk/internal/interfaces/http/middleware"
)

// allHandlers holds all HTTP handler instances used by the application.
type allHandlers struct {
	webhookHandler      *handlers.WebhookHandler
	subscriptionHandler *handlers.SubscriptionHandler
	entitlementHandler  *handlers.EntitlementHandler
}

func (c *Container) initHandlers() {
	log := c.log
	ucs := c.ucs

	hdlrs := &allHandlers{}

	hdlrs.webhookHandler = handlers.NewWebhookHandler(c.gateway, ucs.reconcileWebhookUC, log.Named("webhook"))
	hdlrs.webhookHandler.SetObserver(c.recorder)
	hdlrs.subscriptionHandler = handlers.NewSubscriptionHandler(ucs.createSubscriptionUC, ucs.cancelSubscriptionUC, log.Named("subscription-api"))
	hdlrs.entitlementHandler = handlers.NewEntitlementHandler(ucs.syncEntitlementsUC, log.Named("entitlement-api"))

	c.adminTokenMiddleware = middleware.NewAdminTokenMiddleware(c.cfg.Server.AdminToken, log.Named("admin-auth"))

	limits := ratelimit.Config{
		RequestsPerMinute: c.cfg.Server.AdminRateLimitPerMinute,
		RequestsPerHour:   c.cfg.Server.AdminRateLimitPerHour,
	}
	if limits.Enabled() {
		c.rateLimiter = middleware.NewRateLimiter(ratelimit.NewSlidingWindowLimiter(c.redis, limits), log.Named("ratelimit"))
	}

	c.hdlrs = hdlrs
}
