package http

import (
	"chatdesk/internal/application/billing/usecases"
	entitlementUsecases "chatdesk/internal/application/entitlement/usecases"
	notificationUsecases "chatdesk/internal/application/notification/usecases"
	"chatdesk/internal/application/outbox"
	subscriptionUsecases "chatdesk/internal/application/subscription/usecases"
	"chatdesk/internal/infrastructure/cache"
	"chatdesk/internal/infrastructure/email"
	"chatdesk/internal/infrastructure/scheduler"
	"chatdesk/internal/shared/services/markdown"
)

// allUseCases holds all use case instances used by the application.
type allUseCases struct {
	// Subscription lifecycle
	createSubscriptionUC *subscriptionUsecases.CreateSubscriptionUseCase
	cancelSubscriptionUC *subscriptionUsecases.CancelSubscriptionUseCase
	expireGracePeriodsUC *subscriptionUsecases.ExpireGracePeriodsUseCase

	// Billing
	reconcileWebhookUC *usecases.ReconcileWebhookUseCase

	// Entitlement
	syncEntitlementsUC       *entitlementUsecases.SyncTenantEntitlementsUseCase
	subscriptionEventHandler *entitlementUsecases.SubscriptionEventHandler

	// Notification
	sendBillingEmailUC *notificationUsecases.SendBillingEmailUseCase
}

// BackgroundJobs are the parts of the container run by the worker process.
type BackgroundJobs struct {
	GracePeriodSweeper       scheduler.BatchJob
	OutboxRelay              scheduler.BatchJob
	ProcessedEvents          scheduler.ProcessedEventPruner
	SubscriptionEventHandler outbox.Handler
	BillingEmailHandler      outbox.Handler
}

func (c *Container) initUseCases() {
	log := c.log
	repos := c.repos
	timeout := c.cfg.Stripe.GetRequestTimeout()

	ucs := &allUseCases{}

	ucs.createSubscriptionUC = subscriptionUsecases.NewCreateSubscriptionUseCase(
		repos.subscriptionRepo, repos.planRepo, c.dispatcher, log.Named("create-subscription"),
	)
	ucs.cancelSubscriptionUC = subscriptionUsecases.NewCancelSubscriptionUseCase(
		repos.subscriptionRepo, repos.planRepo, c.gateway, c.dispatcher, c.policy, timeout, log.Named("cancel-subscription"),
	)
	ucs.expireGracePeriodsUC = subscriptionUsecases.NewExpireGracePeriodsUseCase(
		repos.subscriptionRepo, repos.planRepo, c.gateway, c.dispatcher, c.policy, timeout, log.Named("grace-period-sweeper"),
	)
	ucs.expireGracePeriodsUC.SetSweepRecorder(c.recorder)

	ucs.reconcileWebhookUC = usecases.NewReconcileWebhookUseCase(
		repos.subscriptionRepo, repos.planRepo, repos.processedEventRepo, c.gateway, c.dispatcher, c.policy, timeout, log.Named("webhook-reconciler"),
	)

	ucs.syncEntitlementsUC = entitlementUsecases.NewSyncTenantEntitlementsUseCase(
		repos.subscriptionRepo, repos.planRepo, repos.tenantUserRepo, repos.channelAccountRepo, c.dispatcher, log.Named("entitlement-sync"),
	)
	ucs.syncEntitlementsUC.SetFlipRecorder(c.recorder)
	ucs.subscriptionEventHandler = entitlementUsecases.NewSubscriptionEventHandler(ucs.syncEntitlementsUC, log.Named("entitlement-consumer"))

	emailLog := log.Named("billing-email")
	ucs.sendBillingEmailUC = notificationUsecases.NewSendBillingEmailUseCase(
		repos.tenantRepo,
		repos.planRepo,
		email.NewEmailSender(c.cfg.Email, emailLog),
		cache.NewEventDeduplicator(c.redis),
		markdown.NewMarkdownService(),
		emailLog,
	)

	c.ucs = ucs
}
