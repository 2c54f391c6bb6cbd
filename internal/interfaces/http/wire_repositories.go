package http

import (
	"gorm.io/gorm"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/domain/tenant"
	"chatdesk/internal/infrastructure/repository"
	"chatdesk/internal/shared/logger"
)

// repositories holds all repository instances used by the application.
// Types match the return types of the repository constructors.
type repositories struct {
	subscriptionRepo   subscription.SubscriptionRepository
	planRepo           subscription.PlanRepository
	tenantRepo         tenant.TenantRepository
	tenantUserRepo     tenant.TenantUserRepository
	channelAccountRepo tenant.ChannelAccountRepository
	outboxRepo         outbox.Store
	processedEventRepo *repository.ProcessedWebhookEventRepositoryImpl
}

func newRepositories(db *gorm.DB, log logger.Interface) *repositories {
	return &repositories{
		subscriptionRepo:   repository.NewSubscriptionRepository(db, log),
		planRepo:           repository.NewPlanRepository(db, log),
		tenantRepo:         repository.NewTenantRepository(db, log),
		tenantUserRepo:     repository.NewTenantUserRepository(db, log),
		channelAccountRepo: repository.NewChannelAccountRepository(db, log),
		outboxRepo:         repository.NewOutboxRepository(db, log),
		processedEventRepo: repository.NewProcessedWebhookEventRepository(db, log),
	}
}
