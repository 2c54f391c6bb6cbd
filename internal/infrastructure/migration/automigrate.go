package migration

import (
	"chatdesk/internal/infrastructure/persistence/models"
)

// AutoMigrateModels lists every table owned by the billing service.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.PlanModel{},
		&models.SubscriptionModel{},
		&models.TenantModel{},
		&models.TenantUserModel{},
		&models.ChannelAccountModel{},
		&models.OutboxEventModel{},
		&models.ProcessedWebhookEventModel{},
	}
}
