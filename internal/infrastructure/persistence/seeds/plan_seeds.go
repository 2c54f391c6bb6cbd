package seeds

import (
	"gorm.io/gorm"

	"chatdesk/internal/infrastructure/persistence/models"
)

// SeedDefaultPlans creates the zero-cost plan that downgrades land on.
func SeedDefaultPlans(db *gorm.DB, freePlanName string) error {
	free := models.PlanModel{
		Name:                 freePlanName,
		MaxUsers:             1,
		MaxChannels:          1,
		MaxWhatsAppChannels:  1,
		MaxFacebookChannels:  1,
		MaxInstagramChannels: 1,
		MaxTelegramChannels:  1,
		Price:                0,
		Currency:             "usd",
	}
	return db.Where(models.PlanModel{Name: freePlanName}).FirstOrCreate(&free).Error
}
