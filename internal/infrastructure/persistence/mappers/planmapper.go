package mappers

import (
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/infrastructure/persistence/models"
)

func PlanToEntity(model *models.PlanModel) (*subscription.Plan, error) {
	if model == nil {
		return nil, nil
	}
	return subscription.ReconstructPlan(subscription.PlanParams{
		ID:                   model.ID,
		Name:                 model.Name,
		MaxUsers:             model.MaxUsers,
		MaxChannels:          model.MaxChannels,
		MaxWhatsAppChannels:  model.MaxWhatsAppChannels,
		MaxFacebookChannels:  model.MaxFacebookChannels,
		MaxInstagramChannels: model.MaxInstagramChannels,
		MaxTelegramChannels:  model.MaxTelegramChannels,
		Price:                model.Price,
		Currency:             model.Currency,
		ProviderPriceID:      model.ProviderPriceID,
	})
}
