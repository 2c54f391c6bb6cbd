package mappers

import (
	"fmt"

	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	"chatdesk/internal/infrastructure/persistence/models"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) *models.SubscriptionModel
	ToEntities(models []*models.SubscriptionModel) ([]*subscription.Subscription, error)
}

type SubscriptionMapperImpl struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &SubscriptionMapperImpl{}
}

func (m *SubscriptionMapperImpl) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	status := vo.SubscriptionStatus(model.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid subscription status: %s", model.Status)
	}

	entity, err := subscription.ReconstructSubscription(subscription.SubscriptionParams{
		ID:                      model.ID,
		TenantID:                model.TenantID,
		PlanID:                  model.PlanID,
		ProviderSubscriptionID:  model.ProviderSubscriptionID,
		Status:                  status,
		CurrentPeriodStart:      model.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:        model.CurrentPeriodEnd.UTC(),
		CancelAtPeriodEnd:       model.CancelAtPeriodEnd,
		CanceledAt:              utcPtr(model.CanceledAt),
		CancellationRequestedAt: utcPtr(model.CancellationRequestedAt),
		PaymentRetryCount:       model.PaymentRetryCount,
		FirstPaymentFailureAt:   utcPtr(model.FirstPaymentFailureAt),
		LastPaymentFailedAt:     utcPtr(model.LastPaymentFailedAt),
		NextRetryAt:             utcPtr(model.NextRetryAt),
		HasReachedMaxRetries:    model.HasReachedMaxRetries,
		IsInGracePeriod:         model.IsInGracePeriod,
		GracePeriodEndsAt:       utcPtr(model.GracePeriodEndsAt),
		Amount:                  model.Amount,
		Currency:                model.Currency,
		Version:                 model.Version,
		CreatedAt:               model.CreatedAt.UTC(),
		UpdatedAt:               model.UpdatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription %d: %w", model.ID, err)
	}
	return entity, nil
}

func (m *SubscriptionMapperImpl) ToModel(entity *subscription.Subscription) *models.SubscriptionModel {
	if entity == nil {
		return nil
	}
	return &models.SubscriptionModel{
		ID:                      entity.ID(),
		TenantID:                entity.TenantID(),
		PlanID:                  entity.PlanID(),
		ProviderSubscriptionID:  entity.ProviderSubscriptionID(),
		Status:                  entity.Status().String(),
		CurrentPeriodStart:      entity.CurrentPeriodStart(),
		CurrentPeriodEnd:        entity.CurrentPeriodEnd(),
		CancelAtPeriodEnd:       entity.CancelAtPeriodEnd(),
		CanceledAt:              entity.CanceledAt(),
		CancellationRequestedAt: entity.CancellationRequestedAt(),
		PaymentRetryCount:       entity.PaymentRetryCount(),
		FirstPaymentFailureAt:   entity.FirstPaymentFailureAt(),
		LastPaymentFailedAt:     entity.LastPaymentFailedAt(),
		NextRetryAt:             entity.NextRetryAt(),
		HasReachedMaxRetries:    entity.HasReachedMaxRetries(),
		IsInGracePeriod:         entity.IsInGracePeriod(),
		GracePeriodEndsAt:       entity.GracePeriodEndsAt(),
		Amount:                  entity.Amount(),
		Currency:                entity.Currency(),
		Version:                 entity.Version(),
		CreatedAt:               entity.CreatedAt(),
		UpdatedAt:               entity.UpdatedAt(),
	}
}

func (m *SubscriptionMapperImpl) ToEntities(models []*models.SubscriptionModel) ([]*subscription.Subscription, error) {
	entities := make([]*subscription.Subscription, 0, len(models))
	for _, model := range models {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
