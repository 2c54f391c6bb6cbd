package mappers

import (
	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/tenant"
	"chatdesk/internal/infrastructure/persistence/models"
)

func TenantToEntity(model *models.TenantModel) *tenant.Tenant {
	if model == nil {
		return nil
	}
	return &tenant.Tenant{
		ID:           model.ID,
		Name:         model.Name,
		BillingEmail: model.BillingEmail,
	}
}

func TenantUserToEntity(model *models.TenantUserModel) (*tenant.TenantUser, error) {
	return tenant.ReconstructTenantUser(
		model.ID,
		model.TenantID,
		model.Email,
		tenant.EntityStatus(model.Status),
		utcPtr(model.SuspendedAt),
		utcPtr(model.ResumedAt),
		model.CreatedAt.UTC(),
	)
}

func ChannelAccountToEntity(model *models.ChannelAccountModel) (*tenant.ChannelAccount, error) {
	return tenant.ReconstructChannelAccount(
		model.ID,
		model.TenantID,
		entitlement.ChannelType(model.ChannelType),
		model.Name,
		tenant.EntityStatus(model.Status),
		utcPtr(model.SuspendedAt),
		utcPtr(model.ResumedAt),
		model.CreatedAt.UTC(),
	)
}
