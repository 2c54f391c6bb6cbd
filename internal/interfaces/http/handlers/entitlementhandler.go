package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatdesk/internal/shared/logger"
	"chatdesk/internal/shared/utils"
)

type EntitlementHandler struct {
	syncer tenantSyncer
	logger logger.Interface
}

// NewEntitlementHandler creates the admin entitlement handler.
func NewEntitlementHandler(syncer tenantSyncer, logger logger.Interface) *EntitlementHandler {
	return &EntitlementHandler{syncer: syncer, logger: logger}
}

// SyncTenant handles POST /api/tenants/:id/entitlements/sync
func (h *EntitlementHandler) SyncTenant(c *gin.Context) {
	tenantID, err := parseIDParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.syncer.SyncTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Errorw("manual entitlement sync failed", "tenant_id", tenantID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "entitlements synchronized", result)
}
