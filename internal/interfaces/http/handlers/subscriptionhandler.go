package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatdesk/internal/application/subscription/usecases"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	"chatdesk/internal/shared/errors"
	"chatdesk/internal/shared/logger"
	"chatdesk/internal/shared/utils"
)

type SubscriptionHandler struct {
	createUC createSubscriptionUseCase
	cancelUC cancelSubscriptionUseCase
	logger   logger.Interface
}

// NewSubscriptionHandler creates the admin subscription handler.
func NewSubscriptionHandler(
	createUC createSubscriptionUseCase,
	cancelUC cancelSubscriptionUseCase,
	logger logger.Interface,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		createUC: createUC,
		cancelUC: cancelUC,
		logger:   logger,
	}
}

type CreateSubscriptionRequest struct {
	PlanID                 uint   `json:"plan_id" binding:"required"`
	ProviderSubscriptionID string `json:"provider_subscription_id"`
	Status                 string `json:"status" binding:"omitempty,oneof=incomplete trialing active past_due"`
}

type CancelSubscriptionRequest struct {
	Reason    string `json:"reason" binding:"max=255"`
	Immediate bool   `json:"immediate"`
}

// CreateSubscription handles POST /api/tenants/:id/subscriptions
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	tenantID, err := parseIDParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	result, err := h.createUC.Execute(c.Request.Context(), usecases.CreateSubscriptionCommand{
		TenantID:               tenantID,
		PlanID:                 req.PlanID,
		ProviderSubscriptionID: req.ProviderSubscriptionID,
		Status:                 vo.SubscriptionStatus(req.Status),
	})
	if err != nil {
		h.logger.Warnw("create subscription failed", "tenant_id", tenantID, "plan_id", req.PlanID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "subscription created", result)
}

// CancelSubscription handles POST /api/subscriptions/:id/cancel
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	subscriptionID, err := parseIDParam(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req CancelSubscriptionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
			return
		}
	}

	result, err := h.cancelUC.Execute(c.Request.Context(), usecases.CancelSubscriptionCommand{
		SubscriptionID: subscriptionID,
		Reason:         req.Reason,
		Immediate:      req.Immediate,
	})
	if err != nil {
		h.logger.Warnw("cancel subscription failed", "subscription_id", subscriptionID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription canceled", result)
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.NewValidationError("invalid "+name+" parameter", c.Param(name))
	}
	return uint(id), nil
}
