package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatdesk/internal/shared/constants"
	"chatdesk/internal/shared/logger"
	"chatdesk/internal/shared/utils"
)

// WebhookHandler receives payment provider webhooks. Only a persistence
// failure answers 5xx, so the provider retries exactly what can be retried.
type WebhookHandler struct {
	verifier   webhookVerifier
	reconciler webhookReconciler
	observer   WebhookObserver
	logger     logger.Interface
}

// NewWebhookHandler creates the provider webhook endpoint.
func NewWebhookHandler(verifier webhookVerifier, reconciler webhookReconciler, logger logger.Interface) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		logger:     logger,
	}
}

// SetObserver sets the metrics hook (optional dependency injection)
func (h *WebhookHandler) SetObserver(o WebhookObserver) {
	h.observer = o
}

type webhookResponse struct {
	Received bool `json:"received"`
	Applied  bool `json:"applied"`
}

// HandleStripeWebhook handles POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		if h.observer != nil {
			h.observer.ObserveWebhook(eventType, status, time.Since(start))
		}
	}()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxWebhookBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		status = http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		utils.ErrorResponse(c, status, "failed to read request body")
		return
	}

	event, err := h.verifier.VerifyWebhookSignature(body, c.GetHeader(constants.HeaderStripeSignature))
	if err != nil {
		h.logger.Warnw("webhook signature verification failed", "error", err, "ip", c.ClientIP())
		status = http.StatusBadRequest
		utils.ErrorResponse(c, status, "invalid webhook signature")
		return
	}
	eventType = event.Type

	applied, err := h.reconciler.Reconcile(c.Request.Context(), event.Type, event)
	if err != nil {
		h.logger.Errorw("webhook processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		status = http.StatusInternalServerError
		utils.ErrorResponse(c, status, "webhook processing failed")
		return
	}

	h.logger.Debugw("webhook processed",
		"event_id", event.ID,
		"event_type", event.Type,
		"applied", applied,
	)
	c.JSON(http.StatusOK, webhookResponse{Received: true, Applied: applied})
}
