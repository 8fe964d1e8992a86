package handler

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
	"github.com/nomadsim/esim_api/pkg/qpay"
)

// WebhookHandler handles incoming gateway callbacks.
type WebhookHandler struct {
	checkout      *service.CheckoutService
	webhookSecret string
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(checkout *service.CheckoutService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{checkout: checkout, webhookSecret: webhookSecret}
}

// HandleQPayCallback handles POST /webhook/qpay. The payload only names an
// order; payment status is re-checked against the gateway before anything
// changes.
func (h *WebhookHandler) HandleQPayCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid body"})
		return
	}

	if h.webhookSecret != "" {
		signature := c.GetHeader("X-Callback-Signature")
		if !utils.VerifyPayload(body, signature, h.webhookSecret) {
			log.Warn().Msg("QPay callback with bad signature rejected")
			c.JSON(401, gin.H{"error": "Invalid signature"})
			return
		}
	}

	var payload qpay.CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(400, gin.H{"error": "Invalid JSON"})
		return
	}
	if payload.SenderInvoiceNo == "" {
		c.JSON(400, gin.H{"error": "Missing order reference"})
		return
	}

	if err := h.checkout.ConfirmFromCallback(c.Request.Context(), payload.SenderInvoiceNo); err != nil {
		log.Error().Err(err).Str("order_id", payload.SenderInvoiceNo).Msg("Failed to process QPay callback")
		c.JSON(500, gin.H{"error": "Processing failed"})
		return
	}

	c.JSON(200, gin.H{"received": true})
}
