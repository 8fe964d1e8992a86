package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// CheckoutHandler handles the storefront purchase flow.
type CheckoutHandler struct {
	checkout *service.CheckoutService
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// StartCheckout creates a pending order with a QR invoice and starts the
// payment watch.
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		SKU   string `json:"sku" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	session, err := h.checkout.StartCheckout(c.Request.Context(), req.Email, req.SKU)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidEmail):
			utils.Error(c, 400, "INVALID_EMAIL", "A valid email address is required")
		case errors.Is(err, utils.ErrPackageNotFound):
			utils.Error(c, 404, "PACKAGE_NOT_FOUND", "Package not found")
		case errors.Is(err, utils.ErrLoginRequired):
			utils.Error(c, 401, "LOGIN_REQUIRED", "Top-up purchases require your purchase email")
		case errors.Is(err, utils.ErrNoESIM):
			utils.Error(c, 403, "NO_ESIM", "Top-ups require an existing eSIM purchase")
		case errors.Is(err, utils.ErrProviderMismatch):
			utils.Error(c, 403, "PROVIDER_MISMATCH", "This top-up belongs to a different provider than your eSIM")
		case errors.Is(err, utils.ErrInvoiceFailed):
			utils.Error(c, 502, "INVOICE_FAILED", "Payment invoice could not be created")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to start checkout")
		}
		return
	}

	utils.Success(c, 201, "Checkout started", gin.H{
		"checkout": session,
	})
}

// GetCheckout returns the current state of a checkout session. The
// storefront polls this endpoint to drive its payment screen.
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	session, err := h.checkout.GetSession(c.Param("id"))
	if err != nil {
		utils.Error(c, 404, "CHECKOUT_NOT_FOUND", "Checkout session not found")
		return
	}

	utils.Success(c, 200, "Checkout retrieved successfully", gin.H{
		"checkout": session,
	})
}

// RecheckPayment triggers an immediate gateway status check for a session.
func (h *CheckoutHandler) RecheckPayment(c *gin.Context) {
	session, err := h.checkout.RecheckPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrCheckoutNotFound):
			utils.Error(c, 404, "CHECKOUT_NOT_FOUND", "Checkout session not found")
		case errors.Is(err, utils.ErrCheckoutFinished):
			utils.Error(c, 409, "CHECKOUT_FINISHED", "Checkout has already finished")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to recheck payment")
		}
		return
	}

	utils.Success(c, 200, "Payment rechecked", gin.H{
		"checkout": session,
	})
}
