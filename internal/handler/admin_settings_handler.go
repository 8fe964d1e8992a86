package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// AdminSettingsHandler handles back-office pricing configuration.
type AdminSettingsHandler struct {
	settings *service.SettingsService
}

// NewAdminSettingsHandler constructs an AdminSettingsHandler.
func NewAdminSettingsHandler(settings *service.SettingsService) *AdminSettingsHandler {
	return &AdminSettingsHandler{settings: settings}
}

// GetPricing returns the live pricing snapshot.
func (h *AdminSettingsHandler) GetPricing(c *gin.Context) {
	utils.Success(c, 200, "Pricing retrieved successfully", gin.H{
		"pricing": h.settings.Pricing(),
	})
}

// UpdatePricing sets the exchange rate and margin. Takes effect on the
// next catalog request.
func (h *AdminSettingsHandler) UpdatePricing(c *gin.Context) {
	var req struct {
		USDToMNTRate  *float64 `json:"usdToMntRate" binding:"required"`
		MarginPercent *float64 `json:"marginPercent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "usdToMntRate and marginPercent are required")
		return
	}

	if err := h.settings.UpdatePricing(*req.USDToMNTRate, *req.MarginPercent); err != nil {
		utils.Error(c, 400, "INVALID_PRICING", err.Error())
		return
	}

	utils.Success(c, 200, "Pricing updated", gin.H{
		"pricing": h.settings.Pricing(),
	})
}

// GetSettings returns all raw settings rows.
func (h *AdminSettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.ListSettings()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get settings")
		return
	}

	utils.Success(c, 200, "Settings retrieved successfully", gin.H{
		"settings": settings,
	})
}
