package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
	"github.com/nomadsim/esim_api/pkg/mobimatter"
)

var startTime = time.Now()

// HealthHandler provides health endpoint.
type HealthHandler struct {
	mobimatter *mobimatter.Client
	checkout   *service.CheckoutService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(mm *mobimatter.Client, checkout *service.CheckoutService) *HealthHandler {
	return &HealthHandler{mobimatter: mm, checkout: checkout}
}

// GetHealth responds with service and catalog feed status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	feedStatus := "connected"
	if _, err := h.mobimatter.GetProducts(c.Request.Context()); err != nil {
		feedStatus = "disconnected"
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":  "healthy",
		"version": "1.0.0",
		"uptime":  int(time.Since(startTime).Seconds()),
		"mobimatter": gin.H{
			"status": feedStatus,
		},
		"checkouts": gin.H{
			"active_sessions": h.checkout.SessionCount(),
		},
	})
}
