package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// AssistantHandler exposes the Gemini-backed travel tools.
type AssistantHandler struct {
	assistant *service.AssistantService
}

// NewAssistantHandler constructs an AssistantHandler. The assistant may be
// nil when no Gemini key is configured; endpoints then report unavailable.
func NewAssistantHandler(assistant *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

// TravelPlan generates a short connectivity-aware travel plan.
func (h *AssistantHandler) TravelPlan(c *gin.Context) {
	if h.assistant == nil {
		utils.Error(c, 503, "ASSISTANT_UNAVAILABLE", "Travel assistant is not configured")
		return
	}

	var req struct {
		Destination string `json:"destination" binding:"required"`
		Days        int    `json:"days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	plan, err := h.assistant.TravelPlan(c.Request.Context(), req.Destination, req.Days)
	if err != nil {
		utils.Error(c, 502, "ASSISTANT_ERROR", "Failed to generate travel plan")
		return
	}

	utils.Success(c, 200, "Travel plan generated", gin.H{
		"plan": plan,
	})
}

// EstimateData estimates a trip's mobile data need.
func (h *AssistantHandler) EstimateData(c *gin.Context) {
	if h.assistant == nil {
		utils.Error(c, 503, "ASSISTANT_UNAVAILABLE", "Travel assistant is not configured")
		return
	}

	var req struct {
		Days   int    `json:"days"`
		Habits string `json:"habits" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	estimate, err := h.assistant.EstimateData(c.Request.Context(), req.Days, req.Habits)
	if err != nil {
		utils.Error(c, 502, "ASSISTANT_ERROR", "Failed to estimate data usage")
		return
	}

	utils.Success(c, 200, "Data estimate generated", gin.H{
		"estimate": estimate,
	})
}
