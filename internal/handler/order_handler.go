package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// OrderHandler handles customer-facing order lookups.
type OrderHandler struct {
	orders *service.OrderService
	esims  *service.ESIMService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(orders *service.OrderService, esims *service.ESIMService) *OrderHandler {
	return &OrderHandler{orders: orders, esims: esims}
}

// GetOrder returns one order by id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Param("id"), false)
	if err != nil {
		if errors.Is(err, utils.ErrOrderNotFound) {
			utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get order")
		return
	}

	utils.Success(c, 200, "Order retrieved successfully", gin.H{
		"order": order,
	})
}

// GetOrders returns a customer's order history, looked up by email.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		utils.Error(c, 400, "INVALID_REQUEST", "email query parameter is required")
		return
	}

	orders, err := h.orders.GetOrdersByEmail(email)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get orders")
		return
	}

	utils.Success(c, 200, "Orders retrieved successfully", gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrderESIMs returns the eSIM profiles delivered for an order.
func (h *OrderHandler) GetOrderESIMs(c *gin.Context) {
	orderID := c.Param("id")

	// The order must exist and be customer-visible first.
	if _, err := h.orders.GetOrder(orderID, false); err != nil {
		utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	esims, err := h.esims.GetByOrderID(orderID)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get eSIMs")
		return
	}

	utils.Success(c, 200, "eSIMs retrieved successfully", gin.H{
		"esims": esims,
	})
}

// GetESIMs returns all eSIM profiles for a customer email.
func (h *OrderHandler) GetESIMs(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		utils.Error(c, 400, "INVALID_REQUEST", "email query parameter is required")
		return
	}

	esims, err := h.esims.GetByEmail(email)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get eSIMs")
		return
	}

	utils.Success(c, 200, "eSIMs retrieved successfully", gin.H{
		"esims": esims,
		"count": len(esims),
	})
}
