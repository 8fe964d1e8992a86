package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/repository"
	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// AdminOrderHandler handles back-office order operations.
type AdminOrderHandler struct {
	orders *service.OrderService
}

// NewAdminOrderHandler constructs an AdminOrderHandler.
func NewAdminOrderHandler(orders *service.OrderService) *AdminOrderHandler {
	return &AdminOrderHandler{orders: orders}
}

// GetOrders returns orders with filters and pagination.
func (h *AdminOrderHandler) GetOrders(c *gin.Context) {
	filter := &repository.AdminOrderFilter{
		Status:     models.OrderStatus(c.Query("status")),
		Email:      c.Query("email"),
		Search:     c.Query("search"),
		ShowHidden: c.Query("show_hidden") == "true",
		Page:       1,
		Limit:      20,
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Page = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.DateTo = &end
		}
	}

	orders, total, err := h.orders.ListOrders(filter)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get orders")
		return
	}

	utils.SuccessWithPagination(c, 200, "Orders retrieved successfully", gin.H{
		"orders": orders,
	}, filter.Page, filter.Limit, int(total))
}

// GetOrder returns one order with its eSIM profiles.
func (h *AdminOrderHandler) GetOrder(c *gin.Context) {
	detail, err := h.orders.GetOrderDetail(c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrOrderNotFound) {
			utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get order")
		return
	}

	utils.Success(c, 200, "Order retrieved successfully", gin.H{
		"order": detail.Order,
		"esims": detail.ESIMs,
	})
}

// GetStats returns the dashboard aggregate.
func (h *AdminOrderHandler) GetStats(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	stats, err := h.orders.GetStats(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get stats")
		return
	}

	utils.Success(c, 200, "Stats retrieved successfully", gin.H{
		"stats": stats,
		"days":  days,
	})
}

// ResendDelivery re-sends an order's eSIM email.
func (h *AdminOrderHandler) ResendDelivery(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.orders.ResendDelivery(orderID); err != nil {
		switch {
		case errors.Is(err, utils.ErrOrderNotFound):
			utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
		case errors.Is(err, utils.ErrOrderNotPaid):
			utils.Error(c, 409, "ORDER_NOT_PAID", "Order has no delivered eSIM to resend")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to resend delivery")
		}
		return
	}

	utils.Success(c, 200, "Delivery email resent", gin.H{
		"orderId": orderID,
	})
}

// RetryProvisioning queues a failed order for another provisioning attempt.
func (h *AdminOrderHandler) RetryProvisioning(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.orders.RetryProvisioning(orderID); err != nil {
		if errors.Is(err, utils.ErrRetryNotAllowed) {
			utils.Error(c, 409, "RETRY_NOT_ALLOWED", "Only failed provisioning can be retried")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retry provisioning")
		return
	}

	utils.Success(c, 200, "Provisioning retry queued", gin.H{
		"orderId": orderID,
	})
}

// Refund refunds an order through the gateway.
func (h *AdminOrderHandler) Refund(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.orders.Refund(c.Request.Context(), orderID); err != nil {
		switch {
		case errors.Is(err, utils.ErrOrderNotFound):
			utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
		case errors.Is(err, utils.ErrOrderNotRefundable):
			utils.Error(c, 409, "ORDER_NOT_REFUNDABLE", "Order has no refundable payment")
		default:
			utils.Error(c, 502, "REFUND_FAILED", "Failed to refund order")
		}
		return
	}

	utils.Success(c, 200, "Order refunded", gin.H{
		"orderId": orderID,
	})
}

// Hide removes an order from customer-facing surfaces.
func (h *AdminOrderHandler) Hide(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.orders.Hide(orderID); err != nil {
		if errors.Is(err, utils.ErrOrderNotFound) {
			utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to hide order")
		return
	}

	utils.Success(c, 200, "Order hidden", gin.H{
		"orderId": orderID,
	})
}
