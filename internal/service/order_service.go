package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/repository"
	"github.com/nomadsim/esim_api/internal/sse"
	"github.com/nomadsim/esim_api/internal/utils"
	"github.com/nomadsim/esim_api/pkg/qpay"
)

// OrderService serves order lookups and the admin back-office operations.
type OrderService struct {
	orderRepo *repository.OrderRepository
	esimRepo  *repository.ESIMRepository
	esims     *ESIMService
	qpay      *qpay.Client
	notifier  sse.OrderNotifier
}

// NewOrderService constructs an OrderService.
func NewOrderService(orderRepo *repository.OrderRepository, esimRepo *repository.ESIMRepository, esims *ESIMService, qp *qpay.Client, notifier sse.OrderNotifier) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		esimRepo:  esimRepo,
		esims:     esims,
		qpay:      qp,
		notifier:  notifier,
	}
}

// GetOrder returns one order. Hidden orders are invisible to customers but
// remain reachable for admins.
func (s *OrderService) GetOrder(orderID string, includeHidden bool) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusHidden && !includeHidden {
		return nil, utils.ErrOrderNotFound
	}
	return order, nil
}

// GetOrdersByEmail returns a customer's order history.
func (s *OrderService) GetOrdersByEmail(email string) ([]models.Order, error) {
	return s.orderRepo.GetByEmail(email)
}

// OrderDetail pairs an order with its provisioned profiles.
type OrderDetail struct {
	Order *models.Order `json:"order"`
	ESIMs []models.ESIM `json:"esims"`
}

// GetOrderDetail returns an order with its profiles for the back office.
func (s *OrderService) GetOrderDetail(orderID string) (*OrderDetail, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	esims, err := s.esimRepo.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, ESIMs: esims}, nil
}

// ListOrders returns orders for the back office.
func (s *OrderService) ListOrders(filter *repository.AdminOrderFilter) ([]models.Order, int64, error) {
	return s.orderRepo.GetAllAdmin(filter)
}

// GetStats returns the dashboard aggregate for the trailing window.
func (s *OrderService) GetStats(window time.Duration) (*repository.OrderStats, error) {
	return s.orderRepo.GetStats(time.Now().Add(-window))
}

// ResendDelivery re-sends an order's eSIM email. Only meaningful for
// orders that actually have provisioned profiles.
func (s *OrderService) ResendDelivery(orderID string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if !order.Status.PaidLike() {
		return utils.ErrOrderNotPaid
	}
	return s.esims.ResendDelivery(orderID)
}

// RetryProvisioning puts a failed order back in the provisioning queue by
// resetting it to paid. The provision worker picks it up on its next tick.
func (s *OrderService) RetryProvisioning(orderID string) error {
	transitioned, err := s.orderRepo.UpdateStatusFrom(orderID, models.OrderStatusProvisioningFailed, models.OrderStatusPaid)
	if err != nil {
		return err
	}
	if !transitioned {
		return utils.ErrRetryNotAllowed
	}
	if order, err := s.orderRepo.GetByID(orderID); err == nil {
		s.notifier.NotifyOrderStatusChanged(order)
	}
	log.Info().Str("order_id", orderID).Msg("order: provisioning retry queued")
	return nil
}

// Refund refunds an order's payment through the gateway and cancels the
// order. Only settled orders with a recorded payment are refundable.
func (s *OrderService) Refund(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if !order.Status.PaidLike() || order.PaymentID == "" {
		return utils.ErrOrderNotRefundable
	}

	if err := s.qpay.Refund(ctx, order.PaymentID); err != nil {
		return err
	}

	now := time.Now()
	if err := s.orderRepo.UpdateFields(orderID, map[string]interface{}{
		"status":      models.OrderStatusCancelled,
		"refunded_at": now,
	}); err != nil {
		return err
	}
	order.Status = models.OrderStatusCancelled
	order.RefundedAt = &now
	s.notifier.NotifyOrderStatusChanged(order)
	log.Info().Str("order_id", orderID).Str("payment_id", order.PaymentID).Msg("order: refunded")
	return nil
}

// Hide soft-deletes an order from every customer-facing surface. Orders
// are never removed from the store.
func (s *OrderService) Hide(orderID string) error {
	if err := s.orderRepo.UpdateStatus(orderID, models.OrderStatusHidden); err != nil {
		return err
	}
	log.Info().Str("order_id", orderID).Msg("order: hidden")
	return nil
}
