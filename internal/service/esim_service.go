package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/repository"
	"github.com/nomadsim/esim_api/internal/sse"
	"github.com/nomadsim/esim_api/pkg/mailer"
	"github.com/nomadsim/esim_api/pkg/mobimatter"
)

// ESIMService provisions eSIM profiles for paid orders through the
// Mobimatter order API and delivers them by email.
type ESIMService struct {
	mobimatter *mobimatter.Client
	orderRepo  *repository.OrderRepository
	esimRepo   *repository.ESIMRepository
	mailer     mailer.Mailer
	notifier   sse.OrderNotifier
}

// NewESIMService constructs an ESIMService.
func NewESIMService(mm *mobimatter.Client, orderRepo *repository.OrderRepository, esimRepo *repository.ESIMRepository, m mailer.Mailer, notifier sse.OrderNotifier) *ESIMService {
	return &ESIMService{
		mobimatter: mm,
		orderRepo:  orderRepo,
		esimRepo:   esimRepo,
		mailer:     m,
		notifier:   notifier,
	}
}

// ProvisionOrder takes a paid order through the provider's two-step order
// flow and stores the resulting profile. The paid-to-provisioning guard
// makes the claim exclusive; a worker picking up the same order twice is a
// no-op.
func (s *ESIMService) ProvisionOrder(ctx context.Context, order *models.Order) error {
	exists, err := s.esimRepo.ExistsForOrder(order.OrderID)
	if err != nil {
		return err
	}
	if exists {
		// Crashed after provisioning but before the final status write.
		return s.finishOrder(order)
	}

	claimed, err := s.orderRepo.UpdateStatusFrom(order.OrderID, order.Status, models.OrderStatusProvisioning)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	order.Status = models.OrderStatusProvisioning
	s.notifier.NotifyOrderStatusChanged(order)

	if len(order.Items) == 0 {
		return s.failProvisioning(order, "order has no items")
	}
	item := order.Items[0]

	providerOrderID, err := s.mobimatter.CreateOrder(ctx, mobimatter.CreateOrderRequest{
		ProductID: item.SKU,
		Quantity:  item.Quantity,
		Label:     order.OrderID,
	})
	if err != nil {
		return s.failProvisioning(order, fmt.Sprintf("provider order failed: %v", err))
	}

	if err := s.mobimatter.CompleteOrder(ctx, providerOrderID); err != nil {
		return s.failProvisioning(order, fmt.Sprintf("provider completion failed: %v", err))
	}

	info, err := s.mobimatter.GetOrderInfo(ctx, providerOrderID)
	if err != nil {
		return s.failProvisioning(order, fmt.Sprintf("provider order info failed: %v", err))
	}

	esim := buildProfile(order, &item, info)
	if esim.SMDPAddress == "" || esim.ActivationCode == "" {
		return s.failProvisioning(order, "provider returned incomplete activation data")
	}
	if err := s.esimRepo.Create(esim); err != nil {
		return s.failProvisioning(order, fmt.Sprintf("failed to store profile: %v", err))
	}

	if err := s.sendDelivery(order, esim); err != nil {
		// Delivery failure does not fail the order; the profile is stored
		// and a resend is one admin click away.
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("esim: delivery email failed")
	}

	return s.finishOrder(order)
}

func (s *ESIMService) finishOrder(order *models.Order) error {
	transitioned, err := s.orderRepo.UpdateStatusFrom(order.OrderID, models.OrderStatusProvisioning, models.OrderStatusCompleted)
	if err != nil {
		return err
	}
	if transitioned {
		order.Status = models.OrderStatusCompleted
		s.notifier.NotifyOrderStatusChanged(order)
		log.Info().Str("order_id", order.OrderID).Msg("esim: order completed")
	}
	return nil
}

func (s *ESIMService) failProvisioning(order *models.Order, reason string) error {
	log.Error().Str("order_id", order.OrderID).Str("reason", reason).Msg("esim: provisioning failed")
	if err := s.orderRepo.UpdateFields(order.OrderID, map[string]interface{}{
		"status":        models.OrderStatusProvisioningFailed,
		"failed_reason": reason,
	}); err != nil {
		return err
	}
	order.Status = models.OrderStatusProvisioningFailed
	order.FailedReason = reason
	s.notifier.NotifyOrderStatusChanged(order)
	return nil
}

// GetByOrderID returns the profiles of one order.
func (s *ESIMService) GetByOrderID(orderID string) ([]models.ESIM, error) {
	return s.esimRepo.GetByOrderID(orderID)
}

// GetByEmail returns a customer's profiles.
func (s *ESIMService) GetByEmail(email string) ([]models.ESIM, error) {
	return s.esimRepo.GetByEmail(email)
}

// ResendDelivery re-sends the delivery email for an order's profiles.
func (s *ESIMService) ResendDelivery(orderID string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	esims, err := s.esimRepo.GetByOrderID(orderID)
	if err != nil {
		return err
	}
	if len(esims) == 0 {
		return fmt.Errorf("order %s has no provisioned profiles", orderID)
	}
	for i := range esims {
		if err := s.sendDelivery(order, &esims[i]); err != nil {
			return err
		}
	}
	return s.orderRepo.IncrementResendCount(orderID)
}

func (s *ESIMService) sendDelivery(order *models.Order, esim *models.ESIM) error {
	subject := "Your NomadSIM eSIM is ready"
	body := fmt.Sprintf(`<h2>Your eSIM is ready to install</h2>
<p>Order: <b>%s</b></p>
<p>Scan the QR code in your device settings, or enter the details manually:</p>
<ul>
  <li>SM-DP+ address: <code>%s</code></li>
  <li>Activation code: <code>%s</code></li>
</ul>
<p>Activation payload: <code>%s</code></p>`,
		order.OrderID, esim.SMDPAddress, esim.ActivationCode, esim.QRPayload)
	return s.mailer.Send(order.ContactEmail, subject, body)
}

// buildProfile maps the provider's activation details onto our profile
// document.
func buildProfile(order *models.Order, item *models.OrderItem, info *mobimatter.OrderInfoResponse) *models.ESIM {
	detail := func(name string) string {
		for _, d := range info.Result.LineDetails {
			if d.Name == name {
				return d.Value
			}
		}
		return ""
	}

	smdp := detail(mobimatter.DetailSMDPAddress)
	code := detail(mobimatter.DetailActivationCode)

	qr := detail(mobimatter.DetailQRCode)
	if qr == "" && smdp != "" && code != "" {
		qr = fmt.Sprintf("LPA:1$%s$%s", smdp, code)
	}

	return &models.ESIM{
		ID:             uuid.NewString(),
		OrderID:        order.OrderID,
		ContactEmail:   order.ContactEmail,
		SKU:            item.SKU,
		Provider:       item.Metadata["provider"],
		ICCID:          detail(mobimatter.DetailICCID),
		SMDPAddress:    smdp,
		ActivationCode: code,
		QRPayload:      qr,
	}
}
