package sse

import (
	"time"

	"github.com/nomadsim/esim_api/internal/models"
)

// OrderNotifier is the interface services use to emit order events.
type OrderNotifier interface {
	NotifyOrderCreated(order *models.Order)
	NotifyOrderStatusChanged(order *models.Order)
}

// HubNotifier implements OrderNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyOrderCreated(order *models.Order) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(orderToEvent(EventOrderCreated, order))
}

func (n *HubNotifier) NotifyOrderStatusChanged(order *models.Order) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(orderToEvent(EventOrderStatusChanged, order))
}

func orderToEvent(eventType EventType, order *models.Order) *OrderEvent {
	event := &OrderEvent{
		Event:        eventType,
		OrderID:      order.OrderID,
		ContactEmail: order.ContactEmail,
		Status:       string(order.Status),
		AmountMNT:    order.TotalAmount,
		FailedReason: order.FailedReason,
		Timestamp:    time.Now(),
	}
	if len(order.Items) > 0 {
		event.SKU = order.Items[0].SKU
	}
	return event
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (n *NopNotifier) NotifyOrderCreated(order *models.Order)       {}
func (n *NopNotifier) NotifyOrderStatusChanged(order *models.Order) {}
