package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusPaid               OrderStatus = "paid"
	OrderStatusProvisioning       OrderStatus = "provisioning"
	OrderStatusCompleted          OrderStatus = "completed"
	OrderStatusProvisioningFailed OrderStatus = "provisioning_failed"
	OrderStatusFailed             OrderStatus = "failed"
	OrderStatusCancelled          OrderStatus = "cancelled"
	// OrderStatusHidden is the terminal state used by admin tooling in place
	// of a hard delete. Orders are never removed, only transitioned.
	OrderStatusHidden OrderStatus = "hidden"
)

// PaidLike reports whether the status counts as a settled purchase. This is
// the set that qualifies a customer for top-up packages.
func (s OrderStatus) PaidLike() bool {
	return s == OrderStatusPaid || s == OrderStatusProvisioning || s == OrderStatusCompleted
}

// Terminal reports whether no further transitions are expected.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusProvisioningFailed, OrderStatusFailed,
		OrderStatusCancelled, OrderStatusHidden:
		return true
	}
	return false
}

// OrderItem is a line item on an order.
type OrderItem struct {
	SKU      string            `bson:"sku" json:"sku"`
	Name     string            `bson:"name" json:"name"`
	Price    int               `bson:"price" json:"price"`
	Quantity int               `bson:"quantity" json:"quantity"`
	Metadata map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// Invoice is the payment-gateway handle attached to an order. Created once
// at checkout, immutable afterwards.
type Invoice struct {
	InvoiceID string     `bson:"invoice_id" json:"invoiceId"`
	QRImage   string     `bson:"qr_image" json:"qrImage"`
	QRText    string     `bson:"qr_text" json:"qrText"`
	ShortURL  string     `bson:"short_url" json:"shortUrl"`
	Deeplinks []Deeplink `bson:"deeplinks,omitempty" json:"deeplinks,omitempty"`
	AmountMNT int        `bson:"amount_mnt" json:"amountMnt"`
}

// Deeplink is a bank-app link on an invoice.
type Deeplink struct {
	Name string `bson:"name" json:"name"`
	Link string `bson:"link" json:"link"`
	Logo string `bson:"logo" json:"logo"`
}

// Order is a customer purchase, persisted as a document keyed by OrderID.
type Order struct {
	OrderID       string      `bson:"_id" json:"orderId"`
	ContactEmail  string      `bson:"contact_email" json:"contactEmail"`
	TotalAmount   int         `bson:"total_amount" json:"totalAmount"`
	Currency      string      `bson:"currency" json:"currency"`
	Status        OrderStatus `bson:"status" json:"status"`
	PaymentMethod string      `bson:"payment_method" json:"paymentMethod"`
	PaymentID     string      `bson:"payment_id,omitempty" json:"-"`
	Items         []OrderItem `bson:"items" json:"items"`
	Invoice       *Invoice    `bson:"invoice,omitempty" json:"invoice,omitempty"`
	FailedReason  string      `bson:"failed_reason,omitempty" json:"failedReason,omitempty"`
	ResendCount   int         `bson:"resend_count,omitempty" json:"resendCount,omitempty"`
	RefundedAt    *time.Time  `bson:"refunded_at,omitempty" json:"refundedAt,omitempty"`
	PaidAt        *time.Time  `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	CreatedAt     time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"-"`
}

// ProviderOf returns the provider name of the first line item, which is the
// package provider for single-item orders (the only kind the storefront
// creates today).
func (o *Order) ProviderOf() string {
	if len(o.Items) == 0 {
		return ""
	}
	return o.Items[0].Metadata["provider"]
}
