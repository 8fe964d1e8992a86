package models

import "time"

// ESIM is a provisioned eSIM profile, stored as a document alongside the
// order that produced it.
type ESIM struct {
	ID             string    `bson:"_id" json:"id"`
	OrderID        string    `bson:"order_id" json:"orderId"`
	ContactEmail   string    `bson:"contact_email" json:"contactEmail"`
	SKU            string    `bson:"sku" json:"sku"`
	Provider       string    `bson:"provider" json:"provider"`
	ICCID          string    `bson:"iccid,omitempty" json:"iccid,omitempty"`
	SMDPAddress    string    `bson:"smdp_address" json:"smdpAddress"`
	ActivationCode string    `bson:"activation_code" json:"activationCode"`
	QRPayload      string    `bson:"qr_payload" json:"qrPayload"` // LPA:1$<smdp>$<code>
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}
