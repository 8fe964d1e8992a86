package qpay

// TokenResponse is the auth token payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// CreateInvoiceRequest creates a QR invoice scoped to one order.
type CreateInvoiceRequest struct {
	InvoiceCode     string  `json:"invoice_code"`
	SenderInvoiceNo string  `json:"sender_invoice_no"` // our order id
	ReceiverCode    string  `json:"invoice_receiver_code"`
	Description     string  `json:"invoice_description"`
	Amount          float64 `json:"amount"`
	CallbackURL     string  `json:"callback_url,omitempty"`
}

// InvoiceResponse is the created invoice with QR material and bank deeplinks.
type InvoiceResponse struct {
	InvoiceID string `json:"invoice_id"`
	QRText    string `json:"qr_text"`
	QRImage   string `json:"qr_image"` // base64 PNG
	ShortURL  string `json:"qPay_shortUrl"`
	URLs      []URL  `json:"urls"`
}

// URL is one bank-app deeplink on an invoice.
type URL struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	Link        string `json:"link"`
}

// CheckPaymentRequest queries payments applied to an invoice.
type CheckPaymentRequest struct {
	ObjectType string          `json:"object_type"` // always "INVOICE"
	ObjectID   string          `json:"object_id"`
	Offset     PaymentListSpec `json:"offset"`
}

// PaymentListSpec is QPay's paging envelope for payment checks.
type PaymentListSpec struct {
	PageNumber int `json:"page_number"`
	PageLimit  int `json:"page_limit"`
}

// CheckPaymentResponse lists payments observed for an invoice.
type CheckPaymentResponse struct {
	Count      int       `json:"count"`
	PaidAmount float64   `json:"paid_amount"`
	Rows       []Payment `json:"rows"`
}

// Payment is one settled (or attempted) payment row.
type Payment struct {
	PaymentID     string  `json:"payment_id"`
	PaymentStatus string  `json:"payment_status"` // NEW, FAILED, PAID, REFUNDED
	PaymentAmount float64 `json:"payment_amount"`
	PaymentWallet string  `json:"payment_wallet,omitempty"`
}

// PaymentStatusPaid is the settled status on a payment row.
const PaymentStatusPaid = "PAID"

// PaymentStatus is the distilled answer for a status poll.
type PaymentStatus struct {
	IsPaid     bool
	PaidAmount float64
	PaymentID  string // set when IsPaid, needed for refunds
}

// CallbackPayload is the body QPay POSTs to the callback URL when an
// invoice is paid. Polling remains the source of truth; the callback only
// accelerates confirmation.
type CallbackPayload struct {
	InvoiceID       string  `json:"object_id"`
	SenderInvoiceNo string  `json:"sender_invoice_no"`
	PaymentID       string  `json:"payment_id"`
	PaymentStatus   string  `json:"payment_status"`
	PaidAmount      float64 `json:"paid_amount"`
}

// errorResponse is QPay's error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
