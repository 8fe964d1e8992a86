package mobimatter

// ProductsResponse wraps the product list payload. Mobimatter wraps every
// response in a "result" field with a status code beside it.
type ProductsResponse struct {
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message,omitempty"`
	Result     []Product `json:"result"`
}

// Product is a single raw product from the Mobimatter feed. Most plan
// attributes arrive as loosely-typed key/value pairs in ProductDetails.
type Product struct {
	ProductID       string          `json:"productId"`
	ProductCategory string          `json:"productCategory"`
	ProviderName    string          `json:"providerName"`
	ProviderLogo    string          `json:"providerLogo,omitempty"`
	RetailPrice     float64         `json:"retailPrice"`
	WholesalePrice  float64         `json:"wholesalePrice,omitempty"`
	CurrencyCode    string          `json:"currencyCode"`
	Countries       []string        `json:"countries"`
	ProductDetails  []ProductDetail `json:"productDetails"`
}

// ProductDetail is one key/value attribute of a product.
type ProductDetail struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Detail returns the value for a named product detail, or "" when absent.
func (p *Product) Detail(name string) string {
	for _, d := range p.ProductDetails {
		if d.Name == name {
			return d.Value
		}
	}
	return ""
}

// Well-known product detail keys.
const (
	DetailPlanTitle     = "PLAN_TITLE"
	DetailPlanDataLimit = "PLAN_DATA_LIMIT"
	DetailPlanDataUnit  = "PLAN_DATA_UNIT"
	DetailPlanValidity  = "PLAN_VALIDITY"
	DetailPlanUnlimited = "PLAN_UNLIMITED"
	DetailTopUp         = "TOPUP"
)

// CreateOrderRequest starts a provisioning order for a product.
type CreateOrderRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity,omitempty"`
	Label     string `json:"label,omitempty"` // merchant-side order reference
}

// CreateOrderResponse is the response for a created (uncommitted) order.
type CreateOrderResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	Result     struct {
		OrderID string `json:"orderId"`
	} `json:"result"`
}

// CompleteOrderRequest commits a created order, triggering eSIM issuance.
type CompleteOrderRequest struct {
	OrderID string `json:"orderId"`
}

// OrderInfoResponse carries the provisioned eSIM activation data.
type OrderInfoResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	Result     struct {
		OrderID     string          `json:"orderId"`
		OrderState  string          `json:"orderState"` // Created, Completed, Error
		LineItem    *OrderLineItem  `json:"orderLineItem,omitempty"`
		LineDetails []ProductDetail `json:"orderLineItemDetails,omitempty"`
	} `json:"result"`
}

// OrderLineItem describes the purchased product on a provider order.
type OrderLineItem struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
}

// Activation detail keys on a completed order.
const (
	DetailICCID          = "ICCID"
	DetailSMDPAddress    = "SMDP_ADDRESS"
	DetailActivationCode = "ACTIVATION_CODE"
	DetailQRCode         = "QR_CODE"
)
