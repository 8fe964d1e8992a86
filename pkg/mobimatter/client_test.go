package mobimatter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nomadsim/esim_api/pkg/mobimatter"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *mobimatter.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return mobimatter.NewClient(mobimatter.Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		MerchantID: "merchant-1",
	})
}

func TestGetProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "test-key" || r.Header.Get("merchantId") != "merchant-1" {
			t.Error("credential headers missing")
		}
		w.Write([]byte(`{
			"statusCode": 200,
			"result": [{
				"productId": "mm-123",
				"productCategory": "esim_realtime",
				"providerName": "SkyRoam",
				"retailPrice": 9.5,
				"currencyCode": "USD",
				"countries": ["MN", "KR"],
				"productDetails": [
					{"name": "PLAN_TITLE", "value": "Asia 3GB"},
					{"name": "PLAN_DATA_LIMIT", "value": "3"},
					{"name": "PLAN_DATA_UNIT", "value": "GB"},
					{"name": "PLAN_VALIDITY", "value": "168"}
				]
			}]
		}`))
	})

	products, err := client.GetProducts(context.Background())
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1", len(products))
	}

	p := products[0]
	if p.ProductID != "mm-123" {
		t.Errorf("ProductID = %s", p.ProductID)
	}
	if got := p.Detail(mobimatter.DetailPlanTitle); got != "Asia 3GB" {
		t.Errorf("PLAN_TITLE = %q", got)
	}
	if got := p.Detail(mobimatter.DetailPlanValidity); got != "168" {
		t.Errorf("PLAN_VALIDITY = %q", got)
	}
	if got := p.Detail("NO_SUCH_KEY"); got != "" {
		t.Errorf("missing detail = %q, want empty", got)
	}
}

func TestGetProductsAPIStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statusCode": 403, "message": "invalid merchant"}`))
	})

	_, err := client.GetProducts(context.Background())
	if err == nil {
		t.Fatal("expected error for non-200 statusCode")
	}
	if !strings.Contains(err.Error(), "invalid merchant") {
		t.Errorf("error %q must carry the API message", err)
	}
}

func TestGetProductsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.GetProducts(context.Background()); err == nil {
		t.Fatal("expected error on HTTP 502")
	}
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/order" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req mobimatter.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.ProductID != "mm-123" || req.Label != "NS-1001" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.Quantity != 1 {
			t.Errorf("Quantity = %d, want defaulted 1", req.Quantity)
		}
		w.Write([]byte(`{"statusCode": 200, "result": {"orderId": "prov-77"}}`))
	})

	orderID, err := client.CreateOrder(context.Background(), mobimatter.CreateOrderRequest{
		ProductID: "mm-123",
		Label:     "NS-1001",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if orderID != "prov-77" {
		t.Errorf("orderID = %s, want prov-77", orderID)
	}
}

func TestCreateOrderEmptyID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statusCode": 200, "result": {}}`))
	})

	if _, err := client.CreateOrder(context.Background(), mobimatter.CreateOrderRequest{ProductID: "x"}); err == nil {
		t.Fatal("expected error for empty orderId")
	}
}

func TestCompleteOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/order/complete" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req mobimatter.CompleteOrderRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.OrderID != "prov-77" {
			t.Errorf("OrderID = %s", req.OrderID)
		}
		w.Write([]byte(`{"statusCode": 200, "result": {"orderId": "prov-77", "orderState": "Completed"}}`))
	})

	if err := client.CompleteOrder(context.Background(), "prov-77"); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
}

func TestGetOrderInfoActivationDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order/prov-77" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"statusCode": 200,
			"result": {
				"orderId": "prov-77",
				"orderState": "Completed",
				"orderLineItemDetails": [
					{"name": "ICCID", "value": "8944538532008300000"},
					{"name": "SMDP_ADDRESS", "value": "smdp.example.com"},
					{"name": "ACTIVATION_CODE", "value": "ABC-123"},
					{"name": "QR_CODE", "value": "LPA:1$smdp.example.com$ABC-123"}
				]
			}
		}`))
	})

	info, err := client.GetOrderInfo(context.Background(), "prov-77")
	if err != nil {
		t.Fatalf("GetOrderInfo: %v", err)
	}
	if info.Result.OrderState != "Completed" {
		t.Errorf("OrderState = %s", info.Result.OrderState)
	}

	details := map[string]string{}
	for _, d := range info.Result.LineDetails {
		details[d.Name] = d.Value
	}
	if details[mobimatter.DetailSMDPAddress] != "smdp.example.com" {
		t.Errorf("SMDP_ADDRESS = %q", details[mobimatter.DetailSMDPAddress])
	}
	if details[mobimatter.DetailActivationCode] != "ABC-123" {
		t.Errorf("ACTIVATION_CODE = %q", details[mobimatter.DetailActivationCode])
	}
}
