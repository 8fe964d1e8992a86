package mobimatter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the Mobimatter API base URL.
	DefaultBaseURL = "https://api.mobimatter.com/mobimatter/api/v2"
)

// Config holds Mobimatter API configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	MerchantID string
}

// Client is a minimal HTTP client for the Mobimatter catalog and order API.
type Client struct {
	httpClient *http.Client
	config     Config
	debug      bool
}

// NewClient constructs a new Mobimatter client with sane defaults.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
		debug:      os.Getenv("ENV") == "development",
	}
}

// GetProducts retrieves the full product feed.
func (c *Client) GetProducts(ctx context.Context) ([]Product, error) {
	var resp ProductsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/products", nil, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("mobimatter products: status %d: %s", resp.StatusCode, resp.Message)
	}
	return resp.Result, nil
}

// CreateOrder opens a provisioning order for a product. The order is not
// committed until CompleteOrder is called.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	var resp CreateOrderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/order", req, &resp); err != nil {
		return "", err
	}
	if resp.StatusCode != 200 || resp.Result.OrderID == "" {
		return "", fmt.Errorf("mobimatter create order: status %d: %s", resp.StatusCode, resp.Message)
	}
	return resp.Result.OrderID, nil
}

// CompleteOrder commits a created order. Mobimatter is idempotent here:
// completing an already-completed order returns its current state.
func (c *Client) CompleteOrder(ctx context.Context, orderID string) error {
	var resp OrderInfoResponse
	if err := c.doRequest(ctx, http.MethodPut, "/order/complete", CompleteOrderRequest{OrderID: orderID}, &resp); err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("mobimatter complete order: status %d: %s", resp.StatusCode, resp.Message)
	}
	return nil
}

// GetOrderInfo returns the state and activation details of a provider order.
func (c *Client) GetOrderInfo(ctx context.Context, orderID string) (*OrderInfoResponse, error) {
	var resp OrderInfoResponse
	if err := c.doRequest(ctx, http.MethodGet, "/order/"+orderID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("mobimatter order info: status %d: %s", resp.StatusCode, resp.Message)
	}
	return &resp, nil
}

// doRequest performs an HTTP call with API-key headers and decodes the JSON
// response into result.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)

		if c.debug {
			log.Debug().
				Str("endpoint", c.config.BaseURL+endpoint).
				RawJSON("request", payload).
				Msg("[MOBIMATTER] Outgoing request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.config.APIKey)
	req.Header.Set("merchantId", c.config.MerchantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			RawJSON("response", respBody).
			Msg("[MOBIMATTER] Incoming response")
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("mobimatter server error: HTTP %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
