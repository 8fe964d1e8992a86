package qpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the QPay v2 API base URL.
	DefaultBaseURL = "https://merchant.qpay.mn/v2"
)

// Config holds QPay merchant credentials.
type Config struct {
	BaseURL     string
	Username    string
	Password    string
	InvoiceCode string // merchant invoice template code
	CallbackURL string
}

// Client is the QPay API client. Access tokens are fetched lazily with
// basic auth and refreshed shortly before expiry.
type Client struct {
	httpClient *http.Client
	config     Config
	tokenMu    sync.RWMutex
	token      string
	tokenExp   time.Time
	debug      bool
}

// NewClient creates a new QPay client.
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

// CreateInvoice creates a QR invoice for the given order amount.
func (c *Client) CreateInvoice(ctx context.Context, orderID, description string, amountMNT int) (*InvoiceResponse, error) {
	req := CreateInvoiceRequest{
		InvoiceCode:     c.config.InvoiceCode,
		SenderInvoiceNo: orderID,
		ReceiverCode:    "terminal",
		Description:     description,
		Amount:          float64(amountMNT),
		CallbackURL:     c.config.CallbackURL,
	}
	var resp InvoiceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/invoice", req, &resp); err != nil {
		return nil, err
	}
	if resp.InvoiceID == "" {
		return nil, fmt.Errorf("qpay invoice: empty invoice_id in response")
	}
	return &resp, nil
}

// CheckPayment queries the payment status of an invoice. QPay reports a
// list of payment rows; an invoice counts as paid when any row is PAID.
func (c *Client) CheckPayment(ctx context.Context, invoiceID string) (*PaymentStatus, error) {
	req := CheckPaymentRequest{
		ObjectType: "INVOICE",
		ObjectID:   invoiceID,
		Offset:     PaymentListSpec{PageNumber: 1, PageLimit: 100},
	}
	var resp CheckPaymentResponse
	if err := c.doRequest(ctx, http.MethodPost, "/payment/check", req, &resp); err != nil {
		return nil, err
	}

	status := &PaymentStatus{PaidAmount: resp.PaidAmount}
	for _, row := range resp.Rows {
		if row.PaymentStatus == PaymentStatusPaid {
			status.IsPaid = true
			status.PaymentID = row.PaymentID
			break
		}
	}
	return status, nil
}

// Refund reverses a settled payment.
func (c *Client) Refund(ctx context.Context, paymentID string) error {
	var resp json.RawMessage
	return c.doRequest(ctx, http.MethodDelete, "/payment/refund/"+paymentID, nil, &resp)
}

// authenticate obtains an access token using basic auth. Callers must not
// hold tokenMu.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		token := c.token
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	// Re-check: another goroutine may have refreshed while we waited.
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/auth/token", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("qpay auth failed: HTTP %d: %s", resp.StatusCode, body)
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("qpay auth: empty access token")
	}

	c.token = token.AccessToken
	// Refresh one minute early to avoid racing the expiry.
	c.tokenExp = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

// doRequest performs an authenticated HTTP call and decodes the JSON
// response into result. A 401 triggers one token refresh and retry.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	token, err := c.authenticate(ctx)
	if err != nil {
		return err
	}

	resp, respBody, err := c.send(ctx, method, endpoint, body, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Token revoked server-side; force a refresh and retry once.
		c.tokenMu.Lock()
		c.token = ""
		c.tokenMu.Unlock()
		if token, err = c.authenticate(ctx); err != nil {
			return err
		}
		if resp, respBody, err = c.send(ctx, method, endpoint, body, token); err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("qpay error: HTTP %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("qpay error: HTTP %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any, token string) (*http.Response, []byte, error) {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.debug && payload != nil {
		log.Debug().
			Str("endpoint", c.config.BaseURL+endpoint).
			RawJSON("request", payload).
			Msg("[QPAY] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			RawJSON("response", respBody).
			Msg("[QPAY] Incoming response")
	}

	return resp, respBody, nil
}
