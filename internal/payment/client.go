// Package payment wraps the external payment provider. Charges and refunds
// are requested here but their outcome never gates a lifecycle transition;
// settlement failures are reconciled out of band.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Charger is the surface the booking service depends on.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, transactionRef string, amount float64) error
}

// ChargeRequest describes a capture attempt for a booking total.
type ChargeRequest struct {
	BookingRef string  `json:"booking_ref"`
	PayerID    int64   `json:"payer_id"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
}

// ChargeResult is the provider's acknowledgement.
type ChargeResult struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
}

// Client wraps interactions with the provider's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Ping checks if the provider is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}
	return nil
}

// Charge submits a capture for the booking total.
func (c *Client) Charge(ctx context.Context, chargeReq ChargeRequest) (*ChargeResult, error) {
	payload, err := json.Marshal(chargeReq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/charges", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("charge %s failed with status %d: %s", chargeReq.BookingRef, resp.StatusCode, body)
	}
	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refund returns part or all of a captured charge.
func (c *Client) Refund(ctx context.Context, transactionRef string, amount float64) error {
	payload, err := json.Marshal(map[string]any{"transaction_ref": transactionRef, "amount": amount})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/refunds", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("refund %s failed with status %d", transactionRef, resp.StatusCode)
	}
	return nil
}
