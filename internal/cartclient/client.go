// Package cartclient is the HTTP client for the external commerce
// application that owns cart and order persistence. This service only ever
// reads carts, forwards mutations it has already validated, and triggers
// completion.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"order-limit-service/internal/domain"
)

// maxResponseSize bounds response body reads to prevent memory exhaustion
// from a misbehaving upstream.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// ErrCartNotFound is returned when the commerce app reports 404 for a cart
// or line item.
var ErrCartNotFound = errors.New("cartclient: cart not found")

// Client is the collaborator interface the checkout guard consumes.
type Client interface {
	RetrieveCart(ctx context.Context, cartID string) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID string, payload *domain.LineItemPayload) (*domain.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity float64) (*domain.Cart, error)
	CompleteCart(ctx context.Context, cartID string) (*domain.Order, error)
}

// Config holds the connection settings for the commerce app.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPClient implements Client against the commerce app's store API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a commerce app client. A zero timeout defaults to 10s.
func New(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Response envelopes used by the commerce app.
type cartEnvelope struct {
	Cart domain.Cart `json:"cart"`
}

type orderEnvelope struct {
	Order domain.Order `json:"order"`
}

func (c *HTTPClient) RetrieveCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	var envelope cartEnvelope
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/store/carts/%s", cartID), nil, &envelope)
	if err != nil {
		return nil, err
	}
	return &envelope.Cart, nil
}

func (c *HTTPClient) AddLineItem(ctx context.Context, cartID string, payload *domain.LineItemPayload) (*domain.Cart, error) {
	var envelope cartEnvelope
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/store/carts/%s/line-items", cartID), payload, &envelope)
	if err != nil {
		return nil, err
	}
	return &envelope.Cart, nil
}

func (c *HTTPClient) UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity float64) (*domain.Cart, error) {
	body := map[string]float64{"quantity": quantity}
	var envelope cartEnvelope
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/store/carts/%s/line-items/%s", cartID, lineItemID), body, &envelope)
	if err != nil {
		return nil, err
	}
	return &envelope.Cart, nil
}

func (c *HTTPClient) CompleteCart(ctx context.Context, cartID string) (*domain.Order, error) {
	var envelope orderEnvelope
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/store/carts/%s/complete", cartID), nil, &envelope)
	if err != nil {
		return nil, err
	}
	return &envelope.Order, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cartclient: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("cartclient: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method != http.MethodGet {
		// The commerce app deduplicates retried mutations by this key.
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cartclient: %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("cartclient: failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrCartNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cartclient: %s %s returned status %d: %s", method, path, resp.StatusCode, truncate(payload, 256))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("cartclient: failed to decode response body: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
