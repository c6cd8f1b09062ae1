package cartclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-limit-service/internal/domain"
)

func newTestClient(handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := New(Config{BaseURL: server.URL, Token: "test-token", Timeout: 2 * time.Second})
	return client, server
}

func TestRetrieveCart(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/store/carts/cart_01", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Idempotency-Key"), "GET requests carry no idempotency key")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"cart": map[string]interface{}{
				"id": "cart_01",
				"items": []map[string]interface{}{
					{"id": "li_1", "sku": "LAPTOP-01", "quantity": 2},
				},
			},
		})
	})
	defer server.Close()

	cart, err := client.RetrieveCart(context.Background(), "cart_01")

	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Equal(t, "cart_01", cart.ID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "LAPTOP-01", cart.Items[0].SKU)
}

func TestRetrieveCart_NotFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"cart not found"}`, http.StatusNotFound)
	})
	defer server.Close()

	cart, err := client.RetrieveCart(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCartNotFound))
	assert.Nil(t, cart)
}

func TestAddLineItem(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/store/carts/cart_01/line-items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"), "mutations carry an idempotency key")

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "LAPTOP-01", body["sku"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"cart": map[string]interface{}{"id": "cart_01"},
		})
	})
	defer server.Close()

	cart, err := client.AddLineItem(context.Background(), "cart_01", &domain.LineItemPayload{
		SKU:      "LAPTOP-01",
		Quantity: 2,
	})

	require.NoError(t, err)
	assert.Equal(t, "cart_01", cart.ID)
}

func TestUpdateLineItem(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store/carts/cart_01/line-items/li_1", r.URL.Path)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 4.0, body["quantity"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"cart": map[string]interface{}{"id": "cart_01"},
		})
	})
	defer server.Close()

	cart, err := client.UpdateLineItem(context.Background(), "cart_01", "li_1", 4)

	require.NoError(t, err)
	assert.Equal(t, "cart_01", cart.ID)
}

func TestCompleteCart(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/store/carts/cart_01/complete", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"order": map[string]interface{}{
				"id":         "order_01",
				"display_id": "100000123",
			},
		})
	})
	defer server.Close()

	order, err := client.CompleteCart(context.Background(), "cart_01")

	require.NoError(t, err)
	assert.Equal(t, "order_01", order.ID)
	assert.Equal(t, "100000123", order.IncrementID())
}

func TestDo_UpstreamErrorIncludesStatusAndBody(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"cart locked"}`, http.StatusConflict)
	})
	defer server.Close()

	_, err := client.CompleteCart(context.Background(), "cart_01")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "cart locked")
	assert.False(t, errors.Is(err, ErrCartNotFound))
}
