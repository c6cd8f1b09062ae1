package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"order-limit-service/internal/cartclient"
	"order-limit-service/internal/domain"
	"order-limit-service/internal/validation"
)

// The cart handlers wire the engine into the checkout pipeline as a hard
// gate: every mutation is validated against the *prospective* item set (what
// the cart would look like after the mutation) before being forwarded to the
// commerce app. No lock spans the check-then-forward window, so enforcement
// across concurrent mutations of the same cart is best-effort.

const violationMessage = "Cart exceeds the maximum allowed quantity."

// AddLineItem guards and forwards an add-to-cart request.
func (h *HTTPHandler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	var payload domain.LineItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	cart, err := h.carts.RetrieveCart(r.Context(), cartID)
	if err != nil {
		h.respondCartError(w, "AddLineItem", err)
		return
	}

	prospective := validation.MergeItems(validation.ItemsFromCart(cart), validation.ItemFromPayload(&payload))
	result, err := h.cartValidator.ValidateItems(r.Context(), prospective)
	if err != nil {
		log.Printf("ERROR: AddLineItem validation failed for cart %s: %v", cartID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to validate cart")
		return
	}
	if !result.Valid {
		respondWithJSON(w, http.StatusUnprocessableEntity, ViolationResponse{
			Message:    violationMessage,
			Violations: result.Violations,
		})
		return
	}

	updated, err := h.carts.AddLineItem(r.Context(), cartID, &payload)
	if err != nil {
		h.respondCartError(w, "AddLineItem", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"cart": updated})
}

// UpdateLineItemInput carries the new quantity for a line. Untyped for the
// same reason as LineItem.Quantity: storefronts send numbers or strings.
type UpdateLineItemInput struct {
	Quantity interface{} `json:"quantity"`
}

// UpdateLineItem guards and forwards a line-item quantity change. The
// prospective set is the current cart with the target line's quantity
// overridden.
func (h *HTTPHandler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	lineItemID := chi.URLParam(r, "lineItemID")

	var input UpdateLineItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	quantity := validation.CoerceQuantity(input.Quantity)

	cart, err := h.carts.RetrieveCart(r.Context(), cartID)
	if err != nil {
		h.respondCartError(w, "UpdateLineItem", err)
		return
	}

	found := false
	prospective := make([]domain.ValidationItem, 0, len(cart.Items))
	for i := range cart.Items {
		item := validation.ItemFromLineItem(&cart.Items[i])
		if cart.Items[i].ID == lineItemID {
			item.Quantity = quantity
			found = true
		}
		prospective = append(prospective, item)
	}
	if !found {
		respondWithError(w, http.StatusNotFound, "Line item not found in cart")
		return
	}

	result, err := h.cartValidator.ValidateItems(r.Context(), prospective)
	if err != nil {
		log.Printf("ERROR: UpdateLineItem validation failed for cart %s: %v", cartID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to validate cart")
		return
	}
	if !result.Valid {
		respondWithJSON(w, http.StatusUnprocessableEntity, ViolationResponse{
			Message:    violationMessage,
			Violations: result.Violations,
		})
		return
	}

	updated, err := h.carts.UpdateLineItem(r.Context(), cartID, lineItemID, quantity)
	if err != nil {
		h.respondCartError(w, "UpdateLineItem", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"cart": updated})
}

// CompleteCart guards the current cart contents, forwards completion, and —
// only after the order is confirmed finalized — upserts one tracker row per
// line item. Tracker failures at that point are logged, not surfaced: the
// order already exists and the response must reflect that.
func (h *HTTPHandler) CompleteCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	cart, err := h.carts.RetrieveCart(r.Context(), cartID)
	if err != nil {
		h.respondCartError(w, "CompleteCart", err)
		return
	}

	result, err := h.cartValidator.ValidateItems(r.Context(), validation.ItemsFromCart(cart))
	if err != nil {
		log.Printf("ERROR: CompleteCart validation failed for cart %s: %v", cartID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to validate cart")
		return
	}
	if !result.Valid {
		respondWithJSON(w, http.StatusUnprocessableEntity, ViolationResponse{
			Message:    violationMessage,
			Violations: result.Violations,
		})
		return
	}

	order, err := h.carts.CompleteCart(r.Context(), cartID)
	if err != nil {
		h.respondCartError(w, "CompleteCart", err)
		return
	}

	h.trackFinalizedOrder(r, cart, order)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"order": order})
}

func (h *HTTPHandler) trackFinalizedOrder(r *http.Request, cart *domain.Cart, order *domain.Order) {
	customerID := order.CustomerID
	if customerID == nil {
		customerID = cart.CustomerID
	}
	if customerID == nil {
		// Guest checkout: nothing to track against.
		log.Printf("INFO: Order %s completed without a customer id, skipping quantity tracking", order.ID)
		return
	}

	incrementID := order.IncrementID()
	if incrementID == "" {
		incrementID = order.ID
	}

	lines := order.Items
	if len(lines) == 0 {
		lines = cart.Items
	}
	for i := range lines {
		item := validation.ItemFromLineItem(&lines[i])
		if item.SKU == "" || item.Quantity <= 0 {
			continue
		}
		var brandID *string
		if item.BrandID != "" {
			brandID = &item.BrandID
		}
		_, err := h.trackerStore.UpsertTracker(r.Context(), &domain.OrderQuantityTracker{
			CustomerID:       *customerID,
			OrderIncrementID: incrementID,
			SKU:              item.SKU,
			Quantity:         item.Quantity,
			BrandID:          brandID,
		})
		if err != nil {
			log.Printf("ERROR: Failed to track quantity for order %s sku %s: %v", incrementID, item.SKU, err)
		}
	}
}

func (h *HTTPHandler) respondCartError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, cartclient.ErrCartNotFound) {
		respondWithError(w, http.StatusNotFound, "Cart not found")
		return
	}
	log.Printf("ERROR: %s commerce app call failed: %v", op, err)
	respondWithError(w, http.StatusInternalServerError, "Commerce app request failed")
}
