package domain

// Types below describe the interface boundary with the external commerce
// application that owns cart and order persistence. This service only reads
// carts, forwards mutations, and inspects finalized orders — it never stores
// them.

// ProductVariant is the slice of the commerce app's variant we care about.
type ProductVariant struct {
	ID  string `json:"id"`
	SKU string `json:"sku"`
}

// LineItem is one cart (or order) line as returned by the commerce app.
// Quantity is deliberately untyped: upstream serializers have been observed
// emitting numbers and numeric strings, and the cart item adapter coerces
// either without failing the whole cart.
type LineItem struct {
	ID       string                 `json:"id"`
	SKU      string                 `json:"sku,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Quantity interface{}            `json:"quantity"`
	Variant  *ProductVariant        `json:"variant,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Cart is the commerce app's cart, reduced to what validation needs.
type Cart struct {
	ID         string     `json:"id"`
	CustomerID *int64     `json:"customer_id,omitempty"`
	Items      []LineItem `json:"items"`
}

// Order is the finalized order returned by the completion workflow.
type Order struct {
	ID          string     `json:"id"`
	DisplayID   string     `json:"display_id,omitempty"`
	OrderNumber string     `json:"order_number,omitempty"`
	CustomerID  *int64     `json:"customer_id,omitempty"`
	Items       []LineItem `json:"items"`
}

// IncrementID returns the human-facing order identifier used as the tracker
// key: display_id when present, order_number otherwise.
func (o *Order) IncrementID() string {
	if o.DisplayID != "" {
		return o.DisplayID
	}
	return o.OrderNumber
}

// LineItemPayload is an incoming add-to-cart request body. Metadata may
// arrive under either `metadata` or `additional_data` depending on which
// storefront produced it.
type LineItemPayload struct {
	VariantID      string                 `json:"variant_id,omitempty"`
	SKU            string                 `json:"sku,omitempty"`
	Title          string                 `json:"title,omitempty"`
	Quantity       interface{}            `json:"quantity"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}
