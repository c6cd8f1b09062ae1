package domain

import "time"

// OrderQuantityTracker records how much of a SKU a customer purchased in one
// completed order. Rows are written exactly once per (customer, order, sku)
// when an order is finalized; re-upserting the same triple overwrites the
// quantity and brand so order edits before finalization stay idempotent.
type OrderQuantityTracker struct {
	ID               int64     `json:"id"`
	CustomerID       int64     `json:"customer_id"`
	OrderIncrementID string    `json:"order_increment_id"`
	SKU              string    `json:"sku"`
	Quantity         float64   `json:"quantity"`
	BrandID          *string   `json:"brand_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AccessMapping associates a storefront access identifier with the company
// code and domain it operates under. The summary endpoint resolves its scope
// through this lookup.
type AccessMapping struct {
	ID          int64     `json:"id"`
	AccessID    string    `json:"access_id"`
	CompanyCode string    `json:"company_code"`
	DomainID    *int64    `json:"domain_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
