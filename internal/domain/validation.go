package domain

// Rule kinds reported in violations.
const (
	RuleTypeSingle   = "rule"     // MaxQtyRule match
	RuleTypeCategory = "category" // MaxQtyCategoryRule match
)

// ValidationItem is the normalized, transient representation of one cart line
// used during a single validation call. It is produced by the cart item
// adapter from whatever shape the caller holds; fields the upstream data did
// not provide stay zero-valued (or nil for DomainID).
type ValidationItem struct {
	SKU         string   `json:"sku"`
	Quantity    float64  `json:"quantity"`
	BrandID     string   `json:"brand_id,omitempty"`
	CompanyCode string   `json:"company_code,omitempty"`
	DomainID    *int64   `json:"domain_id,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`
	CategoryIDs []string `json:"category_ids,omitempty"` // superset; includes CategoryID when present
}

// Violation describes one rule whose accumulated quantity exceeded its
// ceiling during a validation call. SKU is the first contributor to the
// aggregate, kept for storefront display.
type Violation struct {
	Key         string   `json:"key"`
	SKU         string   `json:"sku"`
	Quantity    float64  `json:"quantity"`
	MaxQty      float64  `json:"max_qty"`
	RuleType    string   `json:"rule_type"`
	RuleID      int64    `json:"rule_id"`
	CompanyCode string   `json:"company_code,omitempty"`
	BrandID     string   `json:"brand_id,omitempty"`
	DomainID    *int64   `json:"domain_id,omitempty"`
	CategoryIDs []string `json:"category_ids"`
	Message     string   `json:"message"`
}

// ValidationResult is the outcome of validating one prospective item set.
// A violation is an expected business outcome, not an error: Valid is false
// iff Violations is non-empty.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}
