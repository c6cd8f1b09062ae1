package domain

import (
	"strings"
	"time"
)

// MaxQtyRule caps the purchasable quantity for a single category within a
// (brand, company, domain) scope. A nil DomainID means the rule applies
// regardless of which storefront domain the item was resolved to — note that
// "applies globally" still forms its own equivalence class for uniqueness:
// the tuple (category_id, brand_id, company_code, domain_id) is unique with
// NULL treated as a distinct value.
type MaxQtyRule struct {
	ID          int64     `json:"id"`
	CategoryID  string    `json:"category_id"`
	BrandID     string    `json:"brand_id"`
	CompanyCode string    `json:"company_code"`
	DomainID    *int64    `json:"domain_id,omitempty"` // nil = global across domains
	MaxQty      float64   `json:"max_qty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MaxQtyCategoryRule caps the combined quantity across a *group* of
// categories. CategoryIDs is stored as a comma-delimited string, matching the
// upstream admin contract. A single-category MaxQtyRule always takes
// precedence over a group rule covering the same category.
type MaxQtyCategoryRule struct {
	ID          int64     `json:"id"`
	CategoryIDs string    `json:"category_ids"`
	BrandID     string    `json:"brand_id"`
	CompanyCode string    `json:"company_code"`
	DomainID    *int64    `json:"domain_id,omitempty"`
	MaxQty      float64   `json:"max_qty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryIDList parses the stored comma-delimited category set. Blank
// entries are dropped so trailing commas from hand-edited data are harmless.
func (r *MaxQtyCategoryRule) CategoryIDList() []string {
	parts := strings.Split(r.CategoryIDs, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
