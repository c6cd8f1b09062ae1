// Package summary answers the storefront question "how much of this brand's
// allowance has this customer already used, and what remains."
package summary

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"order-limit-service/internal/store"
)

// Predefined errors surfaced to the HTTP layer. Missing identifiers are
// "not found"-flavored by contract: the legacy storefront maps them to 404.
var (
	ErrBrandIDRequired  = errors.New("summary: brand_id is required")
	ErrAccessIDRequired = errors.New("summary: access_id is required")
)

// Input identifies whose allowance to summarize. CustomerID is optional:
// when nil, the ordered quantity covers the whole brand.
type Input struct {
	BrandID    string
	AccessID   string
	CustomerID *int64
}

// Row is one summary entry. Quantities are string-typed with "" meaning
// unknown — the legacy storefront contract this endpoint serves predates
// nullable numbers and cannot be changed unilaterally.
type Row struct {
	BrandID    string `json:"brand_id"`
	CategoryID string `json:"category_id"`
	AllowedQty string `json:"allowed_qty"`
	OrderedQty string `json:"ordered_qty"`
}

// Service combines the access-mapping lookup, rule lookup and tracker sums.
// It is read-only and independent of the validation write path.
type Service struct {
	rules          store.RuleStorer
	categoryRules  store.CategoryRuleStorer
	trackers       store.TrackerStorer
	accessMappings store.AccessMappingStorer
}

// NewService creates a summary service over the given stores.
func NewService(rules store.RuleStorer, categoryRules store.CategoryRuleStorer, trackers store.TrackerStorer, accessMappings store.AccessMappingStorer) *Service {
	return &Service{
		rules:          rules,
		categoryRules:  categoryRules,
		trackers:       trackers,
		accessMappings: accessMappings,
	}
}

// GetMaxOrderQtySummary resolves the caller's company/domain scope through
// the access mapping, picks the governing rule (single-category rule first,
// category-group rule as fallback — its first category id is reported), and
// sums tracked quantities. When no rule exists for the scope the allowance is
// reported as unknown rather than failing: the storefront renders "no limit".
func (s *Service) GetMaxOrderQtySummary(ctx context.Context, in Input) ([]Row, error) {
	brandID := strings.TrimSpace(in.BrandID)
	if brandID == "" {
		return nil, ErrBrandIDRequired
	}
	accessID := strings.TrimSpace(in.AccessID)
	if accessID == "" {
		return nil, ErrAccessIDRequired
	}

	mapping, err := s.accessMappings.GetAccessMappingByAccessID(ctx, accessID)
	if err != nil {
		if errors.Is(err, store.ErrAccessMappingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("summary: access mapping lookup failed: %w", err)
	}

	allowedQty := ""
	categoryID := ""
	rule, err := s.rules.FindRuleByScope(ctx, brandID, mapping.CompanyCode, mapping.DomainID)
	switch {
	case err == nil:
		allowedQty = formatQty(rule.MaxQty)
		categoryID = rule.CategoryID
	case errors.Is(err, store.ErrRuleNotFound):
		catRule, catErr := s.categoryRules.FindCategoryRuleByScope(ctx, brandID, mapping.CompanyCode, mapping.DomainID)
		switch {
		case catErr == nil:
			allowedQty = formatQty(catRule.MaxQty)
			if ids := catRule.CategoryIDList(); len(ids) > 0 {
				categoryID = ids[0]
			}
		case errors.Is(catErr, store.ErrCategoryRuleNotFound):
			// No rule for this scope: allowance stays unknown.
		default:
			return nil, fmt.Errorf("summary: category rule lookup failed: %w", catErr)
		}
	default:
		return nil, fmt.Errorf("summary: rule lookup failed: %w", err)
	}

	ordered, err := s.trackers.SumTrackedQuantity(ctx, brandID, in.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("summary: tracked quantity sum failed: %w", err)
	}

	return []Row{{
		BrandID:    brandID,
		CategoryID: categoryID,
		AllowedQty: allowedQty,
		OrderedQty: formatQty(ordered),
	}}, nil
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
