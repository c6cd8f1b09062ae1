package validation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"order-limit-service/internal/domain"
	"order-limit-service/internal/store"
)

// DefaultRuleFetchLimit caps the bounded rule fetch per validation call.
const DefaultRuleFetchLimit = 1000

// Engine decides whether a prospective item set violates any max-qty rule.
// Rules are re-read from the store on every call: there is no in-process
// cache, so concurrent validations always see current rule state. The guard
// is best-effort across concurrent mutations of the same cart — two requests
// can both validate against the same "before" view; no lock spans the
// check-then-commit window.
type Engine struct {
	rules         store.RuleStorer
	categoryRules store.CategoryRuleStorer
	fetchLimit    int
}

// NewEngine creates a validation engine over the given rule stores.
// fetchLimit <= 0 falls back to DefaultRuleFetchLimit.
func NewEngine(rules store.RuleStorer, categoryRules store.CategoryRuleStorer, fetchLimit int) *Engine {
	if fetchLimit <= 0 {
		fetchLimit = DefaultRuleFetchLimit
	}
	return &Engine{rules: rules, categoryRules: categoryRules, fetchLimit: fetchLimit}
}

// ruleKey identifies a single-category rule's scope. The optional domain is
// encoded as a string so the struct stays usable as a map key; "" means the
// rule (or item) has no domain.
type ruleKey struct {
	categoryID  string
	brandID     string
	companyCode string
	domainID    string
}

// groupRule is a category-group rule annotated with its parsed category set.
type groupRule struct {
	rule       domain.MaxQtyCategoryRule
	categories map[string]bool
}

// ruleAggregate accumulates quantities matched to one rule during one
// validation call.
type ruleAggregate struct {
	quantity    float64
	maxQty      float64
	ruleType    string
	ruleID      int64
	brandID     string
	companyCode string
	domainID    *int64
	categoryIDs []string
	skus        []string
}

// ValidateItems determines which rule (if any) governs each item, aggregates
// quantities per matched rule, and reports every aggregate whose total
// strictly exceeds its ceiling. Items with non-positive or non-finite
// quantity, or without any usable category identifier, are silently skipped —
// they cannot violate a rule and are not errors. Only backend failures
// produce a non-nil error.
func (e *Engine) ValidateItems(ctx context.Context, items []domain.ValidationItem) (*domain.ValidationResult, error) {
	singleRules, err := e.rules.ListRules(ctx, e.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("validation: failed to load max qty rules: %w", err)
	}
	catRules, err := e.categoryRules.ListCategoryRules(ctx, e.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("validation: failed to load max qty category rules: %w", err)
	}

	ruleIndex := make(map[ruleKey]*domain.MaxQtyRule, len(singleRules))
	for i := range singleRules {
		r := &singleRules[i]
		ruleIndex[ruleKey{
			categoryID:  r.CategoryID,
			brandID:     r.BrandID,
			companyCode: r.CompanyCode,
			domainID:    domainKeyPart(r.DomainID),
		}] = r
	}

	// Group rules are scanned in ascending id order so ties between equally
	// eligible rules resolve the same way on every call.
	groups := make([]groupRule, 0, len(catRules))
	for _, r := range catRules {
		ids := r.CategoryIDList()
		if len(ids) == 0 {
			continue
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		groups = append(groups, groupRule{rule: r, categories: set})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].rule.ID < groups[j].rule.ID })

	aggregates := make(map[string]*ruleAggregate)
	var aggregateOrder []string

	for i := range items {
		item := &items[i]
		if item.Quantity <= 0 || math.IsNaN(item.Quantity) || math.IsInf(item.Quantity, 0) {
			continue
		}
		candidates := candidateCategories(item)
		if len(candidates) == 0 {
			continue
		}

		key, agg := matchItem(item, candidates, ruleIndex, groups)
		if agg == nil {
			continue
		}
		existing, ok := aggregates[key]
		if !ok {
			aggregates[key] = agg
			aggregateOrder = append(aggregateOrder, key)
			existing = agg
		} else {
			existing.quantity += agg.quantity
		}
		if !containsString(existing.skus, item.SKU) {
			existing.skus = append(existing.skus, item.SKU)
		}
	}

	result := &domain.ValidationResult{Valid: true, Violations: []domain.Violation{}}
	for _, key := range aggregateOrder {
		agg := aggregates[key]
		// Strict comparison: a total exactly equal to the ceiling is allowed.
		if agg.quantity <= agg.maxQty {
			continue
		}
		result.Violations = append(result.Violations, domain.Violation{
			Key:         key,
			SKU:         agg.skus[0],
			Quantity:    agg.quantity,
			MaxQty:      agg.maxQty,
			RuleType:    agg.ruleType,
			RuleID:      agg.ruleID,
			CompanyCode: agg.companyCode,
			BrandID:     agg.brandID,
			DomainID:    agg.domainID,
			CategoryIDs: agg.categoryIDs,
			Message:     fmt.Sprintf("Quantity %s exceeds allowed maximum %s.", formatQty(agg.quantity), formatQty(agg.maxQty)),
		})
	}
	result.Valid = len(result.Violations) == 0
	return result, nil
}

// matchItem finds the rule governing one item. A single-category rule match
// on any candidate category governs the item exclusively; category-group
// rules are consulted only when no single-category rule matched. Candidates
// are already sorted, so "first found" is deterministic.
func matchItem(item *domain.ValidationItem, candidates []string, ruleIndex map[ruleKey]*domain.MaxQtyRule, groups []groupRule) (string, *ruleAggregate) {
	itemDomain := domainKeyPart(item.DomainID)
	for _, category := range candidates {
		rule, ok := ruleIndex[ruleKey{
			categoryID:  category,
			brandID:     item.BrandID,
			companyCode: item.CompanyCode,
			domainID:    itemDomain,
		}]
		if !ok {
			continue
		}
		key := aggregateKey(domain.RuleTypeSingle, rule.ID, item.BrandID, item.CompanyCode, itemDomain)
		return key, &ruleAggregate{
			quantity:    item.Quantity,
			maxQty:      rule.MaxQty,
			ruleType:    domain.RuleTypeSingle,
			ruleID:      rule.ID,
			brandID:     item.BrandID,
			companyCode: item.CompanyCode,
			domainID:    item.DomainID,
			categoryIDs: []string{rule.CategoryID},
		}
	}

	for i := range groups {
		g := &groups[i]
		if g.rule.BrandID != item.BrandID || g.rule.CompanyCode != item.CompanyCode || domainKeyPart(g.rule.DomainID) != itemDomain {
			continue
		}
		if !intersects(g.categories, candidates) {
			continue
		}
		key := aggregateKey(domain.RuleTypeCategory, g.rule.ID, item.BrandID, item.CompanyCode, itemDomain)
		return key, &ruleAggregate{
			quantity:    item.Quantity,
			maxQty:      g.rule.MaxQty,
			ruleType:    domain.RuleTypeCategory,
			ruleID:      g.rule.ID,
			brandID:     item.BrandID,
			companyCode: item.CompanyCode,
			domainID:    item.DomainID,
			categoryIDs: g.rule.CategoryIDList(),
		}
	}

	return "", nil
}

// candidateCategories collects the item's category id plus any category set
// entries, deduplicated and sorted lexicographically so the single-rule scan
// order is reproducible.
func candidateCategories(item *domain.ValidationItem) []string {
	seen := make(map[string]bool, len(item.CategoryIDs)+1)
	var candidates []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		candidates = append(candidates, id)
	}
	add(item.CategoryID)
	for _, id := range item.CategoryIDs {
		add(id)
	}
	sort.Strings(candidates)
	return candidates
}

func intersects(set map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if set[c] {
			return true
		}
	}
	return false
}

func aggregateKey(ruleType string, ruleID int64, brandID, companyCode, domainPart string) string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", ruleType, ruleID, brandID, companyCode, domainPart)
}

func domainKeyPart(domainID *int64) string {
	if domainID == nil {
		return ""
	}
	return strconv.FormatInt(*domainID, 10)
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
