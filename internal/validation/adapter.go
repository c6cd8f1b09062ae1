package validation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"order-limit-service/internal/domain"
)

// Metadata key synonyms probed, in priority order, for each logical field.
// Upstream systems disagree on naming: the storefront writes camelCase, the
// admin importer writes snake_case, and carts migrated from Magento carry the
// bare attribute code. First non-empty value wins.
var (
	skuKeys          = []string{"sku", "item_sku"}
	brandKeys        = []string{"brandId", "brand_id", "brand"}
	companyKeys      = []string{"companyCode", "company_code", "company"}
	domainKeys       = []string{"domainId", "domain_id", "domain"}
	categoryKeys     = []string{"categoryId", "category_id", "category"}
	categoryListKeys = []string{"categoryIds", "category_ids", "categories"}
)

// ItemsFromCart maps every line item of a cart into normalized validation
// items. It is a pure function and never fails: malformed per-item data
// degrades to zero values, which the engine then skips.
func ItemsFromCart(cart *domain.Cart) []domain.ValidationItem {
	if cart == nil {
		return nil
	}
	items := make([]domain.ValidationItem, 0, len(cart.Items))
	for i := range cart.Items {
		items = append(items, ItemFromLineItem(&cart.Items[i]))
	}
	return items
}

// ItemFromLineItem normalizes one cart line. SKU resolution order: variant
// SKU, metadata SKU, item-level SKU, title as last resort.
func ItemFromLineItem(li *domain.LineItem) domain.ValidationItem {
	if li == nil {
		return domain.ValidationItem{}
	}
	sku := ""
	if li.Variant != nil {
		sku = strings.TrimSpace(li.Variant.SKU)
	}
	if sku == "" {
		sku = probeString(li.Metadata, skuKeys)
	}
	if sku == "" {
		sku = strings.TrimSpace(li.SKU)
	}
	if sku == "" {
		sku = strings.TrimSpace(li.Title)
	}
	return buildItem(sku, li.Quantity, li.Metadata)
}

// ItemFromPayload normalizes a single incoming add-to-cart payload. Metadata
// may live under either `metadata` or `additional_data`; when both are
// present `metadata` wins per field.
func ItemFromPayload(p *domain.LineItemPayload) domain.ValidationItem {
	if p == nil {
		return domain.ValidationItem{}
	}
	meta := mergeMetadata(p.Metadata, p.AdditionalData)
	sku := strings.TrimSpace(p.SKU)
	if sku == "" {
		sku = probeString(meta, skuKeys)
	}
	if sku == "" {
		sku = strings.TrimSpace(p.Title)
	}
	return buildItem(sku, p.Quantity, meta)
}

// MergeItems appends well-formed extras (non-empty SKU) to a base list,
// producing the prospective item set a mutation would result in. Neither
// input slice is modified.
func MergeItems(base []domain.ValidationItem, extras ...domain.ValidationItem) []domain.ValidationItem {
	merged := make([]domain.ValidationItem, 0, len(base)+len(extras))
	merged = append(merged, base...)
	for _, extra := range extras {
		if strings.TrimSpace(extra.SKU) != "" {
			merged = append(merged, extra)
		}
	}
	return merged
}

func buildItem(sku string, quantity interface{}, meta map[string]interface{}) domain.ValidationItem {
	item := domain.ValidationItem{
		SKU:         sku,
		Quantity:    CoerceQuantity(quantity),
		BrandID:     probeString(meta, brandKeys),
		CompanyCode: probeString(meta, companyKeys),
		DomainID:    probeInt64(meta, domainKeys),
		CategoryID:  probeString(meta, categoryKeys),
	}
	item.CategoryIDs = probeStringList(meta, categoryListKeys)
	// CategoryIDs is contractually a superset of CategoryID.
	if item.CategoryID != "" && !containsString(item.CategoryIDs, item.CategoryID) {
		item.CategoryIDs = append(item.CategoryIDs, item.CategoryID)
	}
	return item
}

func mergeMetadata(primary, secondary map[string]interface{}) map[string]interface{} {
	if len(secondary) == 0 {
		return primary
	}
	merged := make(map[string]interface{}, len(primary)+len(secondary))
	for k, v := range secondary {
		merged[k] = v
	}
	for k, v := range primary {
		merged[k] = v
	}
	return merged
}

// CoerceQuantity converts whatever the upstream serializer produced into a
// number. It fails closed to 0 — never panics or errors — so one bad line
// item cannot block validation of the rest of the cart.
func CoerceQuantity(v interface{}) float64 {
	var q float64
	switch value := v.(type) {
	case float64:
		q = value
	case float32:
		q = float64(value)
	case int:
		q = float64(value)
	case int32:
		q = float64(value)
	case int64:
		q = float64(value)
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0
		}
		q = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		q = parsed
	default:
		return 0
	}
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

// probeString returns the first non-empty value among the synonym keys,
// coerced to a string (numeric metadata values are common after Magento
// migration).
func probeString(meta map[string]interface{}, keys []string) string {
	if meta == nil {
		return ""
	}
	for _, key := range keys {
		if raw, ok := meta[key]; ok {
			if s := anyToString(raw); s != "" {
				return s
			}
		}
	}
	return ""
}

func probeInt64(meta map[string]interface{}, keys []string) *int64 {
	s := probeString(meta, keys)
	if s == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// probeStringList handles category sets arriving as JSON arrays, delimited
// strings, or single values.
func probeStringList(meta map[string]interface{}, keys []string) []string {
	if meta == nil {
		return nil
	}
	for _, key := range keys {
		raw, ok := meta[key]
		if !ok {
			continue
		}
		var values []string
		switch list := raw.(type) {
		case []interface{}:
			for _, entry := range list {
				if s := anyToString(entry); s != "" {
					values = append(values, s)
				}
			}
		case []string:
			for _, entry := range list {
				if s := strings.TrimSpace(entry); s != "" {
					values = append(values, s)
				}
			}
		default:
			for _, part := range strings.Split(anyToString(raw), ",") {
				if s := strings.TrimSpace(part); s != "" {
					values = append(values, s)
				}
			}
		}
		if len(values) > 0 {
			return values
		}
	}
	return nil
}

func anyToString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

func containsString(list []string, target string) bool {
	for _, entry := range list {
		if entry == target {
			return true
		}
	}
	return false
}
