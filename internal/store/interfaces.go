package store

import (
	"context"
	"time"

	"order-limit-service/internal/domain"
)

// RuleStorer defines the database operations for single-category max-qty rules.
type RuleStorer interface {
	// UpsertRule inserts the rule or, when the unique scope tuple already
	// exists, overwrites its max_qty.
	UpsertRule(ctx context.Context, rule *domain.MaxQtyRule) (*domain.MaxQtyRule, error)
	// ListRules returns up to limit rules. The engine treats this bounded
	// fetch as "effectively all" at this deployment's scale.
	ListRules(ctx context.Context, limit int) ([]domain.MaxQtyRule, error)
	// FindRuleByScope returns the most specific rule for a brand/company/domain
	// scope: an exact domain match wins over a global (NULL domain) rule.
	FindRuleByScope(ctx context.Context, brandID, companyCode string, domainID *int64) (*domain.MaxQtyRule, error)
}

// CategoryRuleStorer defines the database operations for category-group rules.
type CategoryRuleStorer interface {
	UpsertCategoryRule(ctx context.Context, rule *domain.MaxQtyCategoryRule) (*domain.MaxQtyCategoryRule, error)
	ListCategoryRules(ctx context.Context, limit int) ([]domain.MaxQtyCategoryRule, error)
	FindCategoryRuleByScope(ctx context.Context, brandID, companyCode string, domainID *int64) (*domain.MaxQtyCategoryRule, error)
}

// TrackerStorer defines the database operations for the order quantity tracker.
type TrackerStorer interface {
	// UpsertTracker inserts or overwrites the row keyed by
	// (customer_id, order_increment_id, sku).
	UpsertTracker(ctx context.Context, tracker *domain.OrderQuantityTracker) (*domain.OrderQuantityTracker, error)
	// SumTrackedQuantity totals tracked quantities for a brand, optionally
	// restricted to one customer.
	SumTrackedQuantity(ctx context.Context, brandID string, customerID *int64) (float64, error)
	// PurgeTrackersBefore bulk-deletes rows created before the cutoff and
	// returns the number of rows removed.
	PurgeTrackersBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// PurgeTrackersOlderThanMonths is the "N months back" form of the purge.
	PurgeTrackersOlderThanMonths(ctx context.Context, months int) (int64, error)
}

// AccessMappingStorer defines the lookup used to resolve a storefront access
// identifier into its company code and domain.
type AccessMappingStorer interface {
	GetAccessMappingByAccessID(ctx context.Context, accessID string) (*domain.AccessMapping, error)
	UpsertAccessMapping(ctx context.Context, mapping *domain.AccessMapping) (*domain.AccessMapping, error)
}
