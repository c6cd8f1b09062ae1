package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-limit-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrRuleNotFound          = errors.New("store: max qty rule not found")
	ErrCategoryRuleNotFound  = errors.New("store: max qty category rule not found")
	ErrAccessMappingNotFound = errors.New("store: access mapping not found")
	ErrInvalidPurgeWindow    = errors.New("store: purge window must be at least one month")
)

// PostgresStore implements the RuleStorer, CategoryRuleStorer, TrackerStorer
// and AccessMappingStorer interfaces using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// nullInt64 adapts an optional domain id for a query parameter.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullString adapts an optional brand id for a query parameter.
func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// --- RuleStorer Implementation ---

func (s *PostgresStore) UpsertRule(ctx context.Context, rule *domain.MaxQtyRule) (*domain.MaxQtyRule, error) {
	// The conflict target mirrors the expression unique index: a NULL domain
	// is its own equivalence class, collapsed to -1 for uniqueness only.
	query := `
		INSERT INTO redington_max_qty_rule (category_id, brand_id, company_code, domain_id, max_qty)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (category_id, brand_id, company_code, COALESCE(domain_id, -1))
		DO UPDATE SET max_qty = EXCLUDED.max_qty, updated_at = CURRENT_TIMESTAMP
		RETURNING id, category_id, brand_id, company_code, domain_id, max_qty, created_at, updated_at;
	`
	row := s.db.QueryRowContext(ctx, query,
		rule.CategoryID, rule.BrandID, rule.CompanyCode, nullInt64(rule.DomainID), rule.MaxQty)

	saved, err := scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("store: UpsertRule failed to scan row: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) ListRules(ctx context.Context, limit int) ([]domain.MaxQtyRule, error) {
	query := `
		SELECT id, category_id, brand_id, company_code, domain_id, max_qty, created_at, updated_at
		FROM redington_max_qty_rule
		ORDER BY id ASC
		LIMIT $1;
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: ListRules failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]domain.MaxQtyRule, 0, limit)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListRules failed to scan rule row: %w", err)
		}
		rules = append(rules, *r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListRules iteration error: %w", err)
	}
	return rules, nil
}

func (s *PostgresStore) FindRuleByScope(ctx context.Context, brandID, companyCode string, domainID *int64) (*domain.MaxQtyRule, error) {
	// An exact domain match is more specific than a global (NULL domain) rule,
	// so non-NULL rows sort first. When domainID itself is NULL only global
	// rows can match (`domain_id = NULL` is never true).
	query := `
		SELECT id, category_id, brand_id, company_code, domain_id, max_qty, created_at, updated_at
		FROM redington_max_qty_rule
		WHERE brand_id = $1 AND company_code = $2 AND (domain_id IS NULL OR domain_id = $3)
		ORDER BY (domain_id IS NULL) ASC, id ASC
		LIMIT 1;
	`
	row := s.db.QueryRowContext(ctx, query, brandID, companyCode, nullInt64(domainID))
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("store: FindRuleByScope failed to scan row: %w", err)
	}
	return rule, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*domain.MaxQtyRule, error) {
	var r domain.MaxQtyRule
	var domainID sql.NullInt64
	err := row.Scan(&r.ID, &r.CategoryID, &r.BrandID, &r.CompanyCode, &domainID, &r.MaxQty, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if domainID.Valid {
		r.DomainID = &domainID.Int64
	}
	return &r, nil
}

// --- CategoryRuleStorer Implementation ---

func (s *PostgresStore) UpsertCategoryRule(ctx context.Context, rule *domain.MaxQtyCategoryRule) (*domain.MaxQtyCategoryRule, error) {
	query := `
		INSERT INTO redington_max_qty_category (category_ids, brand_id, company_code, domain_id, max_qty)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (category_ids, brand_id, company_code, COALESCE(domain_id, -1))
		DO UPDATE SET max_qty = EXCLUDED.max_qty, updated_at = CURRENT_TIMESTAMP
		RETURNING id, category_ids, brand_id, company_code, domain_id, max_qty, created_at, updated_at;
	`
	row := s.db.QueryRowContext(ctx, query,
		rule.CategoryIDs, rule.BrandID, rule.CompanyCode, nullInt64(rule.DomainID), rule.MaxQty)

	saved, err := scanCategoryRule(row)
	if err != nil {
		return nil, fmt.Errorf("store: UpsertCategoryRule failed to scan row: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) ListCategoryRules(ctx context.Context, limit int) ([]domain.MaxQtyCategoryRule, error) {
	query := `
		SELECT id, category_ids, brand_id, company_code, domain_id, max_qty, created_at, updated_at
		FROM redington_max_qty_category
		ORDER BY id ASC
		LIMIT $1;
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategoryRules failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]domain.MaxQtyCategoryRule, 0, limit)
	for rows.Next() {
		r, err := scanCategoryRule(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListCategoryRules failed to scan rule row: %w", err)
		}
		rules = append(rules, *r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategoryRules iteration error: %w", err)
	}
	return rules, nil
}

func (s *PostgresStore) FindCategoryRuleByScope(ctx context.Context, brandID, companyCode string, domainID *int64) (*domain.MaxQtyCategoryRule, error) {
	query := `
		SELECT id, category_ids, brand_id, company_code, domain_id, max_qty, created_at, updated_at
		FROM redington_max_qty_category
		WHERE brand_id = $1 AND company_code = $2 AND (domain_id IS NULL OR domain_id = $3)
		ORDER BY (domain_id IS NULL) ASC, id ASC
		LIMIT 1;
	`
	row := s.db.QueryRowContext(ctx, query, brandID, companyCode, nullInt64(domainID))
	rule, err := scanCategoryRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryRuleNotFound
		}
		return nil, fmt.Errorf("store: FindCategoryRuleByScope failed to scan row: %w", err)
	}
	return rule, nil
}

func scanCategoryRule(row rowScanner) (*domain.MaxQtyCategoryRule, error) {
	var r domain.MaxQtyCategoryRule
	var domainID sql.NullInt64
	err := row.Scan(&r.ID, &r.CategoryIDs, &r.BrandID, &r.CompanyCode, &domainID, &r.MaxQty, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if domainID.Valid {
		r.DomainID = &domainID.Int64
	}
	return &r, nil
}

// --- TrackerStorer Implementation ---

func (s *PostgresStore) UpsertTracker(ctx context.Context, tracker *domain.OrderQuantityTracker) (*domain.OrderQuantityTracker, error) {
	query := `
		INSERT INTO redington_order_quantity_tracker (customer_id, order_increment_id, sku, quantity, brand_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (customer_id, order_increment_id, sku)
		DO UPDATE SET quantity = EXCLUDED.quantity, brand_id = EXCLUDED.brand_id, updated_at = CURRENT_TIMESTAMP
		RETURNING id, customer_id, order_increment_id, sku, quantity, brand_id, created_at, updated_at;
	`
	row := s.db.QueryRowContext(ctx, query,
		tracker.CustomerID, tracker.OrderIncrementID, tracker.SKU, tracker.Quantity, nullString(tracker.BrandID))

	var t domain.OrderQuantityTracker
	var brandID sql.NullString
	err := row.Scan(&t.ID, &t.CustomerID, &t.OrderIncrementID, &t.SKU, &t.Quantity, &brandID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: UpsertTracker failed to scan row: %w", err)
	}
	if brandID.Valid {
		t.BrandID = &brandID.String
	}
	return &t, nil
}

func (s *PostgresStore) SumTrackedQuantity(ctx context.Context, brandID string, customerID *int64) (float64, error) {
	var total float64
	var err error
	if customerID != nil {
		query := `
			SELECT COALESCE(SUM(quantity), 0)
			FROM redington_order_quantity_tracker
			WHERE brand_id = $1 AND customer_id = $2;
		`
		err = s.db.QueryRowContext(ctx, query, brandID, *customerID).Scan(&total)
	} else {
		query := `
			SELECT COALESCE(SUM(quantity), 0)
			FROM redington_order_quantity_tracker
			WHERE brand_id = $1;
		`
		err = s.db.QueryRowContext(ctx, query, brandID).Scan(&total)
	}
	if err != nil {
		return 0, fmt.Errorf("store: SumTrackedQuantity failed: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) PurgeTrackersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM redington_order_quantity_tracker WHERE created_at < $1;`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: PurgeTrackersBefore failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: PurgeTrackersBefore failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (s *PostgresStore) PurgeTrackersOlderThanMonths(ctx context.Context, months int) (int64, error) {
	if months <= 0 {
		return 0, ErrInvalidPurgeWindow
	}
	cutoff := time.Now().UTC().AddDate(0, -months, 0)
	return s.PurgeTrackersBefore(ctx, cutoff)
}

// --- AccessMappingStorer Implementation ---

func (s *PostgresStore) GetAccessMappingByAccessID(ctx context.Context, accessID string) (*domain.AccessMapping, error) {
	query := `
		SELECT id, access_id, company_code, domain_id, created_at, updated_at
		FROM redington_access_mapping
		WHERE access_id = $1;
	`
	var m domain.AccessMapping
	var domainID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, accessID).Scan(
		&m.ID, &m.AccessID, &m.CompanyCode, &domainID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccessMappingNotFound
		}
		return nil, fmt.Errorf("store: GetAccessMappingByAccessID failed to scan row: %w", err)
	}
	if domainID.Valid {
		m.DomainID = &domainID.Int64
	}
	return &m, nil
}

func (s *PostgresStore) UpsertAccessMapping(ctx context.Context, mapping *domain.AccessMapping) (*domain.AccessMapping, error) {
	query := `
		INSERT INTO redington_access_mapping (access_id, company_code, domain_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (access_id)
		DO UPDATE SET company_code = EXCLUDED.company_code, domain_id = EXCLUDED.domain_id, updated_at = CURRENT_TIMESTAMP
		RETURNING id, access_id, company_code, domain_id, created_at, updated_at;
	`
	var m domain.AccessMapping
	var domainID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query,
		mapping.AccessID, mapping.CompanyCode, nullInt64(mapping.DomainID)).Scan(
		&m.ID, &m.AccessID, &m.CompanyCode, &domainID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: UpsertAccessMapping failed to scan row: %w", err)
	}
	if domainID.Valid {
		m.DomainID = &domainID.Int64
	}
	return &m, nil
}
