package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"order-limit-service/internal/domain"
	"order-limit-service/internal/store"
	"order-limit-service/internal/summary"
)

// --- Mocks for the handler's collaborators ---

// MockRuleStorer is a mock implementation of store.RuleStorer
type MockRuleStorer struct {
	mock.Mock
}

func (m *MockRuleStorer) UpsertRule(ctx context.Context, rule *domain.MaxQtyRule) (*domain.MaxQtyRule, error) {
	args := m.Called(ctx, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MaxQtyRule), args.Error(1)
}

func (m *MockRuleStorer) ListRules(ctx context.Context, limit int) ([]domain.MaxQtyRule, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MaxQtyRule), args.Error(1)
}

func (m *MockRuleStorer) FindRuleByScope(ctx context.Context, brandID, companyCode string, domainID *int64) (*domain.MaxQtyRule, error) {
	args := m.Called(ctx, brandID, companyCode, domainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MaxQtyRule), args.Error(1)
}

// MockCategoryRuleStorer is a mock implementation of store.CategoryRuleStorer
type MockCategoryRuleStorer struct {
	mock.Mock
}

func (m *MockCategoryRuleStorer) UpsertCategoryRule(ctx context.Context, rule *domain.MaxQtyCategoryRule) (*domain.MaxQtyCategoryRule, error) {
	args := m.Called(ctx, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MaxQtyCategoryRule), args.Error(1)
}

func (m *MockCategoryRuleStorer) ListCategoryRules(ctx context.Context, limit int) ([]domain.MaxQtyCategoryRule, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MaxQtyCategoryRule), args.Error(1)
}

func (m *MockCategoryRuleStorer) FindCategoryRuleByScope(ctx context.Context, brandID, companyCode string, domainID *int64) (*domain.MaxQtyCategoryRule, error) {
	args := m.Called(ctx, brandID, companyCode, domainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MaxQtyCategoryRule), args.Error(1)
}

// MockTrackerStorer is a mock implementation of store.TrackerStorer
type MockTrackerStorer struct {
	mock.Mock
}

func (m *MockTrackerStorer) UpsertTracker(ctx context.Context, tracker *domain.OrderQuantityTracker) (*domain.OrderQuantityTracker, error) {
	args := m.Called(ctx, tracker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderQuantityTracker), args.Error(1)
}

func (m *MockTrackerStorer) SumTrackedQuantity(ctx context.Context, brandID string, customerID *int64) (float64, error) {
	args := m.Called(ctx, brandID, customerID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockTrackerStorer) PurgeTrackersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTrackerStorer) PurgeTrackersOlderThanMonths(ctx context.Context, months int) (int64, error) {
	args := m.Called(ctx, months)
	return args.Get(0).(int64), args.Error(1)
}

// MockAccessMappingStorer is a mock implementation of store.AccessMappingStorer
type MockAccessMappingStorer struct {
	mock.Mock
}

func (m *MockAccessMappingStorer) GetAccessMappingByAccessID(ctx context.Context, accessID string) (*domain.AccessMapping, error) {
	args := m.Called(ctx, accessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccessMapping), args.Error(1)
}

func (m *MockAccessMappingStorer) UpsertAccessMapping(ctx context.Context, mapping *domain.AccessMapping) (*domain.AccessMapping, error) {
	args := m.Called(ctx, mapping)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccessMapping), args.Error(1)
}

// MockCartValidator is a mock implementation of CartValidator
type MockCartValidator struct {
	mock.Mock
}

func (m *MockCartValidator) ValidateItems(ctx context.Context, items []domain.ValidationItem) (*domain.ValidationResult, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ValidationResult), args.Error(1)
}

// MockQuotaSummarizer is a mock implementation of QuotaSummarizer
type MockQuotaSummarizer struct {
	mock.Mock
}

func (m *MockQuotaSummarizer) GetMaxOrderQtySummary(ctx context.Context, in summary.Input) ([]summary.Row, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]summary.Row), args.Error(1)
}

// MockCartClient is a mock implementation of cartclient.Client
type MockCartClient struct {
	mock.Mock
}

func (m *MockCartClient) RetrieveCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *MockCartClient) AddLineItem(ctx context.Context, cartID string, payload *domain.LineItemPayload) (*domain.Cart, error) {
	args := m.Called(ctx, cartID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *MockCartClient) UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity float64) (*domain.Cart, error) {
	args := m.Called(ctx, cartID, lineItemID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *MockCartClient) CompleteCart(ctx context.Context, cartID string) (*domain.Order, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type handlerMocks struct {
	rules      *MockRuleStorer
	catRules   *MockCategoryRuleStorer
	trackers   *MockTrackerStorer
	access     *MockAccessMappingStorer
	validator  *MockCartValidator
	summarizer *MockQuotaSummarizer
	carts      *MockCartClient
}

// setupTestChiServer wires a handler with mocked collaborators onto a chi
// router. Route middleware is left nil so tests hit handlers directly.
func setupTestChiServer(t *testing.T) (chi.Router, *handlerMocks) {
	t.Helper()
	m := &handlerMocks{
		rules:      new(MockRuleStorer),
		catRules:   new(MockCategoryRuleStorer),
		trackers:   new(MockTrackerStorer),
		access:     new(MockAccessMappingStorer),
		validator:  new(MockCartValidator),
		summarizer: new(MockQuotaSummarizer),
		carts:      new(MockCartClient),
	}
	handler := NewHTTPHandler(m.rules, m.catRules, m.trackers, m.access, m.validator, m.summarizer, m.carts, 100)
	router := chi.NewRouter()
	handler.RegisterRoutes(router, RouteMiddleware{})
	return router, m
}

func performRequest(router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func ptrInt64(v int64) *int64 {
	return &v
}

// --- Admin endpoints ---

func TestExportMaxQty(t *testing.T) {
	router, m := setupTestChiServer(t)
	m.rules.On("ListRules", mock.Anything, 100).Return([]domain.MaxQtyRule{
		{ID: 1, CategoryID: "laptops", BrandID: "HP", CompanyCode: "AE01", MaxQty: 10},
	}, nil)
	m.catRules.On("ListCategoryRules", mock.Anything, 100).Return([]domain.MaxQtyCategoryRule{}, nil)

	rr := performRequest(router, http.MethodGet, "/admin/max-qty/export", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ExportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Rules, 1)
	assert.Equal(t, "laptops", resp.Rules[0].CategoryID)
	assert.Empty(t, resp.Categories)

	m.rules.AssertExpectations(t)
	m.catRules.AssertExpectations(t)
}

func TestImportMaxQty(t *testing.T) {
	router, m := setupTestChiServer(t)

	m.rules.On("UpsertRule", mock.Anything, mock.AnythingOfType("*domain.MaxQtyRule")).
		Return(&domain.MaxQtyRule{ID: 1, CategoryID: "laptops", BrandID: "HP", CompanyCode: "AE01", MaxQty: 10}, nil)
	m.catRules.On("UpsertCategoryRule", mock.Anything, mock.AnythingOfType("*domain.MaxQtyCategoryRule")).
		Return(&domain.MaxQtyCategoryRule{ID: 2, CategoryIDs: "printers,scanners", BrandID: "HP", CompanyCode: "AE01", MaxQty: 5}, nil)

	body := ImportInput{
		Rules: []RuleInput{
			{CategoryID: "laptops", BrandID: "HP", CompanyCode: "AE01", MaxQty: 10},
		},
		Categories: []CategoryRuleInput{
			{CategoryIDs: "printers,scanners", BrandID: "HP", CompanyCode: "AE01", MaxQty: 5},
		},
	}
	rr := performRequest(router, http.MethodPost, "/admin/max-qty/import", body)

	require.Equal(t, http.StatusOK, rr.Code, "Response body: %s", rr.Body.String())
	var resp ImportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RulesImported)
	assert.Equal(t, 1, resp.CategoriesImported)

	m.rules.AssertExpectations(t)
	m.catRules.AssertExpectations(t)
}

func TestImportMaxQty_ValidationFailure(t *testing.T) {
	router, m := setupTestChiServer(t)

	body := ImportInput{
		Rules: []RuleInput{
			{CategoryID: "laptops", BrandID: "", CompanyCode: "AE01", MaxQty: 10}, // missing brand_id
		},
	}
	rr := performRequest(router, http.MethodPost, "/admin/max-qty/import", body)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	m.rules.AssertNotCalled(t, "UpsertRule", mock.Anything, mock.Anything)
}

func TestUpsertMapping(t *testing.T) {
	router, m := setupTestChiServer(t)
	m.access.On("UpsertAccessMapping", mock.Anything, mock.AnythingOfType("*domain.AccessMapping")).
		Return(&domain.AccessMapping{ID: 1, AccessID: "storefront-ae", CompanyCode: "AE01", DomainID: ptrInt64(7)}, nil)

	body := AccessMappingInput{AccessID: "storefront-ae", CompanyCode: "AE01", DomainID: ptrInt64(7)}
	rr := performRequest(router, http.MethodPost, "/admin/max-qty/access-mappings", body)

	require.Equal(t, http.StatusOK, rr.Code, "Response body: %s", rr.Body.String())
	var saved domain.AccessMapping
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &saved))
	assert.Equal(t, "storefront-ae", saved.AccessID)

	m.access.AssertExpectations(t)
}

func TestPurgeTrackers_ByMonths(t *testing.T) {
	router, m := setupTestChiServer(t)
	m.trackers.On("PurgeTrackersOlderThanMonths", mock.Anything, 6).Return(int64(42), nil)

	months := 6
	rr := performRequest(router, http.MethodPost, "/admin/max-qty/trackers/purge", PurgeInput{Months: &months})

	require.Equal(t, http.StatusOK, rr.Code)
	var resp PurgeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Purged)

	m.trackers.AssertExpectations(t)
}

func TestPurgeTrackers_ByCutoffDate(t *testing.T) {
	router, m := setupTestChiServer(t)
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	m.trackers.On("PurgeTrackersBefore", mock.Anything, cutoff).Return(int64(5), nil)

	rr := performRequest(router, http.MethodPost, "/admin/max-qty/trackers/purge", PurgeInput{Before: &cutoff})

	require.Equal(t, http.StatusOK, rr.Code)
	m.trackers.AssertExpectations(t)
}

func TestPurgeTrackers_MissingSelector(t *testing.T) {
	router, m := setupTestChiServer(t)

	rr := performRequest(router, http.MethodPost, "/admin/max-qty/trackers/purge", PurgeInput{})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	m.trackers.AssertNotCalled(t, "PurgeTrackersBefore", mock.Anything, mock.Anything)
	m.trackers.AssertNotCalled(t, "PurgeTrackersOlderThanMonths", mock.Anything, mock.Anything)
}

// --- Storefront summary endpoint ---

func TestGetMaxOrderQtySummary_OK(t *testing.T) {
	router, m := setupTestChiServer(t)
	expected := []summary.Row{
		{BrandID: "HP", CategoryID: "laptops", AllowedQty: "10", OrderedQty: "4"},
	}
	m.summarizer.On("GetMaxOrderQtySummary", mock.Anything, summary.Input{
		BrandID:    "HP",
		AccessID:   "storefront-ae",
		CustomerID: ptrInt64(42),
	}).Return(expected, nil)

	body := map[string]interface{}{"brand_id": "HP", "accessId": "storefront-ae", "customer_id": 42}
	rr := performRequest(router, http.MethodPost, "/store/max-order-qty", body)

	require.Equal(t, http.StatusOK, rr.Code, "Response body: %s", rr.Body.String())
	var rows []summary.Row
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	assert.Equal(t, expected, rows)

	m.summarizer.AssertExpectations(t)
}

func TestGetMaxOrderQtySummary_MappingNotFound(t *testing.T) {
	router, m := setupTestChiServer(t)
	m.summarizer.On("GetMaxOrderQtySummary", mock.Anything, mock.Anything).
		Return(nil, store.ErrAccessMappingNotFound)

	body := map[string]interface{}{"brand_id": "HP", "accessId": "unknown"}
	rr := performRequest(router, http.MethodPost, "/store/max-order-qty", body)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetMaxOrderQtySummary_MissingBrandIsNotFound(t *testing.T) {
	router, m := setupTestChiServer(t)
	m.summarizer.On("GetMaxOrderQtySummary", mock.Anything, mock.Anything).
		Return(nil, summary.ErrBrandIDRequired)

	body := map[string]interface{}{"accessId": "storefront-ae"}
	rr := performRequest(router, http.MethodPost, "/store/max-order-qty", body)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetMaxOrderQtySummary_LegacyPath(t *testing.T) {
	router, m := setupTestChiServer(t)
	m.summarizer.On("GetMaxOrderQtySummary", mock.Anything, mock.Anything).
		Return([]summary.Row{{BrandID: "HP", AllowedQty: "10", OrderedQty: "0"}}, nil)

	body := map[string]interface{}{"brand_id": "HP", "accessId": "storefront-ae"}
	rr := performRequest(router, http.MethodPost, "/rest/V1/maxorderqty", body)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetMaxOrderQtySummary_LegacyPreflight(t *testing.T) {
	router, _ := setupTestChiServer(t)

	rr := performRequest(router, http.MethodOptions, "/rest/V1/maxorderqty", nil)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
