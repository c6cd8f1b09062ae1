package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"order-limit-service/internal/api/middleware"
	"order-limit-service/internal/cartclient"
	"order-limit-service/internal/domain"
	"order-limit-service/internal/store"
	"order-limit-service/internal/summary"
)

// CartValidator is what the checkout guard needs from the validation engine.
type CartValidator interface {
	ValidateItems(ctx context.Context, items []domain.ValidationItem) (*domain.ValidationResult, error)
}

// QuotaSummarizer is what the storefront endpoints need from the summary service.
type QuotaSummarizer interface {
	GetMaxOrderQtySummary(ctx context.Context, in summary.Input) ([]summary.Row, error)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	ruleStore         store.RuleStorer
	categoryRuleStore store.CategoryRuleStorer
	trackerStore      store.TrackerStorer
	accessStore       store.AccessMappingStorer
	cartValidator     CartValidator
	summarizer        QuotaSummarizer
	carts             cartclient.Client
	validate          *validator.Validate
	exportLimit       int
}

// NewHTTPHandler creates a new HTTPHandler with dependencies. exportLimit
// bounds the admin export (and matches the engine's rule fetch limit).
func NewHTTPHandler(
	rules store.RuleStorer,
	categoryRules store.CategoryRuleStorer,
	trackers store.TrackerStorer,
	accessMappings store.AccessMappingStorer,
	cartValidator CartValidator,
	summarizer QuotaSummarizer,
	carts cartclient.Client,
	exportLimit int,
) *HTTPHandler {
	if exportLimit <= 0 {
		exportLimit = 1000
	}
	return &HTTPHandler{
		ruleStore:         rules,
		categoryRuleStore: categoryRules,
		trackerStore:      trackers,
		accessStore:       accessMappings,
		cartValidator:     cartValidator,
		summarizer:        summarizer,
		carts:             carts,
		validate:          validator.New(),
		exportLimit:       exportLimit,
	}
}

// RouteMiddleware carries the optional middleware applied per route group.
// Nil entries are skipped, which keeps handler tests free of auth and Redis.
type RouteMiddleware struct {
	AdminAuth func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler
}

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router, mw RouteMiddleware) {
	r.Route("/admin/max-qty", func(r chi.Router) {
		if mw.AdminAuth != nil {
			r.Use(mw.AdminAuth)
		}
		r.Get("/export", h.ExportMaxQty)            // GET  /admin/max-qty/export
		r.Post("/import", h.ImportMaxQty)           // POST /admin/max-qty/import
		r.Post("/trackers/purge", h.PurgeTrackers)  // POST /admin/max-qty/trackers/purge
		r.Post("/access-mappings", h.UpsertMapping) // POST /admin/max-qty/access-mappings
	})

	r.Route("/store", func(r chi.Router) {
		summaryRouter := r
		if mw.RateLimit != nil {
			summaryRouter = r.With(mw.RateLimit)
		}
		summaryRouter.Post("/max-order-qty", h.GetMaxOrderQtySummary)

		r.Route("/carts/{cartID}", func(r chi.Router) {
			r.Post("/line-items", h.AddLineItem)                  // guard + forward add
			r.Post("/line-items/{lineItemID}", h.UpdateLineItem)  // guard + forward quantity update
			r.Post("/complete", h.CompleteCart)                   // guard + forward completion
		})
	})

	// Legacy Magento-path mirror: permissive CORS, no session auth, same
	// handler and rate limit as the store route.
	legacy := r.With(middleware.PermissiveCORS)
	if mw.RateLimit != nil {
		legacy = legacy.With(mw.RateLimit)
	}
	legacy.Post("/rest/V1/maxorderqty", h.GetMaxOrderQtySummary)
	legacy.Options("/rest/V1/maxorderqty", h.GetMaxOrderQtySummary) // preflight; CORS middleware short-circuits
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ViolationResponse is the 422 body returned when the guard rejects a cart
// mutation. Violations are a business outcome, not an error.
type ViolationResponse struct {
	Message    string             `json:"message"`
	Violations []domain.Violation `json:"violations"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("ERROR: Failed to encode JSON response: %v", err)
			http.Error(w, `{"error": "Internal server error during JSON encoding"}`, http.StatusInternalServerError)
		}
	}
}
