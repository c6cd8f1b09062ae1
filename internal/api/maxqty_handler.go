package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"order-limit-service/internal/domain"
	"order-limit-service/internal/store"
	"order-limit-service/internal/summary"
)

// --- Admin: export / import ---

// ExportResponse is the bulk export payload (up to the export limit per kind).
type ExportResponse struct {
	Rules      []domain.MaxQtyRule         `json:"rules"`
	Categories []domain.MaxQtyCategoryRule `json:"categories"`
}

func (h *HTTPHandler) ExportMaxQty(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleStore.ListRules(r.Context(), h.exportLimit)
	if err != nil {
		log.Printf("ERROR: ExportMaxQty rule listing failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to export max qty rules")
		return
	}
	categories, err := h.categoryRuleStore.ListCategoryRules(r.Context(), h.exportLimit)
	if err != nil {
		log.Printf("ERROR: ExportMaxQty category rule listing failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to export max qty category rules")
		return
	}
	respondWithJSON(w, http.StatusOK, ExportResponse{Rules: rules, Categories: categories})
}

// RuleInput defines the expected input for importing a single-category rule.
type RuleInput struct {
	CategoryID  string  `json:"category_id" validate:"required"`
	BrandID     string  `json:"brand_id" validate:"required"`
	CompanyCode string  `json:"company_code" validate:"required"`
	DomainID    *int64  `json:"domain_id" validate:"omitempty,gt=0"`
	MaxQty      float64 `json:"max_qty" validate:"gte=0"`
}

// CategoryRuleInput defines the expected input for importing a category-group rule.
type CategoryRuleInput struct {
	CategoryIDs string  `json:"category_ids" validate:"required"`
	BrandID     string  `json:"brand_id" validate:"required"`
	CompanyCode string  `json:"company_code" validate:"required"`
	DomainID    *int64  `json:"domain_id" validate:"omitempty,gt=0"`
	MaxQty      float64 `json:"max_qty" validate:"gte=0"`
}

// ImportInput is the bulk import request body.
type ImportInput struct {
	Rules      []RuleInput         `json:"rules" validate:"dive"`
	Categories []CategoryRuleInput `json:"categories" validate:"dive"`
}

// ImportResponse reports what the import upserted.
type ImportResponse struct {
	RulesImported      int                         `json:"rules_imported"`
	CategoriesImported int                         `json:"categories_imported"`
	Rules              []domain.MaxQtyRule         `json:"rules"`
	Categories         []domain.MaxQtyCategoryRule `json:"categories"`
}

func (h *HTTPHandler) ImportMaxQty(w http.ResponseWriter, r *http.Request) {
	var input ImportInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	response := ImportResponse{
		Rules:      make([]domain.MaxQtyRule, 0, len(input.Rules)),
		Categories: make([]domain.MaxQtyCategoryRule, 0, len(input.Categories)),
	}

	for _, in := range input.Rules {
		saved, err := h.ruleStore.UpsertRule(r.Context(), &domain.MaxQtyRule{
			CategoryID:  in.CategoryID,
			BrandID:     in.BrandID,
			CompanyCode: in.CompanyCode,
			DomainID:    in.DomainID,
			MaxQty:      in.MaxQty,
		})
		if err != nil {
			log.Printf("ERROR: ImportMaxQty rule upsert failed: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to import max qty rules")
			return
		}
		response.Rules = append(response.Rules, *saved)
	}

	for _, in := range input.Categories {
		saved, err := h.categoryRuleStore.UpsertCategoryRule(r.Context(), &domain.MaxQtyCategoryRule{
			CategoryIDs: in.CategoryIDs,
			BrandID:     in.BrandID,
			CompanyCode: in.CompanyCode,
			DomainID:    in.DomainID,
			MaxQty:      in.MaxQty,
		})
		if err != nil {
			log.Printf("ERROR: ImportMaxQty category rule upsert failed: %v", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to import max qty category rules")
			return
		}
		response.Categories = append(response.Categories, *saved)
	}

	response.RulesImported = len(response.Rules)
	response.CategoriesImported = len(response.Categories)
	respondWithJSON(w, http.StatusOK, response)
}

// --- Admin: access mappings & tracker retention ---

// AccessMappingInput seeds or updates one access mapping.
type AccessMappingInput struct {
	AccessID    string `json:"access_id" validate:"required"`
	CompanyCode string `json:"company_code" validate:"required"`
	DomainID    *int64 `json:"domain_id" validate:"omitempty,gt=0"`
}

func (h *HTTPHandler) UpsertMapping(w http.ResponseWriter, r *http.Request) {
	var input AccessMappingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	saved, err := h.accessStore.UpsertAccessMapping(r.Context(), &domain.AccessMapping{
		AccessID:    input.AccessID,
		CompanyCode: input.CompanyCode,
		DomainID:    input.DomainID,
	})
	if err != nil {
		log.Printf("ERROR: UpsertMapping store operation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save access mapping")
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

// PurgeInput selects the retention cutoff: an absolute date or "N months back".
type PurgeInput struct {
	Before *time.Time `json:"before,omitempty"`
	Months *int       `json:"months,omitempty" validate:"omitempty,gt=0"`
}

// PurgeResponse reports how many tracker rows were removed.
type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

func (h *HTTPHandler) PurgeTrackers(w http.ResponseWriter, r *http.Request) {
	var input PurgeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	if input.Before == nil && input.Months == nil {
		respondWithError(w, http.StatusBadRequest, "Either 'before' or 'months' must be provided")
		return
	}

	var purged int64
	var err error
	if input.Before != nil {
		purged, err = h.trackerStore.PurgeTrackersBefore(r.Context(), *input.Before)
	} else {
		purged, err = h.trackerStore.PurgeTrackersOlderThanMonths(r.Context(), *input.Months)
	}
	if err != nil {
		if errors.Is(err, store.ErrInvalidPurgeWindow) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: PurgeTrackers store operation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to purge order quantity trackers")
		return
	}
	respondWithJSON(w, http.StatusOK, PurgeResponse{Purged: purged})
}

// --- Storefront: quota summary ---

// SummaryInput matches the legacy storefront request body; note the
// camelCase `accessId` key, which predates this service.
type SummaryInput struct {
	BrandID    string `json:"brand_id"`
	AccessID   string `json:"accessId"`
	CustomerID *int64 `json:"customer_id,omitempty"`
}

func (h *HTTPHandler) GetMaxOrderQtySummary(w http.ResponseWriter, r *http.Request) {
	var input SummaryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	rows, err := h.summarizer.GetMaxOrderQtySummary(r.Context(), summary.Input{
		BrandID:    input.BrandID,
		AccessID:   input.AccessID,
		CustomerID: input.CustomerID,
	})
	if err != nil {
		// Missing identifiers and missing mappings are both "not found" by
		// the legacy contract.
		if errors.Is(err, summary.ErrBrandIDRequired) ||
			errors.Is(err, summary.ErrAccessIDRequired) ||
			errors.Is(err, store.ErrAccessMappingNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: GetMaxOrderQtySummary failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to compute max order qty summary")
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}
