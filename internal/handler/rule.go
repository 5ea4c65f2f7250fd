package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tariff/internal/models"
	"tariff/internal/repository"
)

// RuleHandler serves the console's read path over pricing configuration.
// Rule authoring happens out of band, so everything here is read-only.
type RuleHandler struct {
	feeRepo      *repository.FeeDefinitionRepository
	discountRepo *repository.DiscountRuleRepository
	regionRepo   *repository.RegionRepository
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(
	feeRepo *repository.FeeDefinitionRepository,
	discountRepo *repository.DiscountRuleRepository,
	regionRepo *repository.RegionRepository,
) *RuleHandler {
	return &RuleHandler{
		feeRepo:      feeRepo,
		discountRepo: discountRepo,
		regionRepo:   regionRepo,
	}
}

// ListFeeRules returns the active fee definitions for a fee type.
// GET /api/v1/fee-rules?fee_type=
func (h *RuleHandler) ListFeeRules(w http.ResponseWriter, r *http.Request) {
	feeType := models.FeeType(r.URL.Query().Get("fee_type"))
	if !feeType.Valid() {
		BadRequest(w, "missing or invalid fee_type")
		return
	}

	defs, err := h.feeRepo.FindActive(r.Context(), feeType)
	if err != nil {
		InternalError(w, "failed to list fee rules")
		return
	}

	JSON(w, http.StatusOK, defs)
}

// GetFeeRule returns one fee definition.
// GET /api/v1/fee-rules/{id}
func (h *RuleHandler) GetFeeRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid fee rule ID")
		return
	}

	def, err := h.feeRepo.GetByID(r.Context(), id)
	if err != nil {
		InternalError(w, "failed to get fee rule")
		return
	}

	if def == nil {
		NotFound(w, "fee rule not found")
		return
	}

	JSON(w, http.StatusOK, def)
}

// ListDiscountRules returns the active discount rules relevant to a fee type.
// GET /api/v1/discount-rules?fee_type=
func (h *RuleHandler) ListDiscountRules(w http.ResponseWriter, r *http.Request) {
	feeType := models.FeeType(r.URL.Query().Get("fee_type"))
	if !feeType.Valid() {
		BadRequest(w, "missing or invalid fee_type")
		return
	}

	rules, err := h.discountRepo.FindActive(r.Context(), feeType)
	if err != nil {
		InternalError(w, "failed to list discount rules")
		return
	}

	JSON(w, http.StatusOK, rules)
}

// GetDiscountRule returns one discount rule.
// GET /api/v1/discount-rules/{id}
func (h *RuleHandler) GetDiscountRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid discount rule ID")
		return
	}

	rule, err := h.discountRepo.GetByID(r.Context(), id)
	if err != nil {
		InternalError(w, "failed to get discount rule")
		return
	}

	if rule == nil {
		NotFound(w, "discount rule not found")
		return
	}

	JSON(w, http.StatusOK, rule)
}

// ListRegions returns all configured regions.
// GET /api/v1/regions
func (h *RuleHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.regionRepo.List(r.Context())
	if err != nil {
		InternalError(w, "failed to list regions")
		return
	}

	JSON(w, http.StatusOK, regions)
}

// ListRegionCountries returns the countries mapped to a region.
// GET /api/v1/regions/{id}/countries
func (h *RuleHandler) ListRegionCountries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid region ID")
		return
	}

	countries, err := h.regionRepo.ListCountries(r.Context(), id)
	if err != nil {
		InternalError(w, "failed to list countries")
		return
	}

	JSON(w, http.StatusOK, countries)
}
