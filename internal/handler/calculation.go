package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tariff/internal/cache"
	"tariff/internal/engine"
	"tariff/internal/ledger"
	"tariff/internal/metrics"
	"tariff/internal/models"
	"tariff/internal/repository"
)

// CalculationHandler handles fee calculation endpoints.
type CalculationHandler struct {
	engine       *engine.Engine
	calcRepo     *repository.CalculationRepository
	cacheClient  *cache.Client
	ledgerClient *ledger.Client
	logger       *zap.Logger
	rateLimit    int
	resultTTL    time.Duration
}

// CalculationHandlerConfig holds calculation handler dependencies. Cache and
// ledger clients are optional; the handler degrades gracefully without them.
type CalculationHandlerConfig struct {
	Engine       *engine.Engine
	CalcRepo     *repository.CalculationRepository
	CacheClient  *cache.Client
	LedgerClient *ledger.Client
	Logger       *zap.Logger
	RateLimit    int
	ResultTTL    time.Duration
}

// NewCalculationHandler creates a new calculation handler.
func NewCalculationHandler(cfg CalculationHandlerConfig) *CalculationHandler {
	return &CalculationHandler{
		engine:       cfg.Engine,
		calcRepo:     cfg.CalcRepo,
		cacheClient:  cfg.CacheClient,
		ledgerClient: cfg.LedgerClient,
		logger:       cfg.Logger,
		rateLimit:    cfg.RateLimit,
		resultTTL:    cfg.ResultTTL,
	}
}

// CalculateRequest represents a fee calculation request.
type CalculateRequest struct {
	UserID        uuid.UUID  `json:"user_id"`
	AccountType   string     `json:"account_type"`
	FeeType       string     `json:"fee_type"`
	FeeSubType    *string    `json:"fee_sub_type,omitempty"`
	FeeMethod     *string    `json:"fee_method,omitempty"`
	BaseAmount    string     `json:"base_amount"`
	Currency      string     `json:"currency"`
	CountryCode   string     `json:"country_code"`
	RegionID      *uuid.UUID `json:"region_id,omitempty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

// Calculate computes the fee for one request.
// POST /api/v1/calculations
func (h *CalculationHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	baseAmount, err := decimal.NewFromString(req.BaseAmount)
	if err != nil {
		BadRequest(w, "invalid base_amount")
		return
	}

	if h.cacheClient != nil && h.rateLimit > 0 {
		allowed, err := h.cacheClient.CheckRateLimit(r.Context(), req.UserID.String(), h.rateLimit)
		if err != nil {
			h.logger.Warn("rate limit check failed", zap.Error(err))
		} else if !allowed {
			metrics.HTTPRequestsTotal.WithLabelValues("POST", "/calculations", "429").Inc()
			TooManyRequests(w, "calculation rate limit exceeded")
			return
		}
	}

	// Replay a previously computed result for the same transaction.
	if req.TransactionID != nil && h.cacheClient != nil {
		if cached, err := h.cacheClient.GetCalculationResult(r.Context(), req.TransactionID.String()); err == nil && cached != nil {
			var result models.FeeCalculationResult
			if err := json.Unmarshal(cached, &result); err == nil {
				metrics.HTTPRequestsTotal.WithLabelValues("POST", "/calculations", "200").Inc()
				JSON(w, http.StatusOK, &result)
				return
			}
		}
	}

	calcReq := models.CalculationRequest{
		UserID:        req.UserID,
		AccountType:   models.AccountType(req.AccountType),
		FeeType:       models.FeeType(req.FeeType),
		FeeSubType:    req.FeeSubType,
		FeeMethod:     req.FeeMethod,
		BaseAmount:    baseAmount,
		Currency:      req.Currency,
		CountryCode:   req.CountryCode,
		RegionID:      req.RegionID,
		TransactionID: req.TransactionID,
	}

	result, err := h.engine.Calculate(r.Context(), calcReq)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			metrics.HTTPRequestsTotal.WithLabelValues("POST", "/calculations", "400").Inc()
			BadRequest(w, err.Error())
			return
		}
		h.logger.Error("fee calculation failed", zap.Error(err))
		metrics.HTTPRequestsTotal.WithLabelValues("POST", "/calculations", "500").Inc()
		InternalError(w, "failed to calculate fee")
		return
	}

	if req.TransactionID != nil {
		h.storeResult(r, req.TransactionID.String(), result)
		h.postToLedger(req.UserID, *req.TransactionID, result)
	}

	metrics.HTTPRequestsTotal.WithLabelValues("POST", "/calculations", "200").Inc()
	JSON(w, http.StatusOK, result)
}

// storeResult caches the result for idempotent replay. Best-effort: a
// replay miss just recomputes, which is safe because the engine is
// deterministic for a fixed rule set.
func (h *CalculationHandler) storeResult(r *http.Request, transactionID string, result *models.FeeCalculationResult) {
	if h.cacheClient == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := h.cacheClient.SetCalculationResult(r.Context(), transactionID, payload, h.resultTTL); err != nil {
		h.logger.Debug("calculation result not cached", zap.Error(err))
	}
}

// postToLedger books the collected fee into the revenue ledger. Best-effort
// like the audit sink: a failure is logged and counted, never surfaced.
func (h *CalculationHandler) postToLedger(userID, transactionID uuid.UUID, result *models.FeeCalculationResult) {
	if h.ledgerClient == nil || !result.FinalFeeAmount.IsPositive() {
		return
	}

	finalFee := minorUnits(result.FinalFeeAmount)
	discount := minorUnits(result.DiscountAmount)

	if err := h.ledgerClient.PostFeeCollection(userID, transactionID, result.Currency, finalFee, discount); err != nil {
		metrics.LedgerPostFailures.Inc()
		h.logger.Error("fee revenue posting failed",
			zap.Error(err),
			zap.String("transaction_id", transactionID.String()),
		)
	}
}

// minorUnits converts a decimal amount to integer minor units, assuming a
// two-decimal currency exponent.
func minorUnits(amount decimal.Decimal) uint64 {
	return uint64(amount.Shift(2).Round(0).IntPart())
}

// GetCalculation returns one audit record.
// GET /api/v1/calculations/{id}
func (h *CalculationHandler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		BadRequest(w, "invalid calculation ID")
		return
	}

	rec, err := h.calcRepo.GetByID(r.Context(), id)
	if err != nil {
		InternalError(w, "failed to get calculation")
		return
	}

	if rec == nil {
		NotFound(w, "calculation not found")
		return
	}

	JSON(w, http.StatusOK, rec)
}

// ListByUser returns audit records for a user.
// GET /api/v1/users/{id}/calculations
func (h *CalculationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		BadRequest(w, "invalid user ID")
		return
	}

	filter := models.CalculationFilter{
		Limit:  100,
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	if feeType := r.URL.Query().Get("fee_type"); feeType != "" {
		ft := models.FeeType(feeType)
		if !ft.Valid() {
			BadRequest(w, "invalid fee_type")
			return
		}
		filter.FeeType = &ft
	}

	records, err := h.calcRepo.ListByUser(r.Context(), id, filter)
	if err != nil {
		InternalError(w, "failed to list calculations")
		return
	}

	JSON(w, http.StatusOK, records)
}
