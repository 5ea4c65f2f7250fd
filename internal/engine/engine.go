package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tariff/internal/metrics"
	"tariff/internal/models"
)

// FeeRuleSource provides active fee definitions for one fee type, ordered by
// creation time. Creation order is the documented tie-break when several
// definitions match a single request.
type FeeRuleSource interface {
	FindActive(ctx context.Context, feeType models.FeeType) ([]*models.FeeDefinition, error)
}

// DiscountRuleSource provides active discount rules and the atomic usage
// reservation the apply step depends on.
type DiscountRuleSource interface {
	FindActive(ctx context.Context, feeType models.FeeType) ([]*models.DiscountRule, error)

	// IncrementUsageIfBelowLimit increments the rule's usage count as a
	// single conditional write. It returns false when the limit was already
	// reached, which callers must treat as "do not apply this discount".
	IncrementUsageIfBelowLimit(ctx context.Context, id uuid.UUID) (bool, error)
}

// RegionSource maps a country code to its owning region. A nil region with a
// nil error means the country is unknown.
type RegionSource interface {
	FindRegionForCountry(ctx context.Context, countryCode string) (*uuid.UUID, error)
}

// AuditSink durably stores a calculation record.
type AuditSink interface {
	Record(ctx context.Context, rec *models.CalculationRecord) error
}

// Engine resolves a calculation request into a final fee with an auditable
// breakdown. It holds no per-request state and is safe for concurrent use;
// the only shared mutable state is discount usage counts, which live behind
// DiscountRuleSource's conditional increment.
type Engine struct {
	feeRules  FeeRuleSource
	discounts DiscountRuleSource
	regions   RegionSource
	audit     AuditSink
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a new engine.
func New(feeRules FeeRuleSource, discounts DiscountRuleSource, regions RegionSource, audit AuditSink, logger *zap.Logger) *Engine {
	return &Engine{
		feeRules:  feeRules,
		discounts: discounts,
		regions:   regions,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// Calculate computes the fee owed for one request: match fee definitions,
// aggregate the gross fee, apply matching discounts in order, then record the
// result for audit. The returned result is never mutated after this call.
func (e *Engine) Calculate(ctx context.Context, req models.CalculationRequest) (*models.FeeCalculationResult, error) {
	start := time.Now()
	defer func() {
		metrics.CalculationDuration.Observe(time.Since(start).Seconds())
	}()

	if err := validateRequest(req); err != nil {
		metrics.CalculationsTotal.WithLabelValues(string(req.FeeType), "invalid").Inc()
		return nil, err
	}

	now := e.now()

	regionID, unresolved, err := e.resolveRegion(ctx, req)
	if err != nil {
		metrics.CalculationsTotal.WithLabelValues(string(req.FeeType), "error").Inc()
		return nil, err
	}

	candidates, err := e.feeRules.FindActive(ctx, req.FeeType)
	if err != nil {
		metrics.CalculationsTotal.WithLabelValues(string(req.FeeType), "error").Inc()
		return nil, fmt.Errorf("load fee definitions: %w", err)
	}
	matched := matchFeeDefinitions(candidates, req, regionID, now)

	// Zero matched definitions yields a zero fee rather than an error.
	feeAmount, appliedFees, steps := aggregateFees(matched, req.BaseAmount)

	discountAmount := decimal.Zero
	appliedDiscounts := make([]uuid.UUID, 0)
	if feeAmount.IsPositive() {
		discountCandidates, err := e.discounts.FindActive(ctx, req.FeeType)
		if err != nil {
			metrics.CalculationsTotal.WithLabelValues(string(req.FeeType), "error").Inc()
			return nil, fmt.Errorf("load discount rules: %w", err)
		}
		matchedDiscounts := matchDiscountRules(discountCandidates, req, regionID, now)

		var discountSteps []models.CalculationStep
		discountAmount, appliedDiscounts, discountSteps, err = e.applyDiscounts(ctx, matchedDiscounts, feeAmount)
		if err != nil {
			metrics.CalculationsTotal.WithLabelValues(string(req.FeeType), "error").Inc()
			return nil, err
		}
		steps = append(steps, discountSteps...)
	}

	finalFee := feeAmount.Sub(discountAmount)
	if finalFee.IsNegative() {
		finalFee = decimal.Zero
	}

	result := &models.FeeCalculationResult{
		BaseAmount:       req.BaseAmount,
		FeeAmount:        feeAmount,
		DiscountAmount:   discountAmount,
		FinalFeeAmount:   finalFee,
		Currency:         req.Currency,
		RegionID:         regionID,
		RegionUnresolved: unresolved,
		AppliedFeeRules:  appliedFees,
		AppliedDiscounts: appliedDiscounts,
		Steps:            steps,
	}

	e.record(ctx, req, result, now)

	metrics.CalculationsTotal.WithLabelValues(string(req.FeeType), "ok").Inc()
	return result, nil
}

// resolveRegion returns the region scoping the request. A region supplied on
// the request wins; otherwise the country is looked up. An unknown country is
// not fatal: region-scoped rules are simply excluded and the result is
// flagged for visibility.
func (e *Engine) resolveRegion(ctx context.Context, req models.CalculationRequest) (*uuid.UUID, bool, error) {
	if req.RegionID != nil {
		return req.RegionID, false, nil
	}

	regionID, err := e.regions.FindRegionForCountry(ctx, req.CountryCode)
	if err != nil {
		return nil, false, fmt.Errorf("resolve region for %s: %w", req.CountryCode, err)
	}
	if regionID == nil {
		e.logger.Warn("no region mapping for country",
			zap.String("country_code", req.CountryCode),
			zap.String("user_id", req.UserID.String()),
		)
		return nil, true, nil
	}
	return regionID, false, nil
}

func validateRequest(req models.CalculationRequest) error {
	switch {
	case req.UserID == uuid.Nil:
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	case !req.FeeType.Valid():
		return fmt.Errorf("%w: unknown fee type %q", ErrInvalidRequest, req.FeeType)
	case !req.AccountType.Valid():
		return fmt.Errorf("%w: unknown account type %q", ErrInvalidRequest, req.AccountType)
	case !req.BaseAmount.IsPositive():
		return fmt.Errorf("%w: base amount must be positive, got %s", ErrInvalidRequest, req.BaseAmount)
	case req.Currency == "":
		return fmt.Errorf("%w: currency is required", ErrInvalidRequest)
	case req.CountryCode == "":
		return fmt.Errorf("%w: country code is required", ErrInvalidRequest)
	}
	return nil
}
