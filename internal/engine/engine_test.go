package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tariff/internal/models"
)

var testTime = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// --- fakes ---

type fakeFeeRules struct {
	defs []*models.FeeDefinition
	err  error
}

func (f *fakeFeeRules) FindActive(_ context.Context, feeType models.FeeType) ([]*models.FeeDefinition, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.FeeDefinition
	for _, d := range f.defs {
		if d.FeeType == feeType {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeDiscounts struct {
	mu    sync.Mutex
	rules []*models.DiscountRule

	findCalls     int
	incrementErr  error
	alwaysAtLimit bool
}

func (f *fakeDiscounts) FindActive(_ context.Context, feeType models.FeeType) ([]*models.DiscountRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++

	var out []*models.DiscountRule
	for _, r := range f.rules {
		if r.AppliesToFeeType == nil || *r.AppliesToFeeType == feeType {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeDiscounts) IncrementUsageIfBelowLimit(_ context.Context, id uuid.UUID) (bool, error) {
	if f.incrementErr != nil {
		return false, f.incrementErr
	}
	if f.alwaysAtLimit {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules {
		if r.ID != id {
			continue
		}
		if r.UsageLimit != nil && r.UsageCount >= *r.UsageLimit {
			return false, nil
		}
		r.UsageCount++
		return true, nil
	}
	return false, nil
}

type fakeRegions struct {
	byCountry map[string]uuid.UUID
}

func (f *fakeRegions) FindRegionForCountry(_ context.Context, code string) (*uuid.UUID, error) {
	if id, ok := f.byCountry[code]; ok {
		return &id, nil
	}
	return nil, nil
}

type fakeAudit struct {
	mu       sync.Mutex
	records  []*models.CalculationRecord
	failures int
}

func (f *fakeAudit) Record(_ context.Context, rec *models.CalculationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("audit store unavailable")
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// --- builders ---

func feeDef(mut func(*models.FeeDefinition)) *models.FeeDefinition {
	d := &models.FeeDefinition{
		ID:            uuid.New(),
		FeeType:       models.FeeTypeTransfer,
		ValueType:     models.FeeValuePercentage,
		Value:         dec("2"),
		Currency:      "USD",
		IsActive:      true,
		EffectiveFrom: testTime.Add(-24 * time.Hour),
		CreatedAt:     testTime.Add(-24 * time.Hour),
	}
	if mut != nil {
		mut(d)
	}
	return d
}

func discountRule(mut func(*models.DiscountRule)) *models.DiscountRule {
	r := &models.DiscountRule{
		ID:           uuid.New(),
		DiscountType: models.DiscountPercentageOff,
		Value:        dec("10"),
		StartDate:    testTime.Add(-24 * time.Hour),
		IsActive:     true,
		CreatedAt:    testTime.Add(-24 * time.Hour),
	}
	if mut != nil {
		mut(r)
	}
	return r
}

func transferRequest() models.CalculationRequest {
	return models.CalculationRequest{
		UserID:      uuid.New(),
		AccountType: models.AccountTypePersonal,
		FeeType:     models.FeeTypeTransfer,
		BaseAmount:  dec("1000"),
		Currency:    "USD",
		CountryCode: "US",
	}
}

type testEnv struct {
	engine    *Engine
	feeRules  *fakeFeeRules
	discounts *fakeDiscounts
	regions   *fakeRegions
	audit     *fakeAudit
}

func newTestEnv(defs []*models.FeeDefinition, rules []*models.DiscountRule) *testEnv {
	env := &testEnv{
		feeRules:  &fakeFeeRules{defs: defs},
		discounts: &fakeDiscounts{rules: rules},
		regions:   &fakeRegions{byCountry: map[string]uuid.UUID{}},
		audit:     &fakeAudit{},
	}
	env.engine = New(env.feeRules, env.discounts, env.regions, env.audit, zap.NewNop())
	env.engine.now = func() time.Time { return testTime }
	return env
}

// --- tests ---

func TestCalculatePercentageFee(t *testing.T) {
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, nil)

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	assert.True(t, res.FeeAmount.Equal(dec("20")), "fee = %s", res.FeeAmount)
	assert.True(t, res.DiscountAmount.IsZero())
	assert.True(t, res.FinalFeeAmount.Equal(dec("20")))
	require.Len(t, res.Steps, 1)
	assert.Equal(t, models.StepKindFee, res.Steps[0].Kind)
	assert.Equal(t, models.BoundNone, res.Steps[0].BoundHit)
}

func TestCalculatePercentageFeeWithDiscount(t *testing.T) {
	env := newTestEnv(
		[]*models.FeeDefinition{feeDef(nil)},
		[]*models.DiscountRule{discountRule(nil)},
	)

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	assert.True(t, res.FeeAmount.Equal(dec("20")))
	assert.True(t, res.DiscountAmount.Equal(dec("2")), "discount = %s", res.DiscountAmount)
	assert.True(t, res.FinalFeeAmount.Equal(dec("18")))
	assert.Len(t, res.AppliedDiscounts, 1)
}

func TestCalculateFlatFeeCap(t *testing.T) {
	def := feeDef(func(d *models.FeeDefinition) {
		d.ValueType = models.FeeValueFlat
		d.Value = dec("5")
		d.Cap = decPtr("3")
	})
	env := newTestEnv([]*models.FeeDefinition{def}, nil)

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	assert.True(t, res.FeeAmount.Equal(dec("3")), "fee = %s", res.FeeAmount)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, models.BoundCap, res.Steps[0].BoundHit)
}

func TestCalculateAdditiveFees(t *testing.T) {
	flat := feeDef(func(d *models.FeeDefinition) {
		d.ValueType = models.FeeValueFlat
		d.Value = dec("5")
	})
	pct := feeDef(func(d *models.FeeDefinition) {
		d.Value = dec("1")
	})
	env := newTestEnv([]*models.FeeDefinition{flat, pct}, nil)

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	// 5 flat + 1% of 1000, summed not maxed.
	assert.True(t, res.FeeAmount.Equal(dec("15")), "fee = %s", res.FeeAmount)
	assert.Len(t, res.AppliedFeeRules, 2)
	assert.Len(t, res.Steps, 2)
}

func TestCalculateMinFeeOverridesCap(t *testing.T) {
	def := feeDef(func(d *models.FeeDefinition) {
		d.Value = dec("1")
		d.Cap = decPtr("0.5")
		d.MinFee = decPtr("2")
	})
	env := newTestEnv([]*models.FeeDefinition{def}, nil)

	req := transferRequest()
	req.BaseAmount = dec("100")

	res, err := env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)

	// 1% of 100 = 1, capped to 0.5, then lifted to the 2 minimum.
	assert.True(t, res.FeeAmount.Equal(dec("2")), "fee = %s", res.FeeAmount)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, models.BoundMinFee, res.Steps[0].BoundHit)
}

func TestCalculateMaxDiscountClamp(t *testing.T) {
	rule := discountRule(func(r *models.DiscountRule) {
		r.Value = dec("50")
		r.MaxDiscount = decPtr("5")
	})
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, []*models.DiscountRule{rule})

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	// 50% of the 20 fee is 10, clamped to the 5 max.
	assert.True(t, res.DiscountAmount.Equal(dec("5")), "discount = %s", res.DiscountAmount)
	assert.True(t, res.FinalFeeAmount.Equal(dec("15")))
	require.Len(t, res.Steps, 2)
	assert.Equal(t, models.BoundMaxDiscount, res.Steps[1].BoundHit)
}

func TestCalculateDiscountCannotExceedFee(t *testing.T) {
	rule := discountRule(func(r *models.DiscountRule) {
		r.DiscountType = models.DiscountFlatOff
		r.Value = dec("50")
	})
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, []*models.DiscountRule{rule})

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	assert.True(t, res.DiscountAmount.Equal(dec("20")))
	assert.True(t, res.FinalFeeAmount.IsZero())
	assert.False(t, res.FinalFeeAmount.IsNegative())
	require.Len(t, res.Steps, 2)
	assert.Equal(t, models.BoundFeeFloor, res.Steps[1].BoundHit)
}

func TestCalculatePercentageDiscountUsesGrossFee(t *testing.T) {
	first := discountRule(func(r *models.DiscountRule) {
		r.DiscountType = models.DiscountFlatOff
		r.Value = dec("10")
		r.CreatedAt = testTime.Add(-48 * time.Hour)
	})
	second := discountRule(func(r *models.DiscountRule) {
		r.Value = dec("50")
	})
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, []*models.DiscountRule{first, second})

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	// The 50% rule discounts the original 20 fee, not the 10 residual.
	assert.True(t, res.DiscountAmount.Equal(dec("20")), "discount = %s", res.DiscountAmount)
	assert.True(t, res.FinalFeeAmount.IsZero())
}

func TestCalculateDeterministic(t *testing.T) {
	env := newTestEnv(
		[]*models.FeeDefinition{feeDef(nil)},
		[]*models.DiscountRule{discountRule(nil)},
	)

	req := transferRequest()
	first, err := env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)
	second, err := env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, first.FeeAmount.Equal(second.FeeAmount))
	assert.True(t, first.DiscountAmount.Equal(second.DiscountAmount))
	assert.True(t, first.FinalFeeAmount.Equal(second.FinalFeeAmount))
	assert.Equal(t, first.AppliedFeeRules, second.AppliedFeeRules)
	assert.Equal(t, first.AppliedDiscounts, second.AppliedDiscounts)
}

func TestCalculateNoMatchingRulesYieldsZeroFee(t *testing.T) {
	env := newTestEnv(nil, []*models.DiscountRule{discountRule(nil)})

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	assert.True(t, res.FeeAmount.IsZero())
	assert.True(t, res.FinalFeeAmount.IsZero())
	assert.Empty(t, res.AppliedFeeRules)
	// A zero fee short-circuits the discount phase entirely.
	assert.Equal(t, 0, env.discounts.findCalls)
	assert.Equal(t, 1, env.audit.count())
}

func TestCalculateInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*models.CalculationRequest)
	}{
		{"missing user", func(r *models.CalculationRequest) { r.UserID = uuid.Nil }},
		{"unknown fee type", func(r *models.CalculationRequest) { r.FeeType = "BRIBE" }},
		{"unknown account type", func(r *models.CalculationRequest) { r.AccountType = "JOINT" }},
		{"zero amount", func(r *models.CalculationRequest) { r.BaseAmount = decimal.Zero }},
		{"negative amount", func(r *models.CalculationRequest) { r.BaseAmount = dec("-5") }},
		{"missing currency", func(r *models.CalculationRequest) { r.Currency = "" }},
		{"missing country", func(r *models.CalculationRequest) { r.CountryCode = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, nil)

			req := transferRequest()
			tt.mut(&req)

			res, err := env.engine.Calculate(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Nil(t, res)
			assert.Equal(t, 0, env.audit.count(), "invalid requests must not be audited")
		})
	}
}

func TestCalculateUnknownCountryExcludesRegionalRules(t *testing.T) {
	regionID := uuid.New()
	regional := feeDef(func(d *models.FeeDefinition) {
		d.RegionID = &regionID
	})
	global := feeDef(func(d *models.FeeDefinition) {
		d.ValueType = models.FeeValueFlat
		d.Value = dec("1")
	})
	env := newTestEnv([]*models.FeeDefinition{regional, global}, nil)

	req := transferRequest()
	req.CountryCode = "ZZ"

	res, err := env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.RegionUnresolved)
	assert.Nil(t, res.RegionID)
	assert.Equal(t, []uuid.UUID{global.ID}, res.AppliedFeeRules)
	assert.True(t, res.FeeAmount.Equal(dec("1")))
}

func TestCalculateRequestRegionOverridesCountryLookup(t *testing.T) {
	requestRegion := uuid.New()
	lookupRegion := uuid.New()

	regional := feeDef(func(d *models.FeeDefinition) {
		d.RegionID = &requestRegion
	})
	env := newTestEnv([]*models.FeeDefinition{regional}, nil)
	env.regions.byCountry["US"] = lookupRegion

	req := transferRequest()
	req.RegionID = &requestRegion

	res, err := env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, &requestRegion, res.RegionID)
	assert.False(t, res.RegionUnresolved)
	assert.Len(t, res.AppliedFeeRules, 1)
}

func TestCalculateSkipsDiscountAtUsageLimit(t *testing.T) {
	rule := discountRule(func(r *models.DiscountRule) {
		r.UsageLimit = intPtr(100)
	})
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, []*models.DiscountRule{rule})
	env.discounts.alwaysAtLimit = true

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)

	// The limit raced away between matching and applying; the fee stands.
	assert.True(t, res.DiscountAmount.IsZero())
	assert.True(t, res.FinalFeeAmount.Equal(dec("20")))
	assert.Empty(t, res.AppliedDiscounts)
}

func TestCalculateUsageLimitUnderConcurrency(t *testing.T) {
	rule := discountRule(func(r *models.DiscountRule) {
		r.UsageLimit = intPtr(1)
	})
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, []*models.DiscountRule{rule})

	const callers = 8
	results := make([]*models.FeeCalculationResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.engine.Calculate(context.Background(), transferRequest())
		}(i)
	}
	wg.Wait()

	discounted := 0
	for i, res := range results {
		require.NoError(t, errs[i])
		if len(res.AppliedDiscounts) > 0 {
			discounted++
		}
	}
	assert.Equal(t, 1, discounted, "a single usage slot admits exactly one application")
	assert.Equal(t, 1, env.discounts.rules[0].UsageCount)
}

func TestCalculateDiscountScopedToAccountType(t *testing.T) {
	business := models.AccountTypeBusiness
	rule := discountRule(func(r *models.DiscountRule) {
		r.AppliesToAccountType = &business
	})
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, []*models.DiscountRule{rule})

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.IsZero())

	req := transferRequest()
	req.AccountType = models.AccountTypeBusiness
	res, err = env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.Equal(dec("2")))
}

func TestCalculateDiscountAmountBounds(t *testing.T) {
	rule := discountRule(func(r *models.DiscountRule) {
		r.MinTransactionAmount = decPtr("500")
		r.MaxTransactionAmount = decPtr("2000")
	})
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, []*models.DiscountRule{rule})

	req := transferRequest()
	req.BaseAmount = dec("100")
	res, err := env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.IsZero(), "below the minimum transaction amount")

	res, err = env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.Equal(dec("2")), "within bounds")
}

func TestCalculateExpiredFeeDefinitionExcluded(t *testing.T) {
	expired := feeDef(func(d *models.FeeDefinition) {
		end := testTime.Add(-time.Hour)
		d.EffectiveTo = &end
	})
	env := newTestEnv([]*models.FeeDefinition{expired}, nil)

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)
	assert.True(t, res.FeeAmount.IsZero())
	assert.Empty(t, res.AppliedFeeRules)
}

func TestCalculateAuditRecordContents(t *testing.T) {
	txID := uuid.New()
	env := newTestEnv(
		[]*models.FeeDefinition{feeDef(nil)},
		[]*models.DiscountRule{discountRule(nil)},
	)

	req := transferRequest()
	req.TransactionID = &txID

	res, err := env.engine.Calculate(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, env.audit.count())
	rec := env.audit.records[0]

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, req.UserID, rec.UserID)
	assert.Equal(t, &txID, rec.TransactionID)
	assert.Equal(t, req.FeeType, rec.FeeType)
	assert.True(t, rec.BaseAmount.Equal(req.BaseAmount))
	assert.True(t, rec.FeeAmount.Equal(res.FeeAmount))
	assert.True(t, rec.DiscountAmount.Equal(res.DiscountAmount))
	assert.True(t, rec.FinalFeeAmount.Equal(res.FinalFeeAmount))
	assert.Equal(t, res.AppliedFeeRules, rec.AppliedFeeRules)
	assert.Equal(t, res.AppliedDiscounts, rec.AppliedDiscounts)
	assert.Len(t, rec.Details, 2)
	assert.Equal(t, testTime, rec.CreatedAt)
}

func TestCalculateAuditRetriesTransientFailure(t *testing.T) {
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, nil)
	env.audit.failures = 2

	_, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, env.audit.count(), "third attempt must succeed")
}

func TestCalculateAuditFailureDoesNotFailResult(t *testing.T) {
	env := newTestEnv([]*models.FeeDefinition{feeDef(nil)}, nil)
	env.audit.failures = auditAttempts

	res, err := env.engine.Calculate(context.Background(), transferRequest())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.FeeAmount.Equal(dec("20")))
	assert.Equal(t, 0, env.audit.count())
}

func TestCalculateDiscountReservationErrorFails(t *testing.T) {
	env := newTestEnv(
		[]*models.FeeDefinition{feeDef(nil)},
		[]*models.DiscountRule{discountRule(nil)},
	)
	env.discounts.incrementErr = errors.New("connection reset")

	_, err := env.engine.Calculate(context.Background(), transferRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
}
