package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tariff/internal/metrics"
	"tariff/internal/models"
)

// applyDiscounts walks the matched rules in order, maintaining a running
// total bounded by the gross fee. Percentage discounts are computed against
// the original gross fee, not a residual. Each application reserves a usage
// slot atomically first; losing that race skips the rule without failing the
// request.
func (e *Engine) applyDiscounts(ctx context.Context, rules []*models.DiscountRule, feeAmount decimal.Decimal) (decimal.Decimal, []uuid.UUID, []models.CalculationStep, error) {
	total := decimal.Zero
	applied := make([]uuid.UUID, 0, len(rules))
	steps := make([]models.CalculationStep, 0, len(rules))

	for _, r := range rules {
		remaining := feeAmount.Sub(total)
		if !remaining.IsPositive() {
			break
		}

		raw := r.Value
		if r.DiscountType == models.DiscountPercentageOff {
			raw = feeAmount.Mul(r.Value).Shift(-2)
		}

		amount := raw
		bound := models.BoundNone
		if r.MaxDiscount != nil && amount.GreaterThan(*r.MaxDiscount) {
			amount = *r.MaxDiscount
			bound = models.BoundMaxDiscount
		}
		if amount.GreaterThan(remaining) {
			amount = remaining
			bound = models.BoundFeeFloor
		}
		if !amount.IsPositive() {
			continue
		}

		ok, err := e.discounts.IncrementUsageIfBelowLimit(ctx, r.ID)
		if err != nil {
			return decimal.Zero, nil, nil, fmt.Errorf("reserve discount usage %s: %w", r.ID, err)
		}
		if !ok {
			// The limit was consumed between matching and applying.
			metrics.DiscountsSkippedOnLimit.Inc()
			e.logger.Info("discount usage limit reached, skipping",
				zap.String("rule_id", r.ID.String()),
			)
			continue
		}

		total = total.Add(amount)
		applied = append(applied, r.ID)
		steps = append(steps, models.CalculationStep{
			RuleID:    r.ID,
			Kind:      models.StepKindDiscount,
			ValueType: string(r.DiscountType),
			Value:     r.Value,
			RawAmount: raw,
			Amount:    amount,
			BoundHit:  bound,
		})
	}

	return total, applied, steps, nil
}
