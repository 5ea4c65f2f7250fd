package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tariff/internal/models"
)

// aggregateFees computes the gross fee: each matched definition contributes
// its clamped amount and contributions are summed, never maxed. One step is
// recorded per definition naming the bound that was hit, if any.
func aggregateFees(defs []*models.FeeDefinition, base decimal.Decimal) (decimal.Decimal, []uuid.UUID, []models.CalculationStep) {
	total := decimal.Zero
	applied := make([]uuid.UUID, 0, len(defs))
	steps := make([]models.CalculationStep, 0, len(defs))

	for _, d := range defs {
		raw := d.Value
		if d.ValueType == models.FeeValuePercentage {
			raw = base.Mul(d.Value).Shift(-2)
		}

		amount := raw
		bound := models.BoundNone
		if d.Cap != nil && amount.GreaterThan(*d.Cap) {
			amount = *d.Cap
			bound = models.BoundCap
		}
		// The minimum applies after the cap, so a min fee can override it.
		if d.MinFee != nil && amount.LessThan(*d.MinFee) {
			amount = *d.MinFee
			bound = models.BoundMinFee
		}

		total = total.Add(amount)
		applied = append(applied, d.ID)
		steps = append(steps, models.CalculationStep{
			RuleID:    d.ID,
			Kind:      models.StepKindFee,
			ValueType: string(d.ValueType),
			Value:     d.Value,
			RawAmount: raw,
			Amount:    amount,
			BoundHit:  bound,
		})
	}

	return total, applied, steps
}
