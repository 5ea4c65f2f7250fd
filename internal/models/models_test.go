package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFeeDefinitionIsEffectiveAt(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 6, 0)

	openEnded := FeeDefinition{EffectiveFrom: from}
	assert.False(t, openEnded.IsEffectiveAt(from.Add(-time.Second)))
	assert.True(t, openEnded.IsEffectiveAt(from))
	assert.True(t, openEnded.IsEffectiveAt(from.AddDate(10, 0, 0)))

	bounded := FeeDefinition{EffectiveFrom: from, EffectiveTo: &to}
	assert.True(t, bounded.IsEffectiveAt(to))
	assert.False(t, bounded.IsEffectiveAt(to.Add(time.Second)))
}

func TestFeeDefinitionValidate(t *testing.T) {
	capAmount := d("3")
	minFee := d("5")

	def := FeeDefinition{
		FeeType:   FeeTypeTransfer,
		ValueType: FeeValueFlat,
		Value:     d("2"),
	}
	assert.NoError(t, def.Validate())

	def.Value = decimal.Zero
	assert.Error(t, def.Validate())

	def.Value = d("2")
	def.Cap = &capAmount
	def.MinFee = &minFee
	assert.Error(t, def.Validate(), "minimum above cap is inconsistent")

	def.MinFee = &capAmount
	assert.NoError(t, def.Validate())
}

func TestDiscountRuleUsageHeadroom(t *testing.T) {
	limit := 3

	unlimited := DiscountRule{UsageCount: 1000}
	assert.True(t, unlimited.HasUsageHeadroom())

	limited := DiscountRule{UsageLimit: &limit, UsageCount: 2}
	assert.True(t, limited.HasUsageHeadroom())

	limited.UsageCount = 3
	assert.False(t, limited.HasUsageHeadroom())
}

func TestDiscountRuleAppliesToAmount(t *testing.T) {
	minAmount := d("100")
	maxAmount := d("500")
	rule := DiscountRule{
		MinTransactionAmount: &minAmount,
		MaxTransactionAmount: &maxAmount,
	}

	assert.False(t, rule.AppliesToAmount(d("99.99")))
	assert.True(t, rule.AppliesToAmount(d("100")))
	assert.True(t, rule.AppliesToAmount(d("500")))
	assert.False(t, rule.AppliesToAmount(d("500.01")))
}

func TestAppliesToCountry(t *testing.T) {
	everywhere := FeeDefinition{}
	assert.True(t, everywhere.AppliesToCountry("JP"))

	scoped := DiscountRule{AppliesToCountries: []string{"NG", "KE"}}
	assert.True(t, scoped.AppliesToCountry("KE"))
	assert.False(t, scoped.AppliesToCountry("US"))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, FeeTypeWithdrawal.Valid())
	assert.False(t, FeeType("REFUND").Valid())

	assert.True(t, DiscountFlatOff.Valid())
	assert.False(t, DiscountValueType("BOGO").Valid())

	assert.True(t, AccountTypeBusiness.Valid())
	assert.False(t, AccountType("").Valid())
}
