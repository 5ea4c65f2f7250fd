package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeDefinition is a stored pricing rule for one category of operation.
type FeeDefinition struct {
	ID            uuid.UUID        `json:"id"`
	FeeType       FeeType          `json:"fee_type"`
	FeeSubType    *string          `json:"fee_sub_type,omitempty"`
	FeeMethod     *string          `json:"fee_method,omitempty"`
	ValueType     FeeValueType     `json:"value_type"`
	Value         decimal.Decimal  `json:"value"`
	Cap           *decimal.Decimal `json:"cap,omitempty"`
	MinFee        *decimal.Decimal `json:"min_fee,omitempty"`
	Currency      string           `json:"currency"`
	RegionID      *uuid.UUID       `json:"region_id,omitempty"`
	CountryCodes  []string         `json:"country_codes"`
	IsActive      bool             `json:"is_active"`
	EffectiveFrom time.Time        `json:"effective_from"`
	EffectiveTo   *time.Time       `json:"effective_to,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsEffectiveAt returns true if the definition's validity window covers t.
// A nil EffectiveTo means the window is open-ended.
func (f *FeeDefinition) IsEffectiveAt(t time.Time) bool {
	if t.Before(f.EffectiveFrom) {
		return false
	}
	if f.EffectiveTo != nil && t.After(*f.EffectiveTo) {
		return false
	}
	return true
}

// AppliesToCountry returns true if the definition covers the given country.
// An empty country list means the definition applies everywhere.
func (f *FeeDefinition) AppliesToCountry(code string) bool {
	if len(f.CountryCodes) == 0 {
		return true
	}
	for _, c := range f.CountryCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Validate checks the definition's internal invariants.
func (f *FeeDefinition) Validate() error {
	if !f.FeeType.Valid() {
		return fmt.Errorf("unknown fee type %q", f.FeeType)
	}
	if !f.ValueType.Valid() {
		return fmt.Errorf("unknown value type %q", f.ValueType)
	}
	if !f.Value.IsPositive() {
		return fmt.Errorf("value must be positive, got %s", f.Value)
	}
	if f.Cap != nil && f.MinFee != nil && f.MinFee.GreaterThan(*f.Cap) {
		return fmt.Errorf("min fee %s exceeds cap %s", f.MinFee, f.Cap)
	}
	return nil
}

// CreateFeeDefinitionParams contains parameters for creating a fee definition.
type CreateFeeDefinitionParams struct {
	FeeType       FeeType
	FeeSubType    *string
	FeeMethod     *string
	ValueType     FeeValueType
	Value         decimal.Decimal
	Cap           *decimal.Decimal
	MinFee        *decimal.Decimal
	Currency      string
	RegionID      *uuid.UUID
	CountryCodes  []string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}
