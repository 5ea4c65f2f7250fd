package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountRule is a stored reduction rule applied to an already-computed fee.
type DiscountRule struct {
	ID                   uuid.UUID         `json:"id"`
	DiscountType         DiscountValueType `json:"discount_type"`
	Value                decimal.Decimal   `json:"value"`
	MaxDiscount          *decimal.Decimal  `json:"max_discount,omitempty"`
	AppliesToFeeType     *FeeType          `json:"applies_to_fee_type,omitempty"`
	AppliesToSubType     *string           `json:"applies_to_sub_type,omitempty"`
	AppliesToMethod      *string           `json:"applies_to_method,omitempty"`
	AppliesToAccountType *AccountType      `json:"applies_to_account_type,omitempty"`
	AppliesToCountries   []string          `json:"applies_to_countries"`
	RegionID             *uuid.UUID        `json:"region_id,omitempty"`
	MinTransactionAmount *decimal.Decimal  `json:"min_transaction_amount,omitempty"`
	MaxTransactionAmount *decimal.Decimal  `json:"max_transaction_amount,omitempty"`
	UsageLimit           *int              `json:"usage_limit,omitempty"`
	UsageCount           int               `json:"usage_count"`
	StartDate            time.Time         `json:"start_date"`
	EndDate              *time.Time        `json:"end_date,omitempty"`
	IsActive             bool              `json:"is_active"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// IsWithinWindow returns true if the rule's date window covers t.
func (d *DiscountRule) IsWithinWindow(t time.Time) bool {
	if t.Before(d.StartDate) {
		return false
	}
	if d.EndDate != nil && t.After(*d.EndDate) {
		return false
	}
	return true
}

// HasUsageHeadroom returns true if the rule can still be applied at least once.
func (d *DiscountRule) HasUsageHeadroom() bool {
	return d.UsageLimit == nil || d.UsageCount < *d.UsageLimit
}

// AppliesToAmount returns true if the base amount falls inside the rule's
// transaction amount bounds.
func (d *DiscountRule) AppliesToAmount(base decimal.Decimal) bool {
	if d.MinTransactionAmount != nil && base.LessThan(*d.MinTransactionAmount) {
		return false
	}
	if d.MaxTransactionAmount != nil && base.GreaterThan(*d.MaxTransactionAmount) {
		return false
	}
	return true
}

// AppliesToCountry returns true if the rule covers the given country.
// An empty country list means the rule applies everywhere.
func (d *DiscountRule) AppliesToCountry(code string) bool {
	if len(d.AppliesToCountries) == 0 {
		return true
	}
	for _, c := range d.AppliesToCountries {
		if c == code {
			return true
		}
	}
	return false
}

// Validate checks the rule's internal invariants.
func (d *DiscountRule) Validate() error {
	if !d.DiscountType.Valid() {
		return fmt.Errorf("unknown discount type %q", d.DiscountType)
	}
	if !d.Value.IsPositive() {
		return fmt.Errorf("value must be positive, got %s", d.Value)
	}
	if d.UsageLimit != nil && d.UsageCount > *d.UsageLimit {
		return fmt.Errorf("usage count %d exceeds limit %d", d.UsageCount, *d.UsageLimit)
	}
	return nil
}

// CreateDiscountRuleParams contains parameters for creating a discount rule.
type CreateDiscountRuleParams struct {
	DiscountType         DiscountValueType
	Value                decimal.Decimal
	MaxDiscount          *decimal.Decimal
	AppliesToFeeType     *FeeType
	AppliesToSubType     *string
	AppliesToMethod      *string
	AppliesToAccountType *AccountType
	AppliesToCountries   []string
	RegionID             *uuid.UUID
	MinTransactionAmount *decimal.Decimal
	MaxTransactionAmount *decimal.Decimal
	UsageLimit           *int
	StartDate            time.Time
	EndDate              *time.Time
}
