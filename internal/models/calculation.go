package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CalculationRequest describes one fee calculation to perform.
type CalculationRequest struct {
	UserID        uuid.UUID
	AccountType   AccountType
	FeeType       FeeType
	FeeSubType    *string
	FeeMethod     *string
	BaseAmount    decimal.Decimal
	Currency      string
	CountryCode   string
	RegionID      *uuid.UUID
	TransactionID *uuid.UUID
}

// StepKind distinguishes fee and discount entries in the step trail.
type StepKind string

const (
	StepKindFee      StepKind = "fee"
	StepKindDiscount StepKind = "discount"
)

// Bound names which clamp, if any, a step hit.
type Bound string

const (
	BoundNone        Bound = ""
	BoundCap         Bound = "cap"
	BoundMinFee      Bound = "min_fee"
	BoundMaxDiscount Bound = "max_discount"
	BoundFeeFloor    Bound = "fee_floor"
)

// CalculationStep records how a single rule contributed to the result.
type CalculationStep struct {
	RuleID    uuid.UUID       `json:"rule_id"`
	Kind      StepKind        `json:"kind"`
	ValueType string          `json:"value_type"`
	Value     decimal.Decimal `json:"value"`
	RawAmount decimal.Decimal `json:"raw_amount"`
	Amount    decimal.Decimal `json:"amount"`
	BoundHit  Bound           `json:"bound_hit,omitempty"`
}

// FeeCalculationResult is the outcome of one calculation. It is built once
// by the engine and never mutated afterward.
type FeeCalculationResult struct {
	BaseAmount       decimal.Decimal   `json:"base_amount"`
	FeeAmount        decimal.Decimal   `json:"fee_amount"`
	DiscountAmount   decimal.Decimal   `json:"discount_amount"`
	FinalFeeAmount   decimal.Decimal   `json:"final_fee_amount"`
	Currency         string            `json:"currency"`
	RegionID         *uuid.UUID        `json:"region_id,omitempty"`
	RegionUnresolved bool              `json:"region_unresolved,omitempty"`
	AppliedFeeRules  []uuid.UUID       `json:"applied_fee_rules"`
	AppliedDiscounts []uuid.UUID       `json:"applied_discounts"`
	Steps            []CalculationStep `json:"calculation_steps"`
}

// CalculationRecord is the append-only audit row persisted for every
// completed calculation. It is the system of record for dispute resolution.
type CalculationRecord struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	TransactionID    *uuid.UUID        `json:"transaction_id,omitempty"`
	FeeType          FeeType           `json:"fee_type"`
	FeeSubType       *string           `json:"fee_sub_type,omitempty"`
	FeeMethod        *string           `json:"fee_method,omitempty"`
	BaseAmount       decimal.Decimal   `json:"base_amount"`
	FeeAmount        decimal.Decimal   `json:"fee_amount"`
	DiscountAmount   decimal.Decimal   `json:"discount_amount"`
	FinalFeeAmount   decimal.Decimal   `json:"final_fee_amount"`
	Currency         string            `json:"currency"`
	RegionID         *uuid.UUID        `json:"region_id,omitempty"`
	RegionUnresolved bool              `json:"region_unresolved,omitempty"`
	CountryCode      string            `json:"country_code"`
	AppliedFeeRules  []uuid.UUID       `json:"applied_fee_rules"`
	AppliedDiscounts []uuid.UUID       `json:"applied_discounts"`
	Details          []CalculationStep `json:"calculation_details"`
	CreatedAt        time.Time         `json:"created_at"`
}

// CalculationFilter contains filter parameters for querying audit records.
type CalculationFilter struct {
	FeeType       *FeeType
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}
