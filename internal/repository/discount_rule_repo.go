package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tariff/internal/models"
)

// DiscountRuleRepository handles discount rule data access. Usage counts are
// the one piece of engine-mutated state; everything else is written by the
// admin CRUD surface only.
type DiscountRuleRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRuleRepository creates a new discount rule repository.
func NewDiscountRuleRepository(pool *pgxpool.Pool) *DiscountRuleRepository {
	return &DiscountRuleRepository{pool: pool}
}

const discountRuleColumns = `id, discount_type, value, max_discount, applies_to_fee_type, applies_to_sub_type,
		applies_to_method, applies_to_account_type, applies_to_countries, region_id,
		min_transaction_amount, max_transaction_amount, usage_limit, usage_count,
		start_date, end_date, is_active, created_at, updated_at`

// Create creates a new discount rule.
func (r *DiscountRuleRepository) Create(ctx context.Context, params models.CreateDiscountRuleParams) (*models.DiscountRule, error) {
	query := `
		INSERT INTO discount_rules (
			discount_type, value, max_discount, applies_to_fee_type, applies_to_sub_type,
			applies_to_method, applies_to_account_type, applies_to_countries, region_id,
			min_transaction_amount, max_transaction_amount, usage_limit, start_date, end_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + discountRuleColumns

	row := r.pool.QueryRow(ctx, query,
		params.DiscountType,
		params.Value,
		nullDecimal(params.MaxDiscount),
		params.AppliesToFeeType,
		params.AppliesToSubType,
		params.AppliesToMethod,
		params.AppliesToAccountType,
		params.AppliesToCountries,
		params.RegionID,
		nullDecimal(params.MinTransactionAmount),
		nullDecimal(params.MaxTransactionAmount),
		params.UsageLimit,
		params.StartDate,
		params.EndDate,
	)

	return r.scan(row)
}

// GetByID retrieves a discount rule by ID.
func (r *DiscountRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DiscountRule, error) {
	query := `
		SELECT ` + discountRuleColumns + `
		FROM discount_rules
		WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	rule, err := r.scan(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rule, err
}

// FindActive retrieves active discount rules that either target the given
// fee type or apply to all fee types, in creation order.
func (r *DiscountRuleRepository) FindActive(ctx context.Context, feeType models.FeeType) ([]*models.DiscountRule, error) {
	query := `
		SELECT ` + discountRuleColumns + `
		FROM discount_rules
		WHERE is_active AND (applies_to_fee_type IS NULL OR applies_to_fee_type = $1)
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, feeType)
	if err != nil {
		return nil, fmt.Errorf("query discount rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.DiscountRule
	for rows.Next() {
		rule, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// IncrementUsageIfBelowLimit consumes one usage slot as a single conditional
// UPDATE. Two concurrent callers racing for the last slot see exactly one
// true result, which is what keeps usage_count within usage_limit.
func (r *DiscountRuleRepository) IncrementUsageIfBelowLimit(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE discount_rules
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND is_active AND (usage_limit IS NULL OR usage_count < usage_limit)`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("increment discount usage: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *DiscountRuleRepository) scan(s scanner) (*models.DiscountRule, error) {
	var rule models.DiscountRule
	var maxDiscount, minAmount, maxAmount decimal.NullDecimal
	var feeType, accountType *string

	err := s.Scan(
		&rule.ID,
		&rule.DiscountType,
		&rule.Value,
		&maxDiscount,
		&feeType,
		&rule.AppliesToSubType,
		&rule.AppliesToMethod,
		&accountType,
		&rule.AppliesToCountries,
		&rule.RegionID,
		&minAmount,
		&maxAmount,
		&rule.UsageLimit,
		&rule.UsageCount,
		&rule.StartDate,
		&rule.EndDate,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if maxDiscount.Valid {
		rule.MaxDiscount = &maxDiscount.Decimal
	}
	if minAmount.Valid {
		rule.MinTransactionAmount = &minAmount.Decimal
	}
	if maxAmount.Valid {
		rule.MaxTransactionAmount = &maxAmount.Decimal
	}
	if feeType != nil {
		ft := models.FeeType(*feeType)
		rule.AppliesToFeeType = &ft
	}
	if accountType != nil {
		at := models.AccountType(*accountType)
		rule.AppliesToAccountType = &at
	}

	return &rule, nil
}
