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

// FeeDefinitionRepository handles fee definition data access.
type FeeDefinitionRepository struct {
	pool *pgxpool.Pool
}

// NewFeeDefinitionRepository creates a new fee definition repository.
func NewFeeDefinitionRepository(pool *pgxpool.Pool) *FeeDefinitionRepository {
	return &FeeDefinitionRepository{pool: pool}
}

const feeDefinitionColumns = `id, fee_type, fee_sub_type, fee_method, value_type, value, cap, min_fee,
		currency, region_id, country_codes, is_active, effective_from, effective_to, created_at, updated_at`

// Create creates a new fee definition.
func (r *FeeDefinitionRepository) Create(ctx context.Context, params models.CreateFeeDefinitionParams) (*models.FeeDefinition, error) {
	query := `
		INSERT INTO fee_definitions (
			fee_type, fee_sub_type, fee_method, value_type, value, cap, min_fee,
			currency, region_id, country_codes, effective_from, effective_to
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + feeDefinitionColumns

	row := r.pool.QueryRow(ctx, query,
		params.FeeType,
		params.FeeSubType,
		params.FeeMethod,
		params.ValueType,
		params.Value,
		nullDecimal(params.Cap),
		nullDecimal(params.MinFee),
		params.Currency,
		params.RegionID,
		params.CountryCodes,
		params.EffectiveFrom,
		params.EffectiveTo,
	)

	return r.scan(row)
}

// GetByID retrieves a fee definition by ID.
func (r *FeeDefinitionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FeeDefinition, error) {
	query := `
		SELECT ` + feeDefinitionColumns + `
		FROM fee_definitions
		WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	def, err := r.scan(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return def, err
}

// FindActive retrieves active fee definitions for a fee type in creation
// order. Creation order is the documented tie-break when multiple
// definitions match one calculation request.
func (r *FeeDefinitionRepository) FindActive(ctx context.Context, feeType models.FeeType) ([]*models.FeeDefinition, error) {
	query := `
		SELECT ` + feeDefinitionColumns + `
		FROM fee_definitions
		WHERE fee_type = $1 AND is_active
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, feeType)
	if err != nil {
		return nil, fmt.Errorf("query fee definitions: %w", err)
	}
	defer rows.Close()

	var defs []*models.FeeDefinition
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fee definition: %w", err)
		}
		defs = append(defs, d)
	}

	return defs, rows.Err()
}

func (r *FeeDefinitionRepository) scan(s scanner) (*models.FeeDefinition, error) {
	var d models.FeeDefinition
	var capAmount, minFee decimal.NullDecimal

	err := s.Scan(
		&d.ID,
		&d.FeeType,
		&d.FeeSubType,
		&d.FeeMethod,
		&d.ValueType,
		&d.Value,
		&capAmount,
		&minFee,
		&d.Currency,
		&d.RegionID,
		&d.CountryCodes,
		&d.IsActive,
		&d.EffectiveFrom,
		&d.EffectiveTo,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if capAmount.Valid {
		d.Cap = &capAmount.Decimal
	}
	if minFee.Valid {
		d.MinFee = &minFee.Decimal
	}

	return &d, nil
}

// nullDecimal converts an optional decimal to its nullable SQL form.
func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
