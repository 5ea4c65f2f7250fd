package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tariff/internal/db"
	"tariff/internal/models"
)

// CalculationRepository persists the append-only calculation audit trail and
// the daily rollups the dashboard reads. Audit rows are never updated.
type CalculationRepository struct {
	db *db.DB
}

// NewCalculationRepository creates a new calculation repository.
func NewCalculationRepository(database *db.DB) *CalculationRepository {
	return &CalculationRepository{db: database}
}

const calculationColumns = `id, user_id, transaction_id, fee_type, fee_sub_type, fee_method,
		base_amount, fee_amount, discount_amount, final_fee_amount, currency,
		region_id, region_unresolved, country_code, applied_fee_rules, applied_discounts,
		calculation_details, created_at`

// Record inserts one audit row and bumps the matching daily rollup in a
// single transaction.
func (r *CalculationRepository) Record(ctx context.Context, rec *models.CalculationRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("marshal calculation details: %w", err)
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO fee_calculations (
				id, user_id, transaction_id, fee_type, fee_sub_type, fee_method,
				base_amount, fee_amount, discount_amount, final_fee_amount, currency,
				region_id, region_unresolved, country_code, applied_fee_rules, applied_discounts,
				calculation_details, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

		_, err := tx.Exec(ctx, insert,
			rec.ID,
			rec.UserID,
			rec.TransactionID,
			rec.FeeType,
			rec.FeeSubType,
			rec.FeeMethod,
			rec.BaseAmount,
			rec.FeeAmount,
			rec.DiscountAmount,
			rec.FinalFeeAmount,
			rec.Currency,
			rec.RegionID,
			rec.RegionUnresolved,
			rec.CountryCode,
			rec.AppliedFeeRules,
			rec.AppliedDiscounts,
			details,
			rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert calculation record: %w", err)
		}

		rollup := `
			INSERT INTO fee_calculation_rollups (day, fee_type, calculation_count, fee_total, discount_total)
			VALUES (date_trunc('day', $1::timestamptz), $2, 1, $3, $4)
			ON CONFLICT (day, fee_type) DO UPDATE SET
				calculation_count = fee_calculation_rollups.calculation_count + 1,
				fee_total = fee_calculation_rollups.fee_total + EXCLUDED.fee_total,
				discount_total = fee_calculation_rollups.discount_total + EXCLUDED.discount_total`

		_, err = tx.Exec(ctx, rollup, rec.CreatedAt, rec.FeeType, rec.FinalFeeAmount, rec.DiscountAmount)
		if err != nil {
			return fmt.Errorf("upsert calculation rollup: %w", err)
		}

		return nil
	})
}

// ListByUser retrieves audit records for a user with filters, newest first.
func (r *CalculationRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter models.CalculationFilter) ([]*models.CalculationRecord, error) {
	var conditions []string
	var args []any
	argNum := 1

	conditions = append(conditions, fmt.Sprintf("user_id = $%d", argNum))
	args = append(args, userID)
	argNum++

	if filter.FeeType != nil {
		conditions = append(conditions, fmt.Sprintf("fee_type = $%d", argNum))
		args = append(args, *filter.FeeType)
		argNum++
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *filter.CreatedAfter)
		argNum++
	}

	if filter.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argNum))
		args = append(args, *filter.CreatedBefore)
		argNum++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM fee_calculations
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		calculationColumns,
		strings.Join(conditions, " AND "),
		argNum,
		argNum+1,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	var records []*models.CalculationRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calculation record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetByID retrieves one audit record.
func (r *CalculationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CalculationRecord, error) {
	query := `
		SELECT ` + calculationColumns + `
		FROM fee_calculations
		WHERE id = $1`

	row := r.db.Pool().QueryRow(ctx, query, id)
	rec, err := r.scan(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *CalculationRepository) scan(s scanner) (*models.CalculationRecord, error) {
	var rec models.CalculationRecord
	var details []byte

	err := s.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.TransactionID,
		&rec.FeeType,
		&rec.FeeSubType,
		&rec.FeeMethod,
		&rec.BaseAmount,
		&rec.FeeAmount,
		&rec.DiscountAmount,
		&rec.FinalFeeAmount,
		&rec.Currency,
		&rec.RegionID,
		&rec.RegionUnresolved,
		&rec.CountryCode,
		&rec.AppliedFeeRules,
		&rec.AppliedDiscounts,
		&details,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("unmarshal calculation details: %w", err)
		}
	}

	return &rec, nil
}
