package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tariff/internal/metrics"
	"tariff/internal/models"
)

const (
	auditAttempts = 3
	auditBackoff  = 25 * time.Millisecond
)

// record builds the immutable audit record and hands it to the sink. A sink
// failure never fails the caller's result: the write is retried a few times,
// then logged and counted so the gap is visible to alerting.
func (e *Engine) record(ctx context.Context, req models.CalculationRequest, res *models.FeeCalculationResult, at time.Time) {
	rec := &models.CalculationRecord{
		ID:               uuid.New(),
		UserID:           req.UserID,
		TransactionID:    req.TransactionID,
		FeeType:          req.FeeType,
		FeeSubType:       req.FeeSubType,
		FeeMethod:        req.FeeMethod,
		BaseAmount:       res.BaseAmount,
		FeeAmount:        res.FeeAmount,
		DiscountAmount:   res.DiscountAmount,
		FinalFeeAmount:   res.FinalFeeAmount,
		Currency:         res.Currency,
		RegionID:         res.RegionID,
		RegionUnresolved: res.RegionUnresolved,
		CountryCode:      req.CountryCode,
		AppliedFeeRules:  res.AppliedFeeRules,
		AppliedDiscounts: res.AppliedDiscounts,
		Details:          res.Steps,
		CreatedAt:        at,
	}

	var err error
	for attempt := 0; attempt < auditAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				attempt = auditAttempts
				continue
			case <-time.After(time.Duration(attempt) * auditBackoff):
			}
		}
		if err = e.audit.Record(ctx, rec); err == nil {
			return
		}
	}

	metrics.AuditWriteFailures.Inc()
	e.logger.Error("calculation audit write failed",
		zap.Error(err),
		zap.String("record_id", rec.ID.String()),
		zap.String("user_id", rec.UserID.String()),
		zap.String("fee_type", string(rec.FeeType)),
	)
}
