package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CalculationsTotal counts fee calculations by fee type and outcome.
	CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tariff_fee_calculations_total",
		Help: "Total fee calculations processed, labeled by fee type and outcome",
	}, []string{"fee_type", "outcome"})

	// CalculationDuration observes end-to-end engine latency.
	CalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tariff_fee_calculation_duration_seconds",
		Help:    "Latency distribution of fee calculations",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})

	// AuditWriteFailures counts audit records that could not be persisted
	// after retries. Any non-zero value here means unaudited calculations.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tariff_calculation_audit_failures_total",
		Help: "Audit records dropped after exhausting retries",
	})

	// DiscountsSkippedOnLimit counts discounts that matched but lost the
	// usage-limit race at apply time.
	DiscountsSkippedOnLimit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tariff_discounts_skipped_usage_limit_total",
		Help: "Matched discounts skipped because the usage limit was reached concurrently",
	})

	// LedgerPostFailures counts best-effort fee revenue postings that failed.
	LedgerPostFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tariff_ledger_post_failures_total",
		Help: "Fee revenue ledger postings that failed",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tariff_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})
)
