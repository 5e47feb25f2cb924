package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "gasbilling_"

	resultSuccess  = "success"
	resultError    = "error"
	resultRejected = "rejected"

	outcomeCreated = "created"
	outcomeUpdated = "updated"
	outcomeError   = "error"
)

var (
	registerOnce sync.Once

	billingRunTotal   *prometheus.CounterVec
	billingRunLatency *prometheus.HistogramVec

	billingPointTotal   *prometheus.CounterVec
	billingPointLatency *prometheus.HistogramVec

	leaseConflicts prometheus.Counter

	invoiceExportTotal   *prometheus.CounterVec
	invoiceExportLatency *prometheus.HistogramVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		billingRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_run_total",
				Help: "Total billing runs by result",
			},
			[]string{"result"},
		)
		billingRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "billing_run_latency_seconds",
				Help:    "Billing run latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
			},
			[]string{"result"},
		)

		billingPointTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_point_total",
				Help: "Total supply points billed by outcome",
			},
			[]string{"outcome"},
		)
		billingPointLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "billing_point_latency_seconds",
				Help:    "Per supply point billing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		leaseConflicts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_lease_conflicts_total",
				Help: "Billing runs rejected because the period was already running",
			},
		)

		invoiceExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_export_total",
				Help: "Total invoice export operations by format and result",
			},
			[]string{"format", "result"},
		)
		invoiceExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_export_latency_seconds",
				Help:    "Invoice export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			billingRunTotal,
			billingRunLatency,
			billingPointTotal,
			billingPointLatency,
			leaseConflicts,
			invoiceExportTotal,
			invoiceExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveBillingRun records run latency and result.
func ObserveBillingRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if billingRunTotal != nil {
		billingRunTotal.WithLabelValues(result).Inc()
	}
	if billingRunLatency != nil {
		billingRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveBillingPoint records one supply point outcome.
func ObserveBillingPoint(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if billingPointTotal != nil {
		billingPointTotal.WithLabelValues(outcome).Inc()
	}
	if billingPointLatency != nil {
		billingPointLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// IncLeaseConflict counts a rejected concurrent run.
func IncLeaseConflict() {
	if leaseConflicts != nil {
		leaseConflicts.Inc()
	}
}

// ObserveInvoiceExport records export latency and result.
func ObserveInvoiceExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if invoiceExportTotal != nil {
		invoiceExportTotal.WithLabelValues(format, result).Inc()
	}
	if invoiceExportLatency != nil {
		invoiceExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultRejected = resultRejected

	OutcomeCreated = outcomeCreated
	OutcomeUpdated = outcomeUpdated
	OutcomeError   = outcomeError
)
