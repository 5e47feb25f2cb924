package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const dbGaugeTimeout = 2 * time.Second

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "invoices",
			Help: "Persisted invoices",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM invoices")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "billing_errors",
			Help: "Supply point errors recorded by the latest run of each period",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM billing_errors")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbGaugeTimeout)
	defer cancel()

	var count int64
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.String("query", query), zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
