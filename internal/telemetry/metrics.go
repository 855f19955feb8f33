// Package telemetry holds the Prometheus metrics exported on /metrics.
//
// All metrics register against the default registry at package init, so
// importing the package is enough for them to appear. HTTP metrics are
// labelled by route pattern (e.g. /v1/identities/{id}), never the raw URL,
// to keep label cardinality bounded.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route pattern and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plategate_http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plategate_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route pattern.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Access pipeline metrics.
//
// AccessDecisionsTotal counts every Decide/Capture call by source
// (manual|capture) and outcome (authorized, denied, recognition_failed,
// invalid_input, storage_error).
//
// Example PromQL:
//   - Denial ratio: sum(rate(plategate_access_decisions_total{outcome="denied"}[1h])) / sum(rate(plategate_access_decisions_total[1h]))
var (
	AccessDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plategate_access_decisions_total",
			Help: "Total number of access decisions, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	RecognitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plategate_recognition_duration_seconds",
			Help:    "Latency of plate recognition backend calls, by result.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"result"},
	)

	LowConfidenceReadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plategate_low_confidence_reads_total",
			Help: "Total number of recognized plates below the confidence threshold.",
		},
	)
)

var (
	AlertsRaisedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plategate_alerts_raised_total",
			Help: "Total number of alerts raised, by alert type.",
		},
		[]string{"type"},
	)

	ReportExportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plategate_report_exports_total",
			Help: "Total number of spreadsheet exports generated.",
		},
	)
)

// DBOpenConnections is sampled by StartDBStatsCollector rather than per
// request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "plategate_db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples db pool statistics every interval until ctx
// is done or the database stops answering.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := db.PingContext(ctx); err != nil {
				if ctx.Err() == nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				}
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
