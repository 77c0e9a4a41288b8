// Package telemetry provides application-level observability for
// org-manager: the slog setup and the Prometheus metrics.
//
// All metrics are registered against the default Prometheus registry and
// served on the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<ORG_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not part of the Gin router, so it
// is unreachable through the public API ingress path.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/org/get)
// rather than the raw request URL to prevent unbounded label cardinality.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Authentication metrics.
//
// LoginAttemptsTotal is a CounterVec with labels {flow, outcome} where
// flow is "super_admin" or "org_admin" and outcome is "success" or
// "failure". A spike of failures on one flow is the primary brute-force
// signal.
//
// Example PromQL queries:
//   - Failure rate:  sum by (flow) (rate(login_attempts_total{outcome="failure"}[5m]))
//   - Alert:         increase(login_attempts_total{outcome="failure"}[10m]) > 50
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Total number of login attempts, by flow and outcome.",
	},
	[]string{"flow", "outcome"},
)

// Tenant provisioning metrics.
//
// TenantProvisionsTotal counts completed organization-creation sagas by
// outcome ("success" / "failure"); a failure means no organization row
// exists afterwards, whether or not a database was transiently created.
//
// TenantProvisionDuration observes the wall time of the full saga
// (CREATE DATABASE through record insert) for successful creations only.
var (
	TenantProvisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_provisions_total",
			Help: "Total number of tenant provisioning attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	TenantProvisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_provision_duration_seconds",
			Help:    "Duration of a successful organization-creation saga.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections
// currently held by the sql.DB connection pool. It is sampled every 30
// seconds by StartDBStatsCollector rather than per-request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates DBOpenConnections.
// The goroutine exits when the database becomes unreachable, which happens
// automatically when the application shuts down and defers db.Close().
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
