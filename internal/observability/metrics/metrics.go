package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "fleet_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	reportRequests *prometheus.CounterVec
	reportLatency  *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	auditQueries      *prometheus.CounterVec
	auditCleanupTotal *prometheus.CounterVec
	auditDeleted      prometheus.Counter

	accessCacheLookups *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		reportRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_requests_total",
				Help: "Total report assembly requests by type and result",
			},
			[]string{"type", "result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_latency_seconds",
				Help:    "Report assembly latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		auditQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_queries_total",
				Help: "Total audit queries by operation and result",
			},
			[]string{"operation", "result"},
		)
		auditCleanupTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_cleanup_total",
				Help: "Total audit cleanup runs by result",
			},
			[]string{"result"},
		)
		auditDeleted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_entries_deleted_total",
				Help: "Total audit entries removed by retention cleanup",
			},
		)

		accessCacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "access_cache_lookups_total",
				Help: "Access grant cache lookups by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			reportRequests,
			reportLatency,
			exportTotal,
			exportLatency,
			auditQueries,
			auditCleanupTotal,
			auditDeleted,
			accessCacheLookups,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveReport records report assembly latency and result.
func ObserveReport(reportType, result string, duration time.Duration) {
	if reportType == "" {
		reportType = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportRequests != nil {
		reportRequests.WithLabelValues(reportType, result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(reportType, result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncAuditQuery increments the audit query counter.
func IncAuditQuery(operation, result string) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if auditQueries != nil {
		auditQueries.WithLabelValues(operation, result).Inc()
	}
}

// ObserveAuditCleanup records a cleanup run and the rows it removed.
func ObserveAuditCleanup(result string, deleted int64) {
	if result == "" {
		result = resultSuccess
	}
	if auditCleanupTotal != nil {
		auditCleanupTotal.WithLabelValues(result).Inc()
	}
	if auditDeleted != nil && deleted > 0 {
		auditDeleted.Add(float64(deleted))
	}
}

// IncAccessCache increments the cache lookup counter.
func IncAccessCache(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if accessCacheLookups != nil {
		accessCacheLookups.WithLabelValues(outcome).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
