// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Fetch metrics
	FetchRunsTotal     *prometheus.CounterVec
	ObservationsMerged prometheus.Counter
	InstrumentsSkipped *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec

	// Metadata metrics
	ProfileFetchErrors  prometheus.Counter
	MetadataInstruments prometheus.Gauge

	// Scan metrics
	ScanRunsTotal     *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	SnapshotRowsSaved prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered against reg.
// A nil reg registers against the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "equity_monitor"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "runs_total",
			Help:      "Total number of incremental fetch runs by outcome",
		}, []string{"status"}),
		ObservationsMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "observations_merged_total",
			Help:      "Total number of daily observations merged into the store",
		}),
		InstrumentsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "instruments_skipped_total",
			Help:      "Total number of instruments skipped by stage",
		}, []string{"stage"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Market data provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "method"}),

		ProfileFetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "profile_fetch_errors_total",
			Help:      "Total number of failed company profile lookups",
		}),
		MetadataInstruments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "instruments",
			Help:      "Number of instruments in the metadata table after the last refresh",
		}),

		ScanRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of scheduled scans by mode and status",
		}, []string{"mode", "status"}),
		ScanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		SnapshotRowsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "snapshot_rows_saved_total",
			Help:      "Total number of ranked rows persisted to snapshots",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),

		LastSuccessfulScan: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last successful scan",
		}),
	}
}

// HandlerFor returns a /metrics handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordFetch records the outcome of an incremental fetch run.
func (m *Metrics) RecordFetch(status string, merged int) {
	if m == nil {
		return
	}
	m.FetchRunsTotal.WithLabelValues(status).Inc()
	m.ObservationsMerged.Add(float64(merged))
}

// RecordSkipped counts instruments dropped at stage.
func (m *Metrics) RecordSkipped(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.InstrumentsSkipped.WithLabelValues(stage).Add(float64(n))
}

// RecordProviderCall records provider call latency.
func (m *Metrics) RecordProviderCall(provider, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderLatency.WithLabelValues(provider, method).Observe(d.Seconds())
}

// RecordProfileError increments the failed profile lookup counter.
func (m *Metrics) RecordProfileError() {
	if m == nil {
		return
	}
	m.ProfileFetchErrors.Inc()
}

// SetMetadataInstruments sets the metadata table size gauge.
func (m *Metrics) SetMetadataInstruments(n int) {
	if m == nil {
		return
	}
	m.MetadataInstruments.Set(float64(n))
}

// RecordScan records a scan run. Successful runs also update the health gauge.
func (m *Metrics) RecordScan(mode, status string, d time.Duration, rowsSaved int) {
	if m == nil {
		return
	}
	m.ScanRunsTotal.WithLabelValues(mode, status).Inc()
	m.ScanDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.SnapshotRowsSaved.Add(float64(rowsSaved))
	if status == "ok" {
		m.LastSuccessfulScan.SetToCurrentTime()
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest counts an API request.
func (m *Metrics) RecordHTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
