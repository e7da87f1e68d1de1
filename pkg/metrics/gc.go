package metrics

import (
	"github.com/marmos91/dittocas/pkg/gc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gcMetrics is the Prometheus implementation of gc.Metrics.
type gcMetrics struct {
	runs      *prometheus.CounterVec
	duration  prometheus.Histogram
	removed   *prometheus.CounterVec
	failed    prometheus.Counter
	entries   prometheus.Gauge
	lastRun   prometheus.Gauge
	corrupted prometheus.Counter
}

// NewGCMetrics creates a new Prometheus-backed gc.Metrics instance on the
// global registry.
//
// Returns nil if metrics are not enabled, which causes the collector to use
// its built-in no-op implementation.
func NewGCMetrics() gc.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewGCMetricsWith(GetRegistry())
}

// NewGCMetricsWith registers collector metrics on reg.
func NewGCMetricsWith(reg prometheus.Registerer) gc.Metrics {
	return &gcMetrics{
		runs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocas_gc_runs_total",
				Help: "Total number of collection runs by status",
			},
			[]string{"status"},
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittocas_gc_duration_seconds",
				Help:    "Duration of collection runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		removed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocas_gc_removed_total",
				Help: "Total number of files removed by the collector by kind",
			},
			[]string{"kind"},
		),
		failed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocas_gc_failures_total",
				Help: "Total number of entries the collector could not verify or remove",
			},
		),
		entries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittocas_gc_entries",
				Help: "Number of entries listed by the most recent collection run",
			},
		),
		lastRun: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittocas_gc_last_run_timestamp_seconds",
				Help: "Unix time at which the most recent collection run finished",
			},
		),
		corrupted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocas_gc_corrupted_total",
				Help: "Total number of entries found corrupted during verification",
			},
		),
	}
}

// ObserveRun implements gc.Metrics.ObserveRun
func (m *gcMetrics) ObserveRun(stats *gc.Stats, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(stats.Duration().Seconds())

	m.removed.WithLabelValues("temp").Add(float64(stats.TempSwept))
	m.removed.WithLabelValues("entry").Add(float64(stats.DeletedCount))
	m.failed.Add(float64(stats.FailedCount))
	m.corrupted.Add(float64(stats.CorruptedCount))
	m.entries.Set(float64(stats.ExistingCount))
	m.lastRun.Set(float64(stats.EndTime.Unix()))
}
