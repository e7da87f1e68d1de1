package metrics

import (
	"time"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// contentMetrics is the Prometheus implementation of content.Metrics.
//
// This implementation collects metrics about content store operations:
//   - Operation counts by operation and status
//   - Operation latencies
//   - Bytes written, read and verified
//   - Integrity failures detected on write and on read
//   - Temporary files reclaimed by sweeps
type contentMetrics struct {
	operations        *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	bytes             *prometheus.CounterVec
	integrityFailures *prometheus.CounterVec
	tempSwept         prometheus.Counter
}

// NewContentMetrics creates a new Prometheus-backed content.Metrics instance
// on the global registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes the store to use content.NoopMetrics.
func NewContentMetrics() content.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewContentMetricsWith(GetRegistry())
}

// NewContentMetricsWith registers content metrics on reg.
func NewContentMetricsWith(reg prometheus.Registerer) content.Metrics {
	return &contentMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocas_content_operations_total",
				Help: "Total number of content store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittocas_content_operation_duration_seconds",
				Help: "Duration of content store operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
				},
			},
			[]string{"operation"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocas_content_bytes_total",
				Help: "Total bytes processed by successful content store operations",
			},
			[]string{"operation"},
		),
		integrityFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocas_content_integrity_failures_total",
				Help: "Total number of digest mismatches detected",
			},
			[]string{"operation"},
		),
		tempSwept: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocas_content_temp_swept_total",
				Help: "Total number of stale temporary files removed",
			},
		),
	}
}

// ObserveOperation implements content.Metrics.ObserveOperation
func (m *contentMetrics) ObserveOperation(op string, status string, bytes int64, duration time.Duration) {
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
	if status == content.StatusSuccess && bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
}

// RecordIntegrityFailure implements content.Metrics.RecordIntegrityFailure
func (m *contentMetrics) RecordIntegrityFailure(op string) {
	m.integrityFailures.WithLabelValues(op).Inc()
}

// RecordTempSwept implements content.Metrics.RecordTempSwept
func (m *contentMetrics) RecordTempSwept(count int) {
	m.tempSwept.Add(float64(count))
}
