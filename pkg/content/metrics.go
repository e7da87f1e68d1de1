package content

import (
	"errors"
	"time"
)

// Metrics provides observability for content store operations.
//
// Implementations collect counts, byte totals and latencies of store
// operations. This is optional: stores fall back to a no-op implementation
// when none is provided.
//
// Example implementations:
//   - Prometheus metrics (pkg/metrics)
//   - In-memory counters for testing
type Metrics interface {
	// ObserveOperation records one store operation ("write", "read",
	// "delete", "verify") with its outcome, byte count and duration.
	ObserveOperation(op string, status string, bytes int64, duration time.Duration)

	// RecordIntegrityFailure records a digest mismatch detected on write or
	// on a verifying read.
	RecordIntegrityFailure(op string)

	// RecordTempSwept records temporary files reclaimed by a sweep.
	RecordTempSwept(count int)
}

// Operation status labels.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusMismatch = "mismatch"
	StatusError    = "error"
)

// StatusFor maps an operation error to its status label.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrContentNotFound):
		return StatusNotFound
	case errors.Is(err, ErrIntegrityMismatch):
		return StatusMismatch
	default:
		return StatusError
	}
}

// NoopMetrics is the Metrics implementation used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) ObserveOperation(op string, status string, bytes int64, duration time.Duration) {}
func (NoopMetrics) RecordIntegrityFailure(op string)                                                 {}
func (NoopMetrics) RecordTempSwept(count int)                                                        {}
