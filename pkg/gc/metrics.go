package gc

// Metrics observes completed collection runs.
//
// This interface is optional. If nil is passed to NewCollector, a no-op
// implementation is used.
type Metrics interface {
	// ObserveRun records the outcome of one run. err is nil on success.
	ObserveRun(stats *Stats, err error)
}

// noopMetrics is a default no-op metrics implementation
type noopMetrics struct{}

func (noopMetrics) ObserveRun(*Stats, error) {}
