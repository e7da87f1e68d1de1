// Package metrics exports cache and collector metrics to Prometheus.
//
// Metrics are off until the process registry is created. Constructors return
// nil while it is absent, and the content store and collector fall back to
// their no-op sinks. The CLI wires everything through config.InitializeMetrics:
//
//	m := config.InitializeMetrics(cfg)
//	store, err := config.CreateContentStore(ctx, &cfg.Cache, m.Content)
//	collector, err := config.CreateCollector(&cfg.GC, store, nil, m.GC)
//	if m.Server != nil {
//		go m.Server.Start(ctx)
//	}
//
// Tests build private registries and use the ...With constructors instead.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry. Later calls do nothing.
//
// The registry also carries the Go runtime and process collectors, so a
// scrape of a long-running `gc --watch` shows memory and file descriptor
// usage next to the cache metrics.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = newRegistry()
	})
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// GetRegistry returns the process-wide registry, or nil before InitRegistry.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}
