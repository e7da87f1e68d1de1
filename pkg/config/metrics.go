package config

import (
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/marmos91/dittocas/pkg/gc"
	"github.com/marmos91/dittocas/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Content is the content store metrics sink (never nil, noop if disabled)
	Content content.Metrics

	// GC is the collector metrics sink (nil if disabled, the collector falls back to noop)
	GC gc.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations
//
// Must be called at most once per process with metrics enabled.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Content: content.NoopMetrics{},
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Metrics.Port,
		}),
		Content: metrics.NewContentMetrics(),
		GC:      metrics.NewGCMetrics(),
	}
}
