package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittocas/pkg/content"
	contentFs "github.com/marmos91/dittocas/pkg/content/fs"
	"github.com/marmos91/dittocas/pkg/gc"
	"github.com/mitchellh/mapstructure"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// memoryRootPath is the root of the cache inside an in-memory filesystem.
const memoryRootPath = "/dittocas"

// FilesystemOptions holds the options of the filesystem store type.
type FilesystemOptions struct {
	// Path is the cache root directory
	Path string `mapstructure:"path"`
}

func decodeFilesystemOptions(options map[string]any) (FilesystemOptions, error) {
	var opts FilesystemOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return opts, fmt.Errorf("failed to decode filesystem options: %w", err)
	}
	return opts, nil
}

// CreateContentStore creates a content store based on configuration.
//
// This factory function uses the Type field to determine where the cache root
// lives, then decodes the type-specific options from the corresponding map.
//
// Supported types:
//   - "filesystem": cache root on the local filesystem
//   - "memory": cache root on an in-memory filesystem (lost on exit)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Cache configuration
//   - metrics: Optional metrics sink (nil for no-op)
//
// Returns:
//   - *contentFs.FSContentStore: Initialized content store
//   - error: Configuration or initialization error
func CreateContentStore(ctx context.Context, cfg *CacheConfig, metrics content.Metrics) (*contentFs.FSContentStore, error) {
	storeCfg := contentFs.FSContentStoreConfig{
		Algorithm:   digest.Algorithm(cfg.Algorithm),
		NoSync:      cfg.Fsync != nil && !*cfg.Fsync,
		StrictReads: cfg.StrictReads,
		Metrics:     metrics,
	}

	switch cfg.Type {
	case "filesystem":
		opts, err := decodeFilesystemOptions(cfg.Filesystem)
		if err != nil {
			return nil, err
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("filesystem content store: path is required")
		}
		storeCfg.Path = opts.Path
	case "memory":
		storeCfg.Path = memoryRootPath
		storeCfg.Fs = afero.NewMemMapFs()
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}

	store, err := contentFs.NewFSContentStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s content store: %w", cfg.Type, err)
	}

	return store, nil
}

// CreateCollector creates the maintenance collector for store.
//
// refs may be nil, in which case unreferenced entries are never removed.
func CreateCollector(cfg *GCConfig, store content.ContentStore, refs gc.ReferenceSource, metrics gc.Metrics) (*gc.Collector, error) {
	return gc.NewCollector(store, refs, gc.Config{
		Enabled:         cfg.Enabled,
		Interval:        cfg.Interval,
		TempMaxAge:      cfg.TempMaxAge,
		BatchSize:       cfg.BatchSize,
		DryRun:          cfg.DryRun,
		VerifyContent:   cfg.VerifyContent,
		Concurrency:     cfg.Concurrency,
		VerifyBandwidth: cfg.VerifyBandwidth,
	}, metrics)
}
