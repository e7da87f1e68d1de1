package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	cfg := GetDefaultConfig()
	cfg.Cache.Filesystem["path"] = path

	store, err := CreateContentStore(context.Background(), &cfg.Cache, nil)
	if err != nil {
		t.Fatalf("Failed to create filesystem store: %v", err)
	}

	if store.Root().Path() != path {
		t.Errorf("Expected root %q, got %q", path, store.Root().Path())
	}
	if !store.Root().OnDisk() {
		t.Error("Expected filesystem store to live on disk")
	}
}

func TestCreateContentStore_FilesystemMissingPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Filesystem = map[string]any{}

	_, err := CreateContentStore(context.Background(), &cfg.Cache, nil)
	if err == nil || !strings.Contains(err.Error(), "path is required") {
		t.Fatalf("Expected missing path error, got: %v", err)
	}
}

func TestCreateContentStore_Memory(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Type = "memory"
	cfg.Cache.Algorithm = "sha512"

	store, err := CreateContentStore(context.Background(), &cfg.Cache, content.NoopMetrics{})
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}

	if store.Root().OnDisk() {
		t.Error("Expected memory store not to live on disk")
	}
	if store.Algorithm() != digest.SHA512 {
		t.Errorf("Expected sha512, got %s", store.Algorithm())
	}

	dgst, err := store.WriteBytes(context.Background(), []byte("hello"), "")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if dgst.Algorithm() != digest.SHA512 {
		t.Errorf("Expected sha512 digest, got %s", dgst)
	}
}

func TestCreateContentStore_UnknownType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Type = "s3"

	_, err := CreateContentStore(context.Background(), &cfg.Cache, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown content store type") {
		t.Fatalf("Expected unknown type error, got: %v", err)
	}
}

func TestCreateContentStore_ContextCanceled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Filesystem["path"] = filepath.Join(t.TempDir(), "cache")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateContentStore(ctx, &cfg.Cache, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
}

func TestCreateCollector(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Type = "memory"
	cfg.GC.TempMaxAge = 2 * time.Hour
	cfg.GC.VerifyContent = true

	store, err := CreateContentStore(context.Background(), &cfg.Cache, nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	collector, err := CreateCollector(&cfg.GC, store, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create collector: %v", err)
	}

	got := collector.Config()
	if got.TempMaxAge != 2*time.Hour || !got.VerifyContent || !got.Enabled {
		t.Errorf("Collector config not propagated: %+v", got)
	}

	stats, err := collector.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if stats.ExistingCount != 0 {
		t.Errorf("Expected empty store, got %d entries", stats.ExistingCount)
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	result := InitializeMetrics(cfg)
	if result.Server != nil {
		t.Error("Expected no server when metrics are disabled")
	}
	if _, ok := result.Content.(content.NoopMetrics); !ok {
		t.Errorf("Expected noop content metrics, got %T", result.Content)
	}
	if result.GC != nil {
		t.Errorf("Expected nil gc metrics, got %T", result.GC)
	}
}
