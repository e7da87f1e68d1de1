package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "InvalidLogLevel",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "InvalidLogFormat",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "InvalidCacheType",
			mutate:  func(c *Config) { c.Cache.Type = "s3" },
			wantErr: "Type",
		},
		{
			name:    "UnsupportedAlgorithm",
			mutate:  func(c *Config) { c.Cache.Algorithm = "md5" },
			wantErr: "digestalg",
		},
		{
			name:    "MissingFilesystemPath",
			mutate:  func(c *Config) { c.Cache.Filesystem = map[string]any{} },
			wantErr: "cache.filesystem.path",
		},
		{
			name:    "MalformedFilesystemOptions",
			mutate:  func(c *Config) { c.Cache.Filesystem = map[string]any{"path": []int{1}} },
			wantErr: "cache.filesystem",
		},
		{
			name:    "TempMaxAgeTooShort",
			mutate:  func(c *Config) { c.GC.TempMaxAge = time.Second },
			wantErr: "TempMaxAge",
		},
		{
			name:    "NegativeBatchSize",
			mutate:  func(c *Config) { c.GC.BatchSize = -1 },
			wantErr: "BatchSize",
		},
		{
			name:    "ExcessiveConcurrency",
			mutate:  func(c *Config) { c.GC.Concurrency = 1000 },
			wantErr: "Concurrency",
		},
		{
			name:    "SubSecondInterval",
			mutate:  func(c *Config) { c.GC.Interval = time.Millisecond },
			wantErr: "gc.interval",
		},
		{
			name:    "InvalidMetricsPort",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "Port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_MemoryIgnoresFilesystemPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Type = "memory"
	cfg.Cache.Filesystem = map[string]any{}

	if err := Validate(cfg); err != nil {
		t.Errorf("Memory cache should not need a path: %v", err)
	}
}

func TestValidate_SubSecondIntervalAllowedWhenDisabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.GC.Enabled = false
	cfg.GC.Interval = time.Millisecond

	if err := Validate(cfg); err != nil {
		t.Errorf("Disabled gc should not constrain interval: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"debug", "Info", "WARN", "error"} {
		cfg := &Config{Logging: LoggingConfig{Level: level}}
		ApplyDefaults(cfg)

		if err := Validate(cfg); err != nil {
			t.Errorf("Level %q should be valid: %v", level, err)
		}
		if cfg.Logging.Level != strings.ToUpper(level) {
			t.Errorf("Expected %q, got %q", strings.ToUpper(level), cfg.Logging.Level)
		}
	}
}
