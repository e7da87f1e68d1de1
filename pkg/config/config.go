package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dittocas configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOCAS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// The cache section selects a store type. Type-specific options live in a
// free-form map named after the type (e.g. cache.filesystem) and are decoded
// by the factory for that type.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Cache selects and configures the content store
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// GC configures the maintenance collector
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// Metrics configures Prometheus metrics export
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path (rotated)
	Output string `mapstructure:"output" yaml:"output" validate:"required"`

	// MaxSizeMB, MaxBackups and MaxAgeDays control file rotation.
	MaxSizeMB  int `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
}

// CacheConfig specifies the content store.
type CacheConfig struct {
	// Type specifies which store implementation to use
	// Valid values: filesystem, memory
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory"`

	// Filesystem contains filesystem-specific options
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// Algorithm is the digest algorithm used when a write does not carry an
	// expected digest. Valid values: sha256, sha384, sha512
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm" validate:"required,digestalg"`

	// Fsync flushes every entry to stable storage before publishing it.
	Fsync *bool `mapstructure:"fsync" yaml:"fsync"`

	// StrictReads makes every read verify content against its digest.
	StrictReads bool `mapstructure:"strict_reads" yaml:"strict_reads"`
}

// GCConfig configures the maintenance collector.
type GCConfig struct {
	// Enabled runs the collector in the background of long-lived commands
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between background runs
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`

	// TempMaxAge is the age after which a temporary file is considered orphaned
	TempMaxAge time.Duration `mapstructure:"temp_max_age" yaml:"temp_max_age" validate:"gte=1m"`

	// BatchSize is the number of entries removed per batch
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"gt=0"`

	// DryRun reports without removing anything
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// VerifyContent re-hashes every entry and removes corrupted ones
	VerifyContent bool `mapstructure:"verify_content" yaml:"verify_content"`

	// Concurrency bounds parallel verification
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gt=0,lte=256"`

	// VerifyBandwidth caps verification reads in bytes per second (0 = unlimited)
	VerifyBandwidth int64 `mapstructure:"verify_bandwidth" yaml:"verify_bandwidth" validate:"gte=0"`
}

// MetricsConfig configures Prometheus metrics export.
type MetricsConfig struct {
	// Enabled starts the metrics HTTP server
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port for the metrics HTTP server
	Port int `mapstructure:"port" yaml:"port" validate:"gte=1,lte=65535"`
}

// envKeys lists the settings that may be overridden from the environment
// even when the configuration file does not mention them.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"cache.type",
	"cache.filesystem.path",
	"cache.algorithm",
	"cache.fsync",
	"cache.strict_reads",
	"gc.enabled",
	"gc.interval",
	"gc.temp_max_age",
	"gc.batch_size",
	"gc.dry_run",
	"gc.verify_content",
	"gc.concurrency",
	"gc.verify_bandwidth",
	"metrics.enabled",
	"metrics.port",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOCAS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOCAS_CACHE_FILESYSTEM_PATH=/var/cache/dittocas
	v.SetEnvPrefix("DITTOCAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/dittocas/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittocas")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittocas")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
