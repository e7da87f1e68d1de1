package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/opencontainers/go-digest"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// digestalg accepts algorithm names with a registered hash implementation.
	_ = validate.RegisterValidation("digestalg", func(fl validator.FieldLevel) bool {
		return digest.Algorithm(fl.Field().String()).Available()
	})
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Cache.Type == "filesystem" {
		opts, err := decodeFilesystemOptions(cfg.Cache.Filesystem)
		if err != nil {
			return fmt.Errorf("cache.filesystem: %w", err)
		}
		if opts.Path == "" {
			return fmt.Errorf("cache.filesystem.path: required when cache.type is filesystem")
		}
	}

	if cfg.GC.Enabled && cfg.GC.Interval < time.Second {
		return fmt.Errorf("gc.interval: must be at least 1s when gc is enabled (got %s)", cfg.GC.Interval)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
