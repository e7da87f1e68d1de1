package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittocas configuration file
#
# Every setting can be overridden from the environment with the DITTOCAS_
# prefix, e.g. DITTOCAS_CACHE_FILESYSTEM_PATH=/var/cache/dittocas.

`

var sectionComments = map[string]string{
	"logging": "Log output. level: DEBUG, INFO, WARN, ERROR. format: text or json.\noutput: stdout, stderr or a file path (rotated by size).",
	"cache":   "Content store. type: filesystem or memory (lost on exit).\nalgorithm is used for writes that do not carry an expected digest.",
	"gc":      "Maintenance collector: sweeps orphaned temp files, optionally\nverifies entries and removes the corrupted ones.",
	"metrics": "Prometheus metrics exported over HTTP at /metrics.",
}

var fieldComments = map[string]string{
	"cache.fsync":         "flush entries to disk before publishing",
	"cache.strict_reads":  "verify content on every read",
	"gc.temp_max_age":     "temp files younger than this may belong to live writers",
	"gc.dry_run":          "report only, remove nothing",
	"gc.concurrency":      "parallel verifications",
	"gc.verify_bandwidth": "bytes per second, 0 = unlimited",
}

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. Fails if the file exists and force
// is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML annotated with section and
// field comments.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		section, body := doc.Content[i], doc.Content[i+1]
		section.HeadComment = sectionComments[section.Value]

		if body.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			key := body.Content[j]
			if comment, ok := fieldComments[section.Value+"."+key.Value]; ok {
				body.Content[j+1].LineComment = comment
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	return buf.String(), nil
}
