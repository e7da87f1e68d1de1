package main

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/pkg/config"
	contentFs "github.com/marmos91/dittocas/pkg/content/fs"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// annotationNoStore marks commands that run without loading configuration
// or opening the cache.
const annotationNoStore = "dittocas/no-store"

// app holds the state shared by all commands of one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	metrics *config.MetricsResult
	store   *contentFs.FSContentStore
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "dittocas",
		Short: "Content-addressable disk cache",
		Long: `dittocas stores data under the cryptographic digest of its content.

Entries are written atomically, verified against an expected digest when one
is given, and live at content-v1/<algorithm>/<xx>/<yy>/<rest> below the cache
root. Digests are written as <algorithm>:<hex>, e.g. sha256:2cf24dba...`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittocas/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")

	cmd.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newRmCmd(a),
		newVerifyCmd(a),
		newLsCmd(a),
		newPathCmd(a),
		newStatsCmd(a),
		newGCCmd(a),
		newInitCmd(a),
	)

	return cmd
}

// setup loads configuration, configures logging and metrics, and opens the
// cache for every command that needs it.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationNoStore] == "true" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		if _, err := logger.ParseLevel(a.logLevel); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		cfg.Logging.Level = strings.ToUpper(a.logLevel)
	}

	// stdout carries command output (digests, content).
	output := cfg.Logging.Output
	if strings.EqualFold(output, "stdout") {
		output = "stderr"
	}

	if err := logger.Configure(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	a.cfg = cfg
	a.metrics = config.InitializeMetrics(cfg)

	store, err := config.CreateContentStore(cmd.Context(), &cfg.Cache, a.metrics.Content)
	if err != nil {
		return err
	}
	a.store = store

	logger.Debug("Using cache %s", store.Root())
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	var err error
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	// Syncing a console sink fails with EINVAL on some platforms.
	_ = logger.Sync()
	return err
}
