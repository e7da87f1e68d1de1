package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/pkg/config"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/marmos91/dittocas/pkg/gc"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
)

func newGCCmd(a *app) *cobra.Command {
	var (
		dryRun   bool
		verify   bool
		watch    bool
		keepFile string
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Reclaim orphaned temp files and remove corrupted or unreferenced entries",
		Long: `Run one maintenance pass over the cache:

  1. remove temporary files older than gc.temp_max_age
  2. with --verify (or gc.verify_content), re-hash every entry and remove
     the ones that no longer match their digest
  3. with --keep FILE, remove every entry whose digest is not listed in
     FILE (one digest per line, "#" starts a comment)

With --watch the pass repeats every gc.interval until interrupted, and the
metrics server is started when metrics are enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			gcCfg := a.cfg.GC
			gcCfg.DryRun = gcCfg.DryRun || dryRun
			gcCfg.VerifyContent = gcCfg.VerifyContent || verify
			gcCfg.Enabled = gcCfg.Enabled || watch

			var refs gc.ReferenceSource
			if keepFile != "" {
				refs = gc.ReferenceFunc(func(context.Context) ([]digest.Digest, error) {
					return readDigestList(keepFile)
				})
			}

			collector, err := config.CreateCollector(&gcCfg, a.store, refs, a.metrics.GC)
			if err != nil {
				return err
			}

			stats, err := collector.RunNow(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), stats.Summary())

			if !watch {
				return nil
			}
			return a.watch(ctx, collector)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without removing anything")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify every entry and remove corrupted ones")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running on gc.interval until interrupted")
	cmd.Flags().StringVar(&keepFile, "keep", "", "File listing the digests to keep; all others are removed")
	return cmd
}

// watch runs the collector in the background until ctx is cancelled.
func (a *app) watch(ctx context.Context, collector *gc.Collector) error {
	if a.metrics.Server != nil {
		go func() {
			if err := a.metrics.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	collector.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return collector.Stop(stopCtx)
}

// readDigestList reads one digest per line, ignoring blank lines and
// "#" comments. Every digest must be valid.
func readDigestList(path string) ([]digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var ids []digest.Digest
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}

		id := digest.Digest(text)
		if err := content.ValidateDigest(id); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ids, nil
}
