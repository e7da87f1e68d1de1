// Package gc provides maintenance for a content store.
//
// The content engine never reclaims anything on its own. Temporary files left
// behind by cancelled or crashed writers, entries whose bytes no longer match
// their digest, and entries nobody references any more are all removed here.
//
// A collection run has up to three phases:
//   - Sweep temporary files older than Config.TempMaxAge
//   - Verify every stored entry and delete the corrupted ones (VerifyContent)
//   - Delete entries not reported by the ReferenceSource (when one is set)
//
// The collector works with any ContentStore that also implements
// GarbageCollectableStore. Sweeping and verification additionally require
// TempSweeper and VerifyingContentStore and are skipped when unsupported.
package gc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/internal/ratelimiter"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ReferenceSource reports which entries are still in use.
//
// Anything listed by the store but absent from the returned slice is deleted
// by the unreferenced phase.
type ReferenceSource interface {
	ReferencedContent(ctx context.Context) ([]digest.Digest, error)
}

// ReferenceFunc adapts a function to ReferenceSource.
type ReferenceFunc func(ctx context.Context) ([]digest.Digest, error)

// ReferencedContent implements ReferenceSource.
func (f ReferenceFunc) ReferencedContent(ctx context.Context) ([]digest.Digest, error) {
	return f(ctx)
}

// Collector performs periodic maintenance on a content store.
//
// Thread Safety: Safe for concurrent use. Runs are serialized.
type Collector struct {
	store   content.GarbageCollectableStore
	sweeper content.TempSweeper
	checker content.VerifyingContentStore
	refs    ReferenceSource
	config  Config
	metrics Metrics
	limiter *ratelimiter.Limiter

	// runSem serializes runs. A waiter gives up when its context ends.
	runSem    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Config contains configuration for the collector.
type Config struct {
	// Enabled controls whether Start launches the background worker.
	Enabled bool

	// Interval is how often to run a collection (default: 1h)
	Interval time.Duration

	// TempMaxAge is the minimum age of a temporary file before it is swept
	// (default: 24h). Younger files may belong to a writer still streaming.
	TempMaxAge time.Duration

	// BatchSize is how many entries to delete per DeleteBatch call (default: 1000)
	BatchSize int

	// DryRun reports what would be removed without removing anything.
	DryRun bool

	// VerifyContent re-hashes every entry and deletes those that mismatch.
	VerifyContent bool

	// Concurrency bounds parallel verification (default: 4)
	Concurrency int

	// VerifyBandwidth caps verification reads in bytes per second, shared
	// by all workers. Zero means unlimited.
	VerifyBandwidth int64
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.TempMaxAge <= 0 {
		c.TempMaxAge = 24 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

// NewCollector creates a new collector.
//
// The collector is initialized but not started. Call Start() to begin
// background collection, or RunNow() for a single run.
//
// Parameters:
//   - store: Content store to maintain
//   - refs: Optional source of referenced entries (nil disables the unreferenced phase)
//   - config: Collector configuration
//   - metrics: Optional metrics sink (nil for no-op)
//
// Returns an error if the store cannot list and delete content.
func NewCollector(
	store content.ContentStore,
	refs ReferenceSource,
	config Config,
	metrics Metrics,
) (*Collector, error) {
	gcStore, ok := store.(content.GarbageCollectableStore)
	if !ok {
		return nil, fmt.Errorf("content store does not implement GarbageCollectableStore interface")
	}

	config.ApplyDefaults()
	if metrics == nil {
		metrics = noopMetrics{}
	}

	c := &Collector{
		store:   gcStore,
		refs:    refs,
		config:  config,
		metrics: metrics,
		limiter: ratelimiter.New(config.VerifyBandwidth, 0),
		runSem:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	c.sweeper, _ = store.(content.TempSweeper)
	c.checker, _ = store.(content.VerifyingContentStore)

	if config.VerifyContent && c.checker == nil {
		logger.Warn("GC: content store cannot verify entries, verification disabled")
	}

	return c, nil
}

// Config returns the effective configuration.
func (c *Collector) Config() Config {
	return c.config
}

// Start begins background collection.
//
// Safe to call multiple times (subsequent calls are no-ops).
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		logger.Info("Starting garbage collector: interval=%s temp_max_age=%s batch_size=%d verify=%v dry_run=%v",
			c.config.Interval, c.config.TempMaxAge, c.config.BatchSize, c.config.VerifyContent, c.config.DryRun)

		c.started.Store(true)

		go c.worker()
	})
}

// Stop stops the collector and waits for an in-progress run to finish.
//
// A running collection is cancelled. Safe to call multiple times, and
// returns immediately if the collector was never started.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	c.stopOnce.Do(func() {
		logger.Info("Stopping garbage collector...")
		close(c.stopCh)
	})

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped successfully")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate collection and blocks until it completes or
// ctx is cancelled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.run(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	logger.Info("Garbage collector worker started")

	for {
		select {
		case <-ticker.C:
			stats, err := c.run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			logger.Info("Garbage collector worker stopping...")
			return
		}
	}
}

func (c *Collector) run(ctx context.Context) (*Stats, error) {
	select {
	case c.runSem <- struct{}{}:
	case <-ctx.Done():
		return &Stats{StartTime: time.Now(), EndTime: time.Now(), DryRun: c.config.DryRun}, ctx.Err()
	}
	defer func() { <-c.runSem }()

	stats, err := c.collect(ctx)
	stats.EndTime = time.Now()
	c.metrics.ObserveRun(stats, err)
	return stats, err
}

// collect performs a single collection run.
//
// Per-entry failures are counted and logged; batch-level failures are
// combined into the returned error after every batch has been attempted.
// Context cancellation aborts the run immediately.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now(), DryRun: c.config.DryRun}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Phase 1: stale temporary files
	if c.sweeper != nil {
		if c.config.DryRun {
			logger.Info("GC: DRY RUN - skipping temp sweep (max age %s)", c.config.TempMaxAge)
		} else {
			logger.Debug("GC: Phase 1 - Sweeping temporary files older than %s...", c.config.TempMaxAge)
			swept, err := c.sweeper.SweepTemp(ctx, c.config.TempMaxAge)
			stats.TempSwept = uint64(swept)
			if err != nil {
				return stats, fmt.Errorf("failed to sweep temporary files: %w", err)
			}
		}
	}

	// Phase 2: inventory
	logger.Debug("GC: Phase 2 - Listing stored content...")
	existing, err := c.store.ListAllContent(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	// Phase 3: integrity
	var corrupted []digest.Digest
	if c.config.VerifyContent && c.checker != nil {
		logger.Debug("GC: Phase 3 - Verifying %d entries (concurrency %d)...", len(existing), c.config.Concurrency)
		corrupted, err = c.verifyAll(ctx, existing, stats)
		if err != nil {
			return stats, err
		}
		stats.CorruptedCount = uint64(len(corrupted))
	}

	// Phase 4: references
	var orphaned []digest.Digest
	if c.refs != nil {
		logger.Debug("GC: Phase 4 - Getting referenced content...")
		referenced, err := c.refs.ReferencedContent(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to get referenced content: %w", err)
		}
		stats.ReferencedCount = uint64(len(referenced))
		orphaned = unreferenced(existing, referenced, corrupted)
		stats.OrphanedCount = uint64(len(orphaned))
	}

	doomed := append(corrupted, orphaned...)
	if len(doomed) == 0 {
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - Would delete %d items (%d corrupted, %d unreferenced):",
			len(doomed), len(corrupted), len(orphaned))
		for i, id := range doomed {
			if i == 10 {
				logger.Info("  ... and %d more", len(doomed)-10)
				break
			}
			logger.Info("  - %s", id)
		}
		return stats, nil
	}

	return stats, c.deleteAll(ctx, doomed, stats)
}

// verifyAll re-hashes every entry with bounded concurrency and returns the
// entries whose content no longer matches their digest.
func (c *Collector) verifyAll(ctx context.Context, ids []digest.Digest, stats *Stats) ([]digest.Digest, error) {
	var (
		mu        sync.Mutex
		corrupted []digest.Digest
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			err := c.verifyEntry(gctx, id)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				stats.VerifiedCount++
			case errors.Is(err, content.ErrIntegrityMismatch):
				logger.Warn("GC: %v", err)
				corrupted = append(corrupted, id)
			case errors.Is(err, content.ErrContentNotFound):
				// removed since listing
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				logger.Warn("GC: Failed to verify %s: %v", id, err)
				stats.FailedCount++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return corrupted, nil
}

// verifyEntry checks one entry, throttled when VerifyBandwidth is set.
func (c *Collector) verifyEntry(ctx context.Context, id digest.Digest) error {
	if c.limiter.Unlimited() {
		return c.checker.Verify(ctx, id)
	}

	r, err := c.checker.ReadContentVerified(ctx, id)
	if err != nil {
		return err
	}
	_, err = io.Copy(io.Discard, c.limiter.Reader(ctx, r))
	return multierr.Append(err, r.Close())
}

func (c *Collector) deleteAll(ctx context.Context, ids []digest.Digest, stats *Stats) error {
	logger.Debug("GC: Deleting %d entries in batches of %d...", len(ids), c.config.BatchSize)

	var errs error
	for i := 0; i < len(ids); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+c.config.BatchSize, len(ids))
		batch := ids[i:end]

		failures, err := c.store.DeleteBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("GC: Batch delete failed: %v", err)
			stats.FailedCount += uint64(len(batch))
			errs = multierr.Append(errs, fmt.Errorf("delete batch %d-%d: %w", i, end, err))
			continue
		}

		stats.DeletedCount += uint64(len(batch) - len(failures))
		stats.FailedCount += uint64(len(failures))

		for id, ferr := range failures {
			logger.Debug("GC: Failed to delete %s: %v", id, ferr)
		}
	}

	return errs
}

// unreferenced returns the entries of existing that are neither referenced
// nor already scheduled for deletion.
func unreferenced(existing, referenced, skip []digest.Digest) []digest.Digest {
	keep := make(map[digest.Digest]struct{}, len(referenced)+len(skip))
	for _, id := range referenced {
		keep[id] = struct{}{}
	}
	for _, id := range skip {
		keep[id] = struct{}{}
	}

	var out []digest.Digest
	for _, id := range existing {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
