// Package fs implements the content-addressable store on top of a cache root.
//
// This file contains batch operations for maintenance: listing all content,
// batch deletion, temporary file sweeping and storage statistics.
package fs

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/marmos91/dittocas/pkg/content/address"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// ============================================================================
// GarbageCollectableStore Interface Implementation
// ============================================================================

// ListAllContent returns the digest of every entry in the content tree.
//
// Files whose path does not parse back to a digest (stray files, foreign
// layouts) are skipped with a debug log. Entries removed while the walk is in
// progress are skipped silently.
//
// Context Cancellation:
// This operation checks context periodically during the walk.
func (s *FSContentStore) ListAllContent(ctx context.Context) ([]digest.Digest, error) {
	var ids []digest.Digest

	err := s.walkEntries(ctx, func(id digest.Digest, _ os.FileInfo) {
		ids = append(ids, id)
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// walkEntries calls fn for every regular file in the content tree whose path
// parses to a digest.
func (s *FSContentStore) walkEntries(ctx context.Context, fn func(digest.Digest, os.FileInfo)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	visited := 0
	err := afero.Walk(s.fs, s.root.ContentDir(), func(path string, info os.FileInfo, err error) error {
		// Check context periodically (every 100 entries)
		visited++
		if visited%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return content.NewIOError("walk", path, err)
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		id, parseErr := address.Parse(path)
		if parseErr != nil {
			logger.Debug("Skipping unrecognized file in content tree: %v", parseErr)
			return nil
		}

		fn(id, info)
		return nil
	})
	if err != nil {
		return err
	}

	return ctx.Err()
}

// DeleteBatch removes multiple entries in one operation.
//
// Deletions are performed sequentially. The operation is best-effort:
// partial failures are allowed and returned in the map.
//
// Context Cancellation:
// This operation checks context periodically during batch deletion. If
// cancelled, the remaining items are reported as failed with the context
// error.
func (s *FSContentStore) DeleteBatch(ctx context.Context, ids []digest.Digest) (map[digest.Digest]error, error) {
	failures := make(map[digest.Digest]error)

	for i, id := range ids {
		// Check context periodically (every 10 deletions)
		if i%10 == 0 {
			if err := ctx.Err(); err != nil {
				for j := i; j < len(ids); j++ {
					failures[ids[j]] = err
				}
				return failures, err
			}
		}

		if err := s.Delete(ctx, id); err != nil {
			failures[id] = err
		}
	}

	return failures, nil
}

// ============================================================================
// TempSweeper Interface Implementation
// ============================================================================

// SweepTemp removes temporary files whose modification time is more than
// olderThan in the past.
//
// A temporary file belongs to exactly one writer for its whole life, so a
// file that has not been touched for longer than any write can take is an
// orphan left by a crash or an abandoned write. Younger files are never
// removed. A non-positive olderThan removes nothing.
func (s *FSContentStore) SweepTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if olderThan <= 0 {
		return 0, nil
	}

	infos, err := s.root.TempFiles()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}

		name := filepath.Join(s.root.TempDir(), info.Name())
		if err := s.fs.Remove(name); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, content.NewIOError("remove temp", name, err)
		}
		removed++
	}

	if removed > 0 {
		s.metrics.RecordTempSwept(removed)
		logger.Info("Swept %d stale temporary files from %s", removed, s.root)
	}
	return removed, nil
}

// ============================================================================
// Storage Information
// ============================================================================

// GetStorageStats walks the content tree and reports usage. On the OS
// filesystem it also reports disk capacity where the platform allows it.
func (s *FSContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	stats := &content.StorageStats{}

	err := s.walkEntries(ctx, func(_ digest.Digest, info os.FileInfo) {
		stats.ContentCount++
		stats.UsedSize += uint64(info.Size())
	})
	if err != nil {
		return nil, err
	}

	if stats.ContentCount > 0 {
		stats.AverageSize = stats.UsedSize / stats.ContentCount
	}

	temps, err := s.root.TempFiles()
	if err != nil {
		return nil, err
	}
	stats.TempCount = uint64(len(temps))

	if s.root.OnDisk() {
		total, available, err := diskUsage(s.root.Path())
		if err != nil {
			logger.Debug("Disk usage unavailable for %s: %v", s.root.Path(), err)
		} else {
			stats.TotalSize = total
			stats.AvailableSize = available
		}
	}

	return stats, nil
}
