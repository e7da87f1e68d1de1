// Package fs implements the content-addressable store on top of a cache root.
//
// This file contains the removal path.
package fs

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
)

// Delete removes the entry stored under id.
//
// The operation is idempotent: deleting an absent entry returns nil, and so
// does losing a race against another remover. Shard directories are left in
// place even when they become empty, because a concurrent writer may be about
// to rename into them.
//
// A directory at the addressed path is reported as an error rather than
// removed: it cannot have been produced by this store.
//
// Concurrent Readers:
// A reader that already opened the entry keeps reading it after removal on
// POSIX systems. A reader that has not opened it yet sees
// content.ErrContentNotFound.
//
// Returns:
//   - error: *content.IOError for storage failures, content.ErrInvalidDigest,
//     or context errors. Never content.ErrContentNotFound.
func (s *FSContentStore) Delete(ctx context.Context, id digest.Digest) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("delete", content.StatusFor(err), 0, time.Since(start))
	}()

	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return err
	}

	// ========================================================================
	// Step 2: Inspect the addressed path
	// ========================================================================

	rel, info, err := s.statEntry(id)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}
	if info.IsDir() {
		return content.NewIOError("remove", rel, errors.New("path is a directory"))
	}

	// ========================================================================
	// Step 3: Remove the file
	// ========================================================================

	if err := s.fs.Remove(rel); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return content.NewIOError("remove", rel, err)
	}

	logger.Debug("Removed content: digest=%s", id)
	return nil
}
