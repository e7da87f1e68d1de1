// Package fs implements the content-addressable store on top of a cache root.
//
// This file contains the atomic write path: stream into a private temporary
// file while hashing, verify, then publish with a single rename.
package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// copyBufferSize is the chunk size for streaming writes. The context is
// checked between chunks.
const copyBufferSize = 32 * 1024

// ============================================================================
// WritableContentStore Interface Implementation
// ============================================================================

// WriteContent stores the bytes read from r and returns their digest.
//
// Write Protocol:
//  1. Create a uniquely named temporary file under tmp/
//  2. Stream r into it while feeding the same bytes to the digester
//  3. Compare against expected (if given); on mismatch publish nothing
//  4. Fsync and close the temporary file
//  5. Create the shard directories and rename onto the addressed path
//
// Renaming over an existing entry is allowed: the existing file necessarily
// holds identical bytes, so concurrent writers of the same content both
// succeed and leave exactly one entry.
//
// Context Cancellation:
// The context is checked before starting and between every chunk. A
// cancelled write removes its temporary file and returns the context error.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - r: Source of the content bytes
//   - expected: Optional digest; its algorithm overrides the store default
//
// Returns:
//   - digest.Digest: Authoritative digest of the stored bytes
//   - error: *content.IntegrityError, content.ErrInvalidDigest,
//     *content.IOError, or context errors
func (s *FSContentStore) WriteContent(ctx context.Context, r io.Reader, expected digest.Digest) (dgst digest.Digest, err error) {
	start := time.Now()
	var written int64
	defer func() {
		s.metrics.ObserveOperation("write", content.StatusFor(err), written, time.Since(start))
	}()

	// ========================================================================
	// Step 1: Check context and choose the algorithm
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return "", err
	}

	alg := s.algorithm
	if expected != "" {
		if err := content.ValidateDigest(expected); err != nil {
			return "", err
		}
		alg = expected.Algorithm()
	}

	// ========================================================================
	// Step 2: Stage into a private temporary file
	// ========================================================================

	tmp, tmpName, err := s.root.CreateTemp()
	if err != nil {
		return "", err
	}

	digester := alg.Digester()
	written, err = copyWithContext(ctx, io.MultiWriter(tmp, digester.Hash()), r)
	if err != nil {
		if ctx.Err() == nil {
			err = content.NewIOError("write", tmpName, err)
		}
		return "", multierr.Append(err, s.discardTemp(tmp, tmpName))
	}

	// ========================================================================
	// Step 3: Verify against the expected digest
	// ========================================================================

	dgst = digester.Digest()
	if expected != "" && dgst != expected {
		s.metrics.RecordIntegrityFailure("write")
		logger.Debug("Integrity mismatch on write: expected=%s actual=%s", expected, dgst)
		mismatch := &content.IntegrityError{Expected: expected, Actual: dgst}
		return "", multierr.Append(mismatch, s.discardTemp(tmp, tmpName))
	}

	// ========================================================================
	// Step 4: Make the staged bytes durable
	// ========================================================================

	if s.sync {
		if err := tmp.Sync(); err != nil {
			return "", multierr.Append(content.NewIOError("sync", tmpName, err), s.discardTemp(tmp, tmpName))
		}
	}
	if err := tmp.Close(); err != nil {
		return "", multierr.Append(content.NewIOError("close", tmpName, err), s.removeTemp(tmpName))
	}

	// ========================================================================
	// Step 5: Publish with a single rename
	// ========================================================================

	if err := s.publish(tmpName, dgst); err != nil {
		return "", multierr.Append(err, s.removeTemp(tmpName))
	}

	logger.Debug("Stored content: digest=%s size=%d duration=%s", dgst, written, time.Since(start))
	return dgst, nil
}

// publish moves a closed temporary file onto the addressed path of dgst.
func (s *FSContentStore) publish(tmpName string, dgst digest.Digest) error {
	target := s.root.EntryPath(dgst)

	if err := s.root.EnsureShard(target); err != nil {
		return err
	}

	// A directory at the target would be replaced silently by some afero
	// backends; refuse it on every backend.
	if info, err := lstat(s.fs, target); err == nil && info.IsDir() {
		return content.NewIOError("rename", target, errors.New("path is a directory"))
	}

	if err := s.fs.Rename(tmpName, target); err != nil {
		return content.NewIOError("rename", target, err)
	}
	return nil
}

// discardTemp closes and removes an open temporary file.
func (s *FSContentStore) discardTemp(tmp afero.File, name string) error {
	closeErr := tmp.Close()
	if closeErr != nil {
		closeErr = content.NewIOError("close", name, closeErr)
	}
	return multierr.Append(closeErr, s.removeTemp(name))
}

// removeTemp removes a closed temporary file.
func (s *FSContentStore) removeTemp(name string) error {
	if err := s.fs.Remove(name); err != nil {
		logger.Warn("Failed to remove temporary file %s: %v", name, err)
		return content.NewIOError("remove temp", name, err)
	}
	return nil
}

// WriteBytes is a convenience wrapper around WriteContent for in-memory data.
func (s *FSContentStore) WriteBytes(ctx context.Context, data []byte, expected digest.Digest) (digest.Digest, error) {
	return s.WriteContent(ctx, bytes.NewReader(data), expected)
}

// copyWithContext copies src to dst in fixed-size chunks, checking ctx
// before each chunk. It returns the number of bytes written.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, fmt.Errorf("read source: %w", err)
		}
	}
}
