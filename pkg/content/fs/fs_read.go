// Package fs implements the content-addressable store on top of a cache root.
//
// This file contains read operations: plain and verifying reads, size
// queries, and existence checks.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// ============================================================================
// ContentStore Interface Implementation
// ============================================================================

// ReadContent returns a reader for the entry stored under id.
//
// The caller is responsible for closing the returned ReadCloser when done.
// When the store was created with StrictReads the reader verifies the content
// as it streams (see ReadContentVerified).
//
// Context Cancellation:
// This operation checks the context before opening the file. Once the file
// is opened, the caller should monitor the context and close the reader if
// the context is cancelled.
//
// Returns:
//   - io.ReadCloser: Reader for the content (must be closed by caller)
//   - error: content.ErrContentNotFound if absent, content.ErrInvalidDigest,
//     *content.IOError (including a directory at the addressed path), or
//     context errors
func (s *FSContentStore) ReadContent(ctx context.Context, id digest.Digest) (io.ReadCloser, error) {
	if s.strictReads {
		return s.ReadContentVerified(ctx, id)
	}
	return s.open(ctx, "read", id)
}

// open checks the context, validates id and opens its entry as a regular
// file.
func (s *FSContentStore) open(ctx context.Context, op string, id digest.Digest) (f afero.File, err error) {
	start := time.Now()
	var size int64
	defer func() {
		s.metrics.ObserveOperation(op, content.StatusFor(err), size, time.Since(start))
	}()

	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Lstat the addressed path, so a planted symlink is never followed
	// ========================================================================

	rel, info, err := s.statEntry(id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err := checkRegular("open", rel, info); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 3: Open the content file
	// ========================================================================

	file, err := s.fs.Open(rel)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, content.NewIOError("open", rel, err)
	}

	info, err = file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, content.NewIOError("stat", rel, err)
	}
	if err := checkRegular("open", rel, info); err != nil {
		_ = file.Close()
		return nil, err
	}

	size = info.Size()
	return file, nil
}

// GetContentSize returns the size of the entry in bytes.
//
// This performs a single Lstat of the addressed path without reading
// content.
//
// Returns:
//   - uint64: Size of the content in bytes
//   - error: content.ErrContentNotFound if absent, or context/IO errors
func (s *FSContentStore) GetContentSize(ctx context.Context, id digest.Digest) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rel, info, err := s.statEntry(id)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err := checkRegular("stat", rel, info); err != nil {
		return 0, err
	}

	return uint64(info.Size()), nil
}

// ContentExists checks if an entry is stored under id.
//
// Returns:
//   - bool: True if content exists, false otherwise
//   - error: Returns error on filesystem errors (excluding not-exists) or
//     context cancellation
func (s *FSContentStore) ContentExists(ctx context.Context, id digest.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	rel, info, err := s.statEntry(id)
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	if err := checkRegular("stat", rel, info); err != nil {
		return false, err
	}

	return true, nil
}

// checkRegular rejects anything at an addressed path that is not a regular
// file. Entries are only ever published by rename of a regular temp file.
func checkRegular(op, rel string, info os.FileInfo) error {
	switch {
	case info.IsDir():
		return content.NewIOError(op, rel, errors.New("path is a directory"))
	case !info.Mode().IsRegular():
		return content.NewIOError(op, rel, fmt.Errorf("not a regular file (%s)", info.Mode().Type()))
	}
	return nil
}

// ============================================================================
// VerifyingContentStore Interface Implementation
// ============================================================================

// ReadContentVerified returns a reader that hashes content as it streams.
//
// When the file is exhausted the computed digest is compared with id. On
// mismatch the final Read returns a *content.IntegrityError instead of
// io.EOF. Bytes already handed to the caller cannot be recalled, so callers
// that must never act on corrupt data should buffer until EOF.
//
// The reader never repairs an entry. Removing a corrupted entry is left to
// the caller (the maintenance collector does this).
func (s *FSContentStore) ReadContentVerified(ctx context.Context, id digest.Digest) (io.ReadCloser, error) {
	file, err := s.open(ctx, "read", id)
	if err != nil {
		return nil, err
	}

	return &verifyingReader{
		file:     file,
		expected: id,
		digester: id.Algorithm().Digester(),
		onMismatch: func(actual digest.Digest) {
			s.metrics.RecordIntegrityFailure("read")
			logger.Warn("Integrity mismatch on read: expected=%s actual=%s", id, actual)
		},
	}, nil
}

// Verify reads the entry for id to the end and checks it against id.
//
// Returns:
//   - error: nil if the entry is intact, content.ErrContentNotFound if absent,
//     *content.IntegrityError if the bytes no longer match, or context/IO errors
func (s *FSContentStore) Verify(ctx context.Context, id digest.Digest) (err error) {
	start := time.Now()
	var size int64
	defer func() {
		s.metrics.ObserveOperation("verify", content.StatusFor(err), size, time.Since(start))
	}()

	reader, err := s.ReadContentVerified(ctx, id)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	size, err = copyWithContext(ctx, io.Discard, reader)
	if err != nil {
		var integrityErr *content.IntegrityError
		if errors.As(err, &integrityErr) {
			return integrityErr
		}
		if ctx.Err() != nil {
			return err
		}
		return content.NewIOError("verify", s.root.EntryPath(id), err)
	}
	return nil
}

// verifyingReader wraps an entry file and checks its digest at EOF.
type verifyingReader struct {
	file       afero.File
	expected   digest.Digest
	digester   digest.Digester
	onMismatch func(actual digest.Digest)

	// err is sticky once the file is exhausted: io.EOF or the mismatch.
	err error
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	if v.err != nil {
		return 0, v.err
	}

	n, err := v.file.Read(p)
	if n > 0 {
		_, _ = v.digester.Hash().Write(p[:n])
	}

	if errors.Is(err, io.EOF) {
		if actual := v.digester.Digest(); actual != v.expected {
			v.err = &content.IntegrityError{Expected: v.expected, Actual: actual}
			if v.onMismatch != nil {
				v.onMismatch(actual)
			}
			return n, v.err
		}
		v.err = io.EOF
	}

	return n, err
}

func (v *verifyingReader) Close() error {
	return v.file.Close()
}
