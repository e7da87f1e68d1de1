package content

import (
	"context"
	"io"
	"time"

	"github.com/opencontainers/go-digest"
)

// ============================================================================
// ContentStore Interface
// ============================================================================

// ContentStore provides read access to a content-addressable cache.
//
// Every entry is identified by the integrity digest of its bytes
// ("<algorithm>:<hex>"). The digest is both the key and the checksum: the
// store never keeps a separate index, so the location of an entry is always
// recomputed from its digest.
//
// Separation of Concerns:
//
// The content store manages only the raw bytes. It does NOT manage:
//   - Human-readable keys or metadata indexes
//   - Transport of content between machines
//   - Encryption of content at rest
//
// Entry Lifecycle:
// An entry is write-once. It moves from Absent to Present when a write
// publishes it, stays Present across identical rewrites, and returns to Absent
// on Delete. An entry is never modified in place.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines and
// by multiple processes sharing the same cache root. Readers observe either
// nothing or a complete entry, never a partial one.
type ContentStore interface {
	// ========================================================================
	// Content Reading
	// ========================================================================

	// ReadContent returns a reader for the entry stored under the digest.
	//
	// The caller is responsible for closing the reader when done. The reader
	// does not verify content unless the store is configured to (see
	// VerifyingContentStore for an explicit verifying read).
	//
	// Context Cancellation:
	// The method checks context before opening content. Once the reader is
	// returned, callers should monitor context and close the reader if
	// cancelled.
	//
	// Concurrent Removal:
	// A Delete racing this call may cause ErrContentNotFound even if the
	// entry existed a moment earlier. Once opened, the reader keeps working on
	// POSIX systems.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Integrity digest of the entry
	//
	// Returns:
	//   - io.ReadCloser: Reader for the content (must be closed by caller)
	//   - error: ErrContentNotFound if absent, ErrInvalidDigest for malformed
	//     digests, *IOError for any other failure
	//
	// Example:
	//
	//	reader, err := store.ReadContent(ctx, dgst)
	//	if err != nil {
	//	    return err
	//	}
	//	defer reader.Close()
	//
	//	data, err := io.ReadAll(reader)
	ReadContent(ctx context.Context, id digest.Digest) (io.ReadCloser, error)

	// GetContentSize returns the size of the entry in bytes without reading it.
	//
	// Returns:
	//   - uint64: Size of the content in bytes
	//   - error: ErrContentNotFound if absent, or context/IO errors
	GetContentSize(ctx context.Context, id digest.Digest) (uint64, error)

	// ContentExists checks if an entry is stored under the digest.
	//
	// Returns:
	//   - bool: True if the entry exists, false otherwise
	//   - error: Only returns error for context cancellation or storage access
	//     failures, NOT for non-existent content (returns false, nil in that case)
	ContentExists(ctx context.Context, id digest.Digest) (bool, error)

	// ========================================================================
	// Storage Information
	// ========================================================================

	// GetStorageStats returns statistics about the content storage.
	//
	// Computing the statistics walks every stored entry, so the cost grows
	// with the size of the cache.
	GetStorageStats(ctx context.Context) (*StorageStats, error)
}

// ============================================================================
// WritableContentStore Interface
// ============================================================================

// WritableContentStore extends ContentStore with write and delete operations.
//
// Write Semantics:
//   - WriteContent streams the input into a private temporary file, computing
//     the digest as it goes, then publishes it with a single atomic rename
//   - Writing content that already exists replaces the file with identical
//     bytes (deduplication)
//   - Delete is idempotent (deleting non-existent content succeeds)
//
// Concurrent Writes:
// Concurrent writers of identical content all succeed and leave exactly one
// entry. No caller-visible locks are needed.
type WritableContentStore interface {
	ContentStore

	// WriteContent stores the bytes read from r and returns their digest.
	//
	// When expected is non-empty the stream is hashed with expected's
	// algorithm and must match it. On mismatch nothing is published and an
	// *IntegrityError is returned. When expected is empty the store's default
	// algorithm is used.
	//
	// Failure Guarantees:
	// On any failure (read error, cancellation, mismatch, rename failure) no
	// entry is published and the temporary file is removed on a best-effort
	// basis. Temporary files left behind by crashes are reclaimed by the
	// maintenance collector.
	//
	// Parameters:
	//   - ctx: Context for cancellation; checked between chunks
	//   - r: Source of the content bytes
	//   - expected: Optional digest the content must hash to
	//
	// Returns:
	//   - digest.Digest: Authoritative digest of the stored content
	//   - error: *IntegrityError, ErrInvalidDigest, *IOError or context errors
	//
	// Example:
	//
	//	dgst, err := store.WriteContent(ctx, strings.NewReader("hello"), "")
	//	if err != nil {
	//	    return err
	//	}
	//	// dgst == "sha256:2cf24dba..."
	WriteContent(ctx context.Context, r io.Reader, expected digest.Digest) (digest.Digest, error)

	// Delete removes the entry stored under the digest.
	//
	// The operation is idempotent: deleting absent content returns nil. Shard
	// directories are left in place even when they become empty, so a
	// concurrent writer never loses the directory it is renaming into.
	//
	// Returns:
	//   - error: *IOError for storage failures (including a directory sitting
	//     at the addressed path), NOT for non-existent content
	Delete(ctx context.Context, id digest.Digest) error
}

// ============================================================================
// VerifyingContentStore Interface
// ============================================================================

// VerifyingContentStore is an optional interface for integrity-checked reads.
//
// A verifying reader hashes bytes as they stream to the caller. When the
// underlying file is exhausted, the computed digest is compared with the
// requested one; on mismatch the final Read returns an *IntegrityError
// instead of io.EOF. The reader only detects corruption, it never repairs it.
type VerifyingContentStore interface {
	ContentStore

	// ReadContentVerified returns a verifying reader for the entry.
	ReadContentVerified(ctx context.Context, id digest.Digest) (io.ReadCloser, error)

	// Verify reads the whole entry and reports whether it still matches its
	// digest. Returns nil, ErrContentNotFound or *IntegrityError.
	Verify(ctx context.Context, id digest.Digest) error
}

// ============================================================================
// GarbageCollectableStore Interface
// ============================================================================

// GarbageCollectableStore is an optional interface for content cleanup.
//
// Garbage Collection Process:
//  1. A ReferenceSource provides the set of digests still in use
//  2. ContentStore.ListAllContent() returns all stored digests
//  3. Compute: unreferenced = all content - referenced
//  4. ContentStore.DeleteBatch() removes unreferenced content
type GarbageCollectableStore interface {
	ContentStore

	// ListAllContent returns the digest of every stored entry.
	//
	// Files in the content tree whose path does not parse back to a digest
	// are skipped.
	ListAllContent(ctx context.Context) ([]digest.Digest, error)

	// DeleteBatch removes multiple entries in one operation.
	//
	// The operation is best-effort:
	//   - Partial failures are allowed
	//   - Successfully deleted items are not rolled back on partial failure
	//   - Returns map of failed deletions (empty map = all succeeded)
	//
	// Returns:
	//   - map[digest.Digest]error: Map of failed deletions
	//   - error: Returns error only for context cancellation, NOT for
	//     individual item failures (those go in the map)
	//
	// Example:
	//
	//	failures, err := store.DeleteBatch(ctx, unreferenced)
	//	if err != nil {
	//	    return fmt.Errorf("batch delete failed: %w", err)
	//	}
	//	for id, err := range failures {
	//	    logger.Warn("Failed to delete %s: %v", id, err)
	//	}
	DeleteBatch(ctx context.Context, ids []digest.Digest) (failures map[digest.Digest]error, err error)
}

// TempSweeper is implemented by stores that stage writes in temporary files.
type TempSweeper interface {
	// SweepTemp removes temporary files last modified more than olderThan
	// ago and returns how many were removed. Files younger than olderThan may
	// belong to in-flight writes and are never touched.
	SweepTemp(ctx context.Context, olderThan time.Duration) (int, error)
}

// ============================================================================
// Supporting Types
// ============================================================================

// StorageStats contains statistics about content storage.
//
// Backends that cannot report a field leave it at 0.
type StorageStats struct {
	// TotalSize is the total capacity of the underlying disk in bytes.
	TotalSize uint64 `json:"total_size"`

	// UsedSize is the sum of all entry sizes in bytes.
	UsedSize uint64 `json:"used_size"`

	// AvailableSize is the free space on the underlying disk in bytes.
	AvailableSize uint64 `json:"available_size"`

	// ContentCount is the total number of entries stored.
	ContentCount uint64 `json:"content_count"`

	// AverageSize is UsedSize / ContentCount, or 0 for an empty cache.
	AverageSize uint64 `json:"average_size"`

	// TempCount is the number of temporary files currently staged.
	TempCount uint64 `json:"temp_count"`
}
