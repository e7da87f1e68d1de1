package content

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// ============================================================================
// Standard Content Store Errors
// ============================================================================

// These errors provide a consistent way to indicate failure conditions across
// content store implementations. Callers should check for them with errors.Is
// rather than comparing error strings.
//
// Usage Pattern:
//
//	reader, err := store.ReadContent(ctx, dgst)
//	if err != nil {
//	    if errors.Is(err, content.ErrContentNotFound) {
//	        return fetchFromOrigin(ctx, dgst)
//	    }
//	    return err
//	}
//
// Error Wrapping:
// Implementations wrap these errors with additional context:
//
//	return fmt.Errorf("content %s: %w", dgst, content.ErrContentNotFound)

var (
	// ErrContentNotFound indicates no entry is stored for the requested digest.
	//
	// This error is returned when:
	//   - ReadContent() is called for a digest that was never written
	//   - ReadContent() is called for a digest that was removed
	//   - GetContentSize() is called for a missing digest
	//
	// Delete() never returns this error: removing absent content succeeds.
	ErrContentNotFound = errors.New("content not found")

	// ErrIntegrityMismatch indicates a computed digest disagrees with the
	// expected one.
	//
	// This error is returned when:
	//   - WriteContent() was given an expected digest that the stream does not hash to
	//   - A verifying reader reaches EOF and the bytes on disk no longer match
	//
	// The concrete error is always an *IntegrityError carrying both digests.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrRootUnavailable indicates the cache root could not be established.
	//
	// This error is returned when:
	//   - The root path is occupied by a regular file
	//   - The process lacks permission to create the root or its subdirectories
	//   - The root path is empty
	ErrRootUnavailable = errors.New("cache root unavailable")

	// ErrIOFailure classifies every other filesystem failure. The concrete
	// error is an *IOError that unwraps to the underlying cause.
	ErrIOFailure = errors.New("i/o failure")

	// ErrInvalidDigest indicates a digest argument is malformed or uses an
	// algorithm that is not available in this process.
	ErrInvalidDigest = errors.New("invalid digest")
)

// IntegrityError reports that content did not hash to the expected digest.
type IntegrityError struct {
	Expected digest.Digest
	Actual   digest.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrIntegrityMismatch) hold for *IntegrityError.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityMismatch
}

// IOError wraps a filesystem failure with the operation and cache-relative
// path that produced it.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// NewIOError builds an *IOError. A nil cause yields nil.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrIOFailure) hold for *IOError.
func (e *IOError) Is(target error) bool {
	return target == ErrIOFailure
}

// ValidateDigest checks that dgst is well formed and that its algorithm can be
// computed in this process.
func ValidateDigest(dgst digest.Digest) error {
	if err := dgst.Validate(); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidDigest, dgst, err)
	}
	return nil
}
