// Package fs implements the content-addressable store on top of a cache root.
//
// Entries live at the addressed path of their digest (see package address).
// Writes are staged in the root's tmp/ directory and published with a single
// rename, so readers observe either nothing or a complete entry.
package fs

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/dittocas/internal/logger"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/marmos91/dittocas/pkg/content/root"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// FSContentStoreConfig configures NewFSContentStore.
type FSContentStoreConfig struct {
	// Path is the cache root directory. Required.
	Path string

	// Fs is the filesystem the root lives on. Nil selects the OS filesystem.
	Fs afero.Fs

	// Algorithm is used for writes without an expected digest.
	// Defaults to digest.Canonical (sha256).
	Algorithm digest.Algorithm

	// NoSync skips fsync of staged files before they are published.
	NoSync bool

	// StrictReads makes ReadContent return verifying readers.
	StrictReads bool

	// Metrics receives operation observations. Nil disables metrics.
	Metrics content.Metrics
}

// FSContentStore implements content.WritableContentStore,
// content.VerifyingContentStore, content.GarbageCollectableStore and
// content.TempSweeper on a cache root.
//
// Thread Safety:
// All methods are safe for concurrent use. Several stores, in this or other
// processes, may share one cache root. The store holds no locks: atomicity of
// publication comes from rename, and entries are never modified in place.
type FSContentStore struct {
	root        *root.Root
	fs          afero.Fs
	algorithm   digest.Algorithm
	sync        bool
	strictReads bool
	metrics     content.Metrics
}

// NewFSContentStore opens (creating if needed) the cache root and returns a
// store on it.
//
// Context Cancellation:
// This operation checks the context before creating the directory structure.
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: ErrRootUnavailable if the root cannot be established,
//     ErrInvalidDigest if Algorithm is not available, or context errors
func NewFSContentStore(ctx context.Context, cfg FSContentStoreConfig) (*FSContentStore, error) {
	// ========================================================================
	// Step 1: Resolve the default algorithm
	// ========================================================================

	alg := cfg.Algorithm
	if alg == "" {
		alg = digest.Canonical
	}
	if !alg.Available() {
		return nil, fmt.Errorf("%w: algorithm %q is not available", content.ErrInvalidDigest, alg)
	}

	// ========================================================================
	// Step 2: Establish the cache root
	// ========================================================================

	var opts []root.Option
	if cfg.Fs != nil {
		opts = append(opts, root.WithFs(cfg.Fs))
	}

	r, err := root.Open(ctx, cfg.Path, opts...)
	if err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = content.NoopMetrics{}
	}

	logger.Debug("Content store opened: root=%s algorithm=%s fsync=%t strict_reads=%t",
		r, alg, !cfg.NoSync, cfg.StrictReads)

	return &FSContentStore{
		root:        r,
		fs:          r.Fs(),
		algorithm:   alg,
		sync:        !cfg.NoSync,
		strictReads: cfg.StrictReads,
		metrics:     metrics,
	}, nil
}

// Root returns the cache root the store operates on.
func (s *FSContentStore) Root() *root.Root {
	return s.root
}

// Algorithm returns the default digest algorithm for writes.
func (s *FSContentStore) Algorithm() digest.Algorithm {
	return s.algorithm
}

// EntryPath returns the location of the entry for id on the backing
// filesystem. The entry may not exist.
func (s *FSContentStore) EntryPath(id digest.Digest) (string, error) {
	if err := content.ValidateDigest(id); err != nil {
		return "", err
	}
	return s.root.RealPath(s.root.EntryPath(id)), nil
}

// Close releases store resources. The store holds no open handles, so this
// only exists to satisfy io.Closer for callers that manage stores generically.
func (s *FSContentStore) Close() error {
	return nil
}

// statEntry validates id and returns the addressed path with its Lstat
// result. A missing entry yields (rel, nil, nil).
func (s *FSContentStore) statEntry(id digest.Digest) (string, os.FileInfo, error) {
	if err := content.ValidateDigest(id); err != nil {
		return "", nil, err
	}

	rel := s.root.EntryPath(id)
	info, err := lstat(s.fs, rel)
	if err != nil {
		if os.IsNotExist(err) {
			return rel, nil, nil
		}
		return rel, nil, content.NewIOError("stat", rel, err)
	}
	return rel, info, nil
}

// lstat uses Lstat where the filesystem supports it so a symlink planted at
// an addressed path is never followed.
func lstat(fs afero.Fs, name string) (os.FileInfo, error) {
	if lfs, ok := fs.(afero.Lstater); ok {
		info, _, err := lfs.LstatIfPossible(name)
		return info, err
	}
	return fs.Stat(name)
}
