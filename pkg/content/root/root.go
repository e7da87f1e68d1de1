// Package root manages the on-disk cache root.
//
// A cache root is a directory with two children:
//
//	<root>/tmp/         private staging area for in-flight writes
//	<root>/content-v1/  published entries, addressed by digest
//
// All I/O goes through an afero.Fs scoped to the root directory, so nothing
// built on a Root can reach outside of it. The root is created on first use
// and never destroyed implicitly.
package root

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/marmos91/dittocas/pkg/content"
	"github.com/marmos91/dittocas/pkg/content/address"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// TempDirName is the staging directory relative to the root.
const TempDirName = "tmp"

const (
	defaultDirMode  os.FileMode = 0755
	defaultFileMode os.FileMode = 0644
)

// Root is a handle to an established cache root.
//
// A Root is immutable after Open and safe for concurrent use. Several Roots
// (in this or other processes) may point at the same directory.
type Root struct {
	path     string
	base     afero.Fs
	fs       afero.Fs
	dirMode  os.FileMode
	fileMode os.FileMode
}

// Option configures Open.
type Option func(*Root)

// WithFs selects the filesystem the root lives on. The default is the OS
// filesystem; tests and the "memory" store type use afero.NewMemMapFs().
func WithFs(fs afero.Fs) Option {
	return func(r *Root) {
		r.base = fs
	}
}

// WithDirMode sets the permission bits for directories the root creates.
func WithDirMode(mode os.FileMode) Option {
	return func(r *Root) {
		r.dirMode = mode
	}
}

// WithFileMode sets the permission bits for temporary (and thus published)
// files.
func WithFileMode(mode os.FileMode) Option {
	return func(r *Root) {
		r.fileMode = mode
	}
}

// Open establishes the cache root at path, creating path, path/tmp and
// path/content-v1 (with parents) as needed.
//
// Returns an error wrapping content.ErrRootUnavailable when path is empty,
// when path or one of its required children exists but is not a directory,
// or when the directories cannot be created (e.g. permission denied).
func Open(ctx context.Context, path string, opts ...Option) (*Root, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path", content.ErrRootUnavailable)
	}

	r := &Root{
		path:     filepath.Clean(path),
		base:     afero.NewOsFs(),
		dirMode:  defaultDirMode,
		fileMode: defaultFileMode,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := ensureDir(r.base, r.path, r.dirMode); err != nil {
		return nil, fmt.Errorf("cache root %s: %w: %w", r.path, content.ErrRootUnavailable, err)
	}

	r.fs = afero.NewBasePathFs(r.base, r.path)

	for _, dir := range []string{TempDirName, address.Layout} {
		if err := ensureDir(r.fs, dir, r.dirMode); err != nil {
			return nil, fmt.Errorf("cache root %s: %w: %w", r.path, content.ErrRootUnavailable, err)
		}
	}

	return r, nil
}

// ensureDir creates dir unless it already exists as a directory.
//
// MkdirAll alone is not enough: some afero backends report success when a
// regular file already occupies the path.
func ensureDir(fs afero.Fs, dir string, mode os.FileMode) error {
	info, err := fs.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s exists and is not a directory", dir)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return err
	}
	return fs.MkdirAll(dir, mode)
}

// Path returns the root directory on the backing filesystem.
func (r *Root) Path() string {
	return r.path
}

// Fs returns the filesystem scoped to the root. Every path passed to it is
// relative to the root.
func (r *Root) Fs() afero.Fs {
	return r.fs
}

// TempDir returns the staging directory, relative to the root.
func (r *Root) TempDir() string {
	return TempDirName
}

// ContentDir returns the published content directory, relative to the root.
func (r *Root) ContentDir() string {
	return address.Layout
}

// EntryPath returns the root-relative addressed path of d.
func (r *Root) EntryPath(d digest.Digest) string {
	return address.Path(d)
}

// RealPath returns the location of a root-relative path on the backing
// filesystem.
func (r *Root) RealPath(rel string) string {
	return filepath.Join(r.path, rel)
}

// CreateTemp creates a new, empty, exclusively-owned file in the staging
// directory. The file is named by a random UUID so concurrent writers never
// collide. It returns the open file and its root-relative path.
func (r *Root) CreateTemp() (afero.File, string, error) {
	name := filepath.Join(TempDirName, uuid.NewString())
	f, err := r.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, r.fileMode)
	if err != nil {
		return nil, "", content.NewIOError("create temp", name, err)
	}
	return f, name, nil
}

// EnsureShard creates the shard directories that will contain the entry at
// rel. It is safe to call concurrently for the same shard.
func (r *Root) EnsureShard(rel string) error {
	dir := filepath.Dir(rel)
	if err := r.fs.MkdirAll(dir, r.dirMode); err != nil {
		return content.NewIOError("mkdir", dir, err)
	}
	return nil
}

// TempFiles lists the files currently in the staging directory.
func (r *Root) TempFiles() ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(r.fs, TempDirName)
	if err != nil {
		return nil, content.NewIOError("readdir", TempDirName, err)
	}
	return infos, nil
}

func (r *Root) String() string {
	if _, ok := r.base.(*afero.MemMapFs); ok {
		return "memory@" + r.path
	}
	return "filesystem@" + r.path
}

// OnDisk reports whether the root lives on the OS filesystem.
func (r *Root) OnDisk() bool {
	_, ok := r.base.(*afero.OsFs)
	return ok
}
