// Package address maps integrity digests to cache-relative file paths.
//
// Layout:
//
//	content-v1/<algorithm>/<hex[0:2]>/<hex[2:4]>/<hex[4:]>
//
// For example, sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824
// lives at:
//
//	content-v1/sha256/2c/f2/4dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824
//
// The mapping is pure and performs no I/O. Two levels of two-character shards
// spread entries over 65536 leaf directories, which keeps every directory
// small even for caches with millions of entries. The algorithm and the full
// hex string are both recoverable from a path, so Parse is the exact inverse
// of Path.
//
// The layout constants are part of the on-disk format: changing any of them
// requires a new Layout version directory.
package address

import (
	// Register the hash implementations behind digest.SHA256/SHA384/SHA512.
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
)

const (
	// Layout is the versioned directory that holds every stored entry.
	Layout = "content-v1"

	// ShardWidth is the number of hex characters per shard directory.
	ShardWidth = 2

	// ShardDepth is the number of shard directory levels.
	ShardDepth = 2
)

// Path returns the cache-relative path of the entry addressed by d.
//
// d must be valid (see digest.Digest.Validate). Path does not check this;
// callers validate digests at the API boundary.
func Path(d digest.Digest) string {
	hex := d.Encoded()
	parts := make([]string, 0, ShardDepth+3)
	parts = append(parts, Layout, d.Algorithm().String())
	parts = append(parts, splitShards(hex)...)
	parts = append(parts, hex[ShardWidth*ShardDepth:])
	return filepath.Join(parts...)
}

// Dir returns the cache-relative directory that contains the entry for d.
func Dir(d digest.Digest) string {
	return filepath.Dir(Path(d))
}

// Shards returns the shard directory names for d, outermost first.
func Shards(d digest.Digest) []string {
	return splitShards(d.Encoded())
}

// AlgorithmDir returns the cache-relative directory holding every entry
// hashed with alg.
func AlgorithmDir(alg digest.Algorithm) string {
	return filepath.Join(Layout, alg.String())
}

// Parse recovers the digest from a cache-relative entry path.
//
// It rejects paths outside Layout, paths with the wrong number of segments or
// wrong shard width, and paths whose reassembled digest does not validate.
func Parse(rel string) (digest.Digest, error) {
	segments := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	if len(segments) != ShardDepth+3 {
		return "", fmt.Errorf("path %q: expected %d segments, got %d", rel, ShardDepth+3, len(segments))
	}

	if segments[0] != Layout {
		return "", fmt.Errorf("path %q: not under %s", rel, Layout)
	}

	var hex strings.Builder
	for _, shard := range segments[2 : 2+ShardDepth] {
		if len(shard) != ShardWidth {
			return "", fmt.Errorf("path %q: shard %q is not %d characters", rel, shard, ShardWidth)
		}
		hex.WriteString(shard)
	}
	hex.WriteString(segments[len(segments)-1])

	d := digest.NewDigestFromEncoded(digest.Algorithm(segments[1]), hex.String())
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("path %q: %w", rel, err)
	}
	return d, nil
}

func splitShards(hex string) []string {
	shards := make([]string, ShardDepth)
	for i := range shards {
		shards[i] = hex[i*ShardWidth : (i+1)*ShardWidth]
	}
	return shards
}
