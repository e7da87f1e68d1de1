package address

import (
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloSHA256 = "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestPath(t *testing.T) {
	t.Run("HelloLayout", func(t *testing.T) {
		got := Path(digest.Digest(helloSHA256))
		want := filepath.Join("content-v1", "sha256", "2c", "f2",
			"4dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
		assert.Equal(t, want, got)
	})

	t.Run("Deterministic", func(t *testing.T) {
		d := digest.FromString("payload")
		assert.Equal(t, Path(d), Path(d))
	})

	t.Run("AlgorithmIsPartOfPath", func(t *testing.T) {
		d256 := digest.SHA256.FromString("x")
		d512 := digest.SHA512.FromString("x")
		assert.NotEqual(t, Path(d256), Path(d512))
		assert.Equal(t, "sha512", filepath.Base(AlgorithmDir(d512.Algorithm())))
	})

	t.Run("DistinctDigestsDistinctPaths", func(t *testing.T) {
		seen := make(map[string]digest.Digest)
		for _, s := range []string{"", "a", "b", "hello", "payload", "x", "y"} {
			for _, alg := range []digest.Algorithm{digest.SHA256, digest.SHA384, digest.SHA512} {
				d := alg.FromString(s)
				p := Path(d)
				if prev, ok := seen[p]; ok {
					t.Fatalf("path collision between %s and %s", prev, d)
				}
				seen[p] = d
			}
		}
	})

	t.Run("DirAndShards", func(t *testing.T) {
		d := digest.Digest(helloSHA256)
		assert.Equal(t, []string{"2c", "f2"}, Shards(d))
		assert.Equal(t, filepath.Join("content-v1", "sha256", "2c", "f2"), Dir(d))
	})
}

func TestParse(t *testing.T) {
	t.Run("InverseOfPath", func(t *testing.T) {
		for _, alg := range []digest.Algorithm{digest.SHA256, digest.SHA384, digest.SHA512} {
			d := alg.FromString("round trip")
			got, err := Parse(Path(d))
			require.NoError(t, err)
			assert.Equal(t, d, got)
		}
	})

	tests := []struct {
		name string
		rel  string
	}{
		{"WrongLayout", filepath.Join("content-v2", "sha256", "2c", "f2", "4dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")},
		{"TooShallow", filepath.Join("content-v1", "sha256", "2cf2", "4dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")},
		{"WrongShardWidth", filepath.Join("content-v1", "sha256", "2cf", "2", "4dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")},
		{"TruncatedHex", filepath.Join("content-v1", "sha256", "2c", "f2", "4dba")},
		{"UppercaseHex", filepath.Join("content-v1", "sha256", "2C", "F2", "4DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824")},
		{"UnknownAlgorithm", filepath.Join("content-v1", "md5", "2c", "f2", "4dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")},
		{"TempFile", filepath.Join("tmp", "5b1c0c3e-6f0f-4a43-9d0c-7f4b7c2b9e1a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.rel)
			assert.Error(t, err)
		})
	}
}
