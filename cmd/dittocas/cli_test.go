package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/marmos91/dittocas/pkg/content/address"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloDigest = "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

type cli struct {
	t          *testing.T
	configPath string
	cacheDir   string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	configPath := filepath.Join(dir, "config.yaml")

	body := "logging:\n  level: ERROR\ncache:\n  fsync: false\n  filesystem:\n    path: " + cacheDir + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))

	return &cli{t: t, configPath: configPath, cacheDir: cacheDir}
}

func (c *cli) run(stdin io.Reader, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--config", c.configPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(stdin io.Reader, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	require.NoError(c.t, err, "dittocas %s", strings.Join(args, " "))
	return out
}

func TestPutGet(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(strings.NewReader("hello"), "put")
	assert.Equal(t, helloDigest+"\n", out)

	assert.Equal(t, "hello", c.mustRun(nil, "get", helloDigest))
	assert.Equal(t, "hello", c.mustRun(nil, "get", "--verify", helloDigest))

	t.Run("FromFile", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "in")
		require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))
		assert.Equal(t, helloDigest+"\n", c.mustRun(nil, "put", src))
	})

	t.Run("ToFile", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "out")
		c.mustRun(nil, "get", "-o", dst, helloDigest)

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		if runtime.GOOS != "windows" {
			info, err := os.Stat(dst)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
		}
	})

	t.Run("KeepsExistingMode", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("unix permissions")
		}
		dst := filepath.Join(t.TempDir(), "out")
		require.NoError(t, os.WriteFile(dst, []byte("old"), 0600))
		require.NoError(t, os.Chmod(dst, 0640))

		c.mustRun(nil, "get", "-o", dst, helloDigest)

		info, err := os.Stat(dst)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
	})
}

func TestPutExpectMismatch(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(strings.NewReader("x"), "put", "--expect", digest.FromString("y").String())
	require.ErrorIs(t, err, content.ErrIntegrityMismatch)
	assert.Equal(t, exitIntegrity, exitCode(err))

	assert.Empty(t, c.mustRun(nil, "ls"))
}

func TestGetMissing(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(nil, "get", helloDigest)
	require.ErrorIs(t, err, content.ErrContentNotFound)
	assert.Equal(t, exitNotFound, exitCode(err))

	_, err = c.run(nil, "get", "sha256:nothex")
	assert.ErrorIs(t, err, content.ErrInvalidDigest)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestRm(t *testing.T) {
	c := newCLI(t)
	c.mustRun(strings.NewReader("hello"), "put")

	c.mustRun(nil, "rm", helloDigest)
	c.mustRun(nil, "rm", helloDigest)
	assert.Empty(t, c.mustRun(nil, "ls"))

	_, err := c.run(nil, "rm", helloDigest, "bogus")
	assert.ErrorIs(t, err, content.ErrInvalidDigest)
}

func TestPathAndLs(t *testing.T) {
	c := newCLI(t)
	c.mustRun(strings.NewReader("hello"), "put")

	out := c.mustRun(nil, "path", helloDigest)
	assert.Equal(t, filepath.Join(c.cacheDir, address.Path(helloDigest))+"\n", out)

	assert.Equal(t, helloDigest+"\n", c.mustRun(nil, "ls"))
	assert.Contains(t, c.mustRun(nil, "ls", "-l"), "5  "+helloDigest)
}

func TestVerifyAndGCRemoveCorrupted(t *testing.T) {
	c := newCLI(t)
	c.mustRun(strings.NewReader("hello"), "put")
	good := strings.TrimSpace(c.mustRun(strings.NewReader("world"), "put"))

	entry := filepath.Join(c.cacheDir, address.Path(helloDigest))
	require.NoError(t, os.WriteFile(entry, []byte("HELLO"), 0644))

	out, err := c.run(nil, "verify")
	require.ErrorIs(t, err, content.ErrIntegrityMismatch)
	assert.Contains(t, out, "corrupt  "+helloDigest)
	assert.Contains(t, out, "ok       "+good)

	_, err = c.run(nil, "get", "--verify", "-o", filepath.Join(t.TempDir(), "out"), helloDigest)
	assert.ErrorIs(t, err, content.ErrIntegrityMismatch)

	out = c.mustRun(nil, "gc", "--verify", "--dry-run")
	assert.Contains(t, out, "corrupted=1")
	assert.Contains(t, out, "(dry run)")

	out = c.mustRun(nil, "gc", "--verify")
	assert.Contains(t, out, "deleted=1")
	assert.Equal(t, good+"\n", c.mustRun(nil, "ls"))
}

func TestGCKeepFile(t *testing.T) {
	c := newCLI(t)
	keep := strings.TrimSpace(c.mustRun(strings.NewReader("keep"), "put"))
	c.mustRun(strings.NewReader("drop"), "put")

	keepFile := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(keepFile, []byte("# pinned\n"+keep+"  # build output\n\n"), 0644))

	out := c.mustRun(nil, "gc", "--keep", keepFile)
	assert.Contains(t, out, "orphaned=1")
	assert.Equal(t, keep+"\n", c.mustRun(nil, "ls"))

	t.Run("InvalidKeepFile", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.txt")
		require.NoError(t, os.WriteFile(bad, []byte("not-a-digest\n"), 0644))

		_, err := c.run(nil, "gc", "--keep", bad)
		assert.ErrorIs(t, err, content.ErrInvalidDigest)
		assert.Equal(t, keep+"\n", c.mustRun(nil, "ls"), "nothing removed on a bad keep list")
	})
}

func TestStats(t *testing.T) {
	c := newCLI(t)
	c.mustRun(strings.NewReader("hello"), "put")

	out := c.mustRun(nil, "stats")
	assert.Contains(t, out, "entries:     1")
	assert.Contains(t, out, "used:        5 bytes")

	out = c.mustRun(nil, "stats", "--json")
	assert.Contains(t, out, `"content_count": 1`)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "init"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)

	cmd = newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", path, "init"})
	assert.Error(t, cmd.Execute(), "refuses to overwrite without --force")

	cmd = newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", path, "init", "--force"})
	assert.NoError(t, cmd.Execute())
}

func TestInvalidLogLevelFlag(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(nil, "--log-level", "loud", "ls")
	assert.Error(t, err)
}
