package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// mustWriteContent writes data without an expected digest and fails the test
// if it errors.
func mustWriteContent(t *testing.T, store content.WritableContentStore, data []byte) digest.Digest {
	t.Helper()
	dgst, err := store.WriteContent(testContext(), bytes.NewReader(data), "")
	require.NoError(t, err, "WriteContent should succeed")
	return dgst
}

// mustWriteExpected writes data that must hash to expected.
func mustWriteExpected(t *testing.T, store content.WritableContentStore, data []byte, expected digest.Digest) digest.Digest {
	t.Helper()
	dgst, err := store.WriteContent(testContext(), bytes.NewReader(data), expected)
	require.NoError(t, err, "WriteContent with expected digest should succeed")
	require.Equal(t, expected, dgst, "WriteContent should return the expected digest")
	return dgst
}

// mustReadContent reads content and fails the test if it errors.
func mustReadContent(t *testing.T, store content.ContentStore, id digest.Digest) []byte {
	t.Helper()
	reader, err := store.ReadContent(testContext(), id)
	require.NoError(t, err, "ReadContent should succeed")
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err, "Reading content should succeed")
	return data
}

// mustGetSize gets content size and fails the test if it errors.
func mustGetSize(t *testing.T, store content.ContentStore, id digest.Digest) uint64 {
	t.Helper()
	size, err := store.GetContentSize(testContext(), id)
	require.NoError(t, err, "GetContentSize should succeed")
	return size
}

// mustDelete deletes content and fails the test if it errors.
func mustDelete(t *testing.T, store content.WritableContentStore, id digest.Digest) {
	t.Helper()
	err := store.Delete(testContext(), id)
	require.NoError(t, err, "Delete should succeed")
}

// assertContentExists checks if content exists.
func assertContentExists(t *testing.T, store content.ContentStore, id digest.Digest, expected bool) {
	t.Helper()
	exists, err := store.ContentExists(testContext(), id)
	require.NoError(t, err, "ContentExists should not error")
	assert.Equal(t, expected, exists, "Content existence mismatch for %s", id)
}

// assertContentEquals checks if content matches expected data.
func assertContentEquals(t *testing.T, store content.ContentStore, id digest.Digest, expected []byte) {
	t.Helper()
	actual := mustReadContent(t, store, id)
	assert.True(t, bytes.Equal(expected, actual), "Content data mismatch for %s (expected %d bytes, got %d)",
		id, len(expected), len(actual))
}

// assertContentSize checks if content size matches expected.
func assertContentSize(t *testing.T, store content.ContentStore, id digest.Digest, expected uint64) {
	t.Helper()
	actual := mustGetSize(t, store, id)
	assert.Equal(t, expected, actual, "Content size mismatch")
}

// generateTestData creates test data of specified size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = byte(i % 251)
	}
	return data
}

// cancelledContext returns a context that is already cancelled.
func cancelledContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(testContext())
	cancel()
	return ctx, cancel
}

// errReader returns data, then fails with err instead of io.EOF.
type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}
