package testing

import (
	"bytes"
	"errors"
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helloSHA256 is the sha256 digest of the five bytes "hello".
const helloSHA256 = digest.Digest("sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")

// RunWriteTests executes all WritableContentStore operation tests.
func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("WriteContent_Hello", suite.testWriteContentHello)
	t.Run("WriteContent_RoundTrip", suite.testWriteContentRoundTrip)
	t.Run("WriteContent_Empty", suite.testWriteContentEmpty)
	t.Run("WriteContent_Dedup", suite.testWriteContentDedup)
	t.Run("WriteContent_ExpectedMatch", suite.testWriteContentExpectedMatch)
	t.Run("WriteContent_ExpectedMismatch", suite.testWriteContentExpectedMismatch)
	t.Run("WriteContent_ExpectedAlgorithm", suite.testWriteContentExpectedAlgorithm)
	t.Run("WriteContent_InvalidExpected", suite.testWriteContentInvalidExpected)
	t.Run("WriteContent_SourceError", suite.testWriteContentSourceError)
	t.Run("WriteContent_Cancelled", suite.testWriteContentCancelled)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Delete_ThenRewrite", suite.testDeleteThenRewrite)
}

// ============================================================================
// WriteContent Tests
// ============================================================================

func (suite *StoreTestSuite) testWriteContentHello(t *testing.T) {
	store, writable := suite.writable(t)

	dgst := mustWriteExpected(t, writable, []byte("hello"), helloSHA256)

	assertContentEquals(t, store, dgst, []byte("hello"))
	assertContentSize(t, store, dgst, 5)
}

func (suite *StoreTestSuite) testWriteContentRoundTrip(t *testing.T) {
	store, writable := suite.writable(t)

	// Sizes straddle the 32KiB streaming chunk.
	for _, size := range []int{1, 13, 32*1024 - 1, 32 * 1024, 32*1024 + 1, 1024*1024 + 3} {
		data := generateTestData(size)

		dgst := mustWriteContent(t, writable, data)
		assert.Equal(t, dgst.Algorithm().FromBytes(data), dgst, "digest of %d bytes", size)

		assertContentEquals(t, store, dgst, data)
		assertContentSize(t, store, dgst, uint64(size))
	}
}

func (suite *StoreTestSuite) testWriteContentEmpty(t *testing.T) {
	store, writable := suite.writable(t)

	dgst := mustWriteContent(t, writable, nil)

	assert.Equal(t, dgst.Algorithm().FromBytes(nil), dgst)
	assertContentExists(t, store, dgst, true)
	assertContentSize(t, store, dgst, 0)
	assertContentEquals(t, store, dgst, []byte{})
}

func (suite *StoreTestSuite) testWriteContentDedup(t *testing.T) {
	store, writable := suite.writable(t)

	data := []byte("identical bytes")
	first := mustWriteContent(t, writable, data)
	second := mustWriteContent(t, writable, data)

	assert.Equal(t, first, second, "identical content must produce identical digests")
	assertContentEquals(t, store, first, data)

	if gc, ok := store.(content.GarbageCollectableStore); ok {
		all, err := gc.ListAllContent(testContext())
		require.NoError(t, err)
		assert.Equal(t, []digest.Digest{first}, all, "dedup must leave exactly one entry")
	}
}

func (suite *StoreTestSuite) testWriteContentExpectedMatch(t *testing.T) {
	store, writable := suite.writable(t)

	data := []byte("payload")
	dgst := mustWriteExpected(t, writable, data, digest.FromBytes(data))

	assertContentEquals(t, store, dgst, data)
}

func (suite *StoreTestSuite) testWriteContentExpectedMismatch(t *testing.T) {
	store, writable := suite.writable(t)

	expected := digest.FromString("y")
	_, err := writable.WriteContent(testContext(), bytes.NewReader([]byte("x")), expected)
	require.Error(t, err)
	AssertErrorIs(t, content.ErrIntegrityMismatch, err)

	var integrityErr *content.IntegrityError
	require.True(t, errors.As(err, &integrityErr), "error should be *content.IntegrityError")
	assert.Equal(t, expected, integrityErr.Expected)
	assert.Equal(t, digest.FromString("x"), integrityErr.Actual)

	// Nothing is published, under either digest.
	assertContentExists(t, store, expected, false)
	assertContentExists(t, store, digest.FromString("x"), false)
}

func (suite *StoreTestSuite) testWriteContentExpectedAlgorithm(t *testing.T) {
	store, writable := suite.writable(t)

	data := []byte("hashed with sha512")
	expected := digest.SHA512.FromBytes(data)

	dgst := mustWriteExpected(t, writable, data, expected)
	assert.Equal(t, digest.SHA512, dgst.Algorithm())
	assertContentEquals(t, store, dgst, data)

	// The same bytes under another algorithm are a different entry.
	assertContentExists(t, store, digest.SHA384.FromBytes(data), false)
}

func (suite *StoreTestSuite) testWriteContentInvalidExpected(t *testing.T) {
	_, writable := suite.writable(t)

	_, err := writable.WriteContent(testContext(), bytes.NewReader([]byte("x")), "sha256:not-hex")
	AssertErrorIs(t, content.ErrInvalidDigest, err)
}

func (suite *StoreTestSuite) testWriteContentSourceError(t *testing.T) {
	store, writable := suite.writable(t)

	boom := errors.New("source exploded")
	data := []byte("partial")
	_, err := writable.WriteContent(testContext(), &errReader{data: data, err: boom}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assertContentExists(t, store, digest.FromBytes(data), false)
}

func (suite *StoreTestSuite) testWriteContentCancelled(t *testing.T) {
	store, writable := suite.writable(t)

	ctx, cancel := cancelledContext()
	defer cancel()

	data := []byte("never stored")
	_, err := writable.WriteContent(ctx, bytes.NewReader(data), "")
	require.Error(t, err)

	assertContentExists(t, store, digest.FromBytes(data), false)
}

// ============================================================================
// Delete Tests
// ============================================================================

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store, writable := suite.writable(t)

	dgst := mustWriteContent(t, writable, []byte("to be deleted"))
	assertContentExists(t, store, dgst, true)

	mustDelete(t, writable, dgst)

	assertContentExists(t, store, dgst, false)
	_, err := store.ReadContent(testContext(), dgst)
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	_, writable := suite.writable(t)

	dgst := mustWriteContent(t, writable, []byte("delete twice"))
	mustDelete(t, writable, dgst)
	mustDelete(t, writable, dgst)

	// Never written at all.
	mustDelete(t, writable, digest.FromString("never written"))
}

func (suite *StoreTestSuite) testDeleteThenRewrite(t *testing.T) {
	store, writable := suite.writable(t)

	data := []byte("comes back")
	dgst := mustWriteContent(t, writable, data)
	mustDelete(t, writable, dgst)
	assertContentExists(t, store, dgst, false)

	again := mustWriteContent(t, writable, data)
	assert.Equal(t, dgst, again)
	assertContentEquals(t, store, dgst, data)
}
