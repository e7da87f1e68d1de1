package testing

import (
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes read-side tests that need no prior writes.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("ReadContent_NotFound", suite.testReadContentNotFound)
	t.Run("GetContentSize_NotFound", suite.testGetContentSizeNotFound)
	t.Run("ContentExists_False", suite.testContentExistsFalse)
	t.Run("InvalidDigest", suite.testInvalidDigest)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) testReadContentNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.ReadContent(testContext(), digest.FromString("never written"))
	require.Error(t, err)
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testGetContentSizeNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.GetContentSize(testContext(), digest.FromString("never written"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testContentExistsFalse(t *testing.T) {
	store := suite.NewStore()
	assertContentExists(t, store, digest.FromString("never written"), false)
}

func (suite *StoreTestSuite) testInvalidDigest(t *testing.T) {
	store := suite.NewStore()

	for _, bad := range []digest.Digest{
		"",
		"hello",
		"sha256:zz",
		"sha256:2cf24dba",
		"md5:5d41402abc4b2a76b9719d911017c592",
	} {
		_, err := store.ReadContent(testContext(), bad)
		assert.ErrorIs(t, err, content.ErrInvalidDigest, "ReadContent(%q)", bad)

		_, err = store.ContentExists(testContext(), bad)
		assert.ErrorIs(t, err, content.ErrInvalidDigest, "ContentExists(%q)", bad)
	}
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.NewStore()

	ctx, cancel := cancelledContext()
	defer cancel()

	_, err := store.ReadContent(ctx, digest.FromString("hello"))
	assert.Error(t, err)
	_, err = store.ContentExists(ctx, digest.FromString("hello"))
	assert.Error(t, err)
}
