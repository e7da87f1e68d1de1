package testing

import (
	"io"
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunVerifyTests executes VerifyingContentStore tests.
func (suite *StoreTestSuite) RunVerifyTests(t *testing.T) {
	t.Run("Verify_Intact", suite.testVerifyIntact)
	t.Run("Verify_NotFound", suite.testVerifyNotFound)
	t.Run("ReadContentVerified_Streams", suite.testReadContentVerifiedStreams)
}

func (suite *StoreTestSuite) verifying(t *testing.T) (content.VerifyingContentStore, content.WritableContentStore) {
	t.Helper()
	_, writable := suite.writable(t)
	verifying, ok := writable.(content.VerifyingContentStore)
	if !ok {
		t.Skip("Store does not implement VerifyingContentStore")
	}
	return verifying, writable
}

func (suite *StoreTestSuite) testVerifyIntact(t *testing.T) {
	verifying, writable := suite.verifying(t)

	dgst := mustWriteContent(t, writable, generateTestData(100*1024))
	assert.NoError(t, verifying.Verify(testContext(), dgst))
}

func (suite *StoreTestSuite) testVerifyNotFound(t *testing.T) {
	verifying, _ := suite.verifying(t)

	err := verifying.Verify(testContext(), digest.FromString("never written"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testReadContentVerifiedStreams(t *testing.T) {
	verifying, writable := suite.verifying(t)

	data := generateTestData(70 * 1024)
	dgst := mustWriteContent(t, writable, data)

	reader, err := verifying.ReadContentVerified(testContext(), dgst)
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Reads past the end keep reporting io.EOF.
	n, err := reader.Read(make([]byte, 8))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}
