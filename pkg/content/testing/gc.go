package testing

import (
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGCTests executes GarbageCollectableStore tests.
func (suite *StoreTestSuite) RunGCTests(t *testing.T) {
	t.Run("ListAllContent_Empty", suite.testListAllContentEmpty)
	t.Run("ListAllContent_AfterWrites", suite.testListAllContentAfterWrites)
	t.Run("DeleteBatch", suite.testDeleteBatch)
	t.Run("DeleteBatch_Cancelled", suite.testDeleteBatchCancelled)
}

func (suite *StoreTestSuite) collectable(t *testing.T) (content.GarbageCollectableStore, content.WritableContentStore) {
	t.Helper()
	_, writable := suite.writable(t)
	gc, ok := writable.(content.GarbageCollectableStore)
	if !ok {
		t.Skip("Store does not implement GarbageCollectableStore")
	}
	return gc, writable
}

func (suite *StoreTestSuite) testListAllContentEmpty(t *testing.T) {
	gc, _ := suite.collectable(t)

	all, err := gc.ListAllContent(testContext())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func (suite *StoreTestSuite) testListAllContentAfterWrites(t *testing.T) {
	gc, writable := suite.collectable(t)

	want := []digest.Digest{
		mustWriteContent(t, writable, []byte("one")),
		mustWriteContent(t, writable, []byte("two")),
		mustWriteExpected(t, writable, []byte("three"), digest.SHA512.FromString("three")),
	}

	all, err := gc.ListAllContent(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, want, all)
}

func (suite *StoreTestSuite) testDeleteBatch(t *testing.T) {
	gc, writable := suite.collectable(t)

	keep := mustWriteContent(t, writable, []byte("keep"))
	drop1 := mustWriteContent(t, writable, []byte("drop1"))
	drop2 := mustWriteContent(t, writable, []byte("drop2"))
	absent := digest.FromString("absent")

	failures, err := gc.DeleteBatch(testContext(), []digest.Digest{drop1, drop2, absent})
	require.NoError(t, err)
	assert.Empty(t, failures)

	all, err := gc.ListAllContent(testContext())
	require.NoError(t, err)
	assert.Equal(t, []digest.Digest{keep}, all)
}

func (suite *StoreTestSuite) testDeleteBatchCancelled(t *testing.T) {
	gc, writable := suite.collectable(t)

	ids := []digest.Digest{
		mustWriteContent(t, writable, []byte("a")),
		mustWriteContent(t, writable, []byte("b")),
	}

	ctx, cancel := cancelledContext()
	defer cancel()

	failures, err := gc.DeleteBatch(ctx, ids)
	require.Error(t, err)
	assert.Len(t, failures, len(ids))
}
