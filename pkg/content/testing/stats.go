package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStatsTests executes GetStorageStats tests.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("Empty", suite.testStatsEmpty)
	t.Run("AfterWrites", suite.testStatsAfterWrites)
}

func (suite *StoreTestSuite) testStatsEmpty(t *testing.T) {
	store := suite.NewStore()

	stats, err := store.GetStorageStats(testContext())
	require.NoError(t, err)
	assert.Zero(t, stats.ContentCount)
	assert.Zero(t, stats.UsedSize)
	assert.Zero(t, stats.AverageSize)
}

func (suite *StoreTestSuite) testStatsAfterWrites(t *testing.T) {
	store, writable := suite.writable(t)

	mustWriteContent(t, writable, generateTestData(100))
	mustWriteContent(t, writable, generateTestData(300))
	// Duplicate: counted once.
	mustWriteContent(t, writable, generateTestData(300))

	stats, err := store.GetStorageStats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.ContentCount)
	assert.Equal(t, uint64(400), stats.UsedSize)
	assert.Equal(t, uint64(200), stats.AverageSize)
	assert.Zero(t, stats.TempCount, "successful writes must not leave temporary files")
}
