package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
)

// StoreTestSuite is a comprehensive test suite for ContentStore implementations.
// It tests the interface contract, not implementation details, making it reusable
// across different backing filesystems (OS disk, in-memory, etc.).
//
// Optional capabilities (WritableContentStore, VerifyingContentStore,
// GarbageCollectableStore) are detected with type assertions; tests for a
// missing capability are skipped.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() content.ContentStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh ContentStore instance
	// for each test. This ensures test isolation.
	NewStore func() content.ContentStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("VerifyOperations", suite.RunVerifyTests)
	t.Run("GarbageCollection", suite.RunGCTests)
	t.Run("Statistics", suite.RunStatsTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
}

// writable returns the store as a WritableContentStore or skips the test.
func (suite *StoreTestSuite) writable(t *testing.T) (content.ContentStore, content.WritableContentStore) {
	t.Helper()
	store := suite.NewStore()
	writable, ok := store.(content.WritableContentStore)
	if !ok {
		t.Skip("Store does not implement WritableContentStore")
	}
	return store, writable
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
