package testing

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConcurrencyTests executes tests with many goroutines sharing one store.
func (suite *StoreTestSuite) RunConcurrencyTests(t *testing.T) {
	t.Run("IdenticalWriters", suite.testIdenticalWriters)
	t.Run("DistinctWriters", suite.testDistinctWriters)
	t.Run("ReadersSeeCompleteEntries", suite.testReadersSeeCompleteEntries)
	t.Run("WriteDeleteRace", suite.testWriteDeleteRace)
}

func (suite *StoreTestSuite) testIdenticalWriters(t *testing.T) {
	store, writable := suite.writable(t)

	const writers = 8
	data := []byte("payload")

	var wg sync.WaitGroup
	digests := make([]digest.Digest, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			digests[i], errs[i] = writable.WriteContent(testContext(), bytes.NewReader(data), "")
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i], "writer %d", i)
		assert.Equal(t, digest.FromBytes(data), digests[i], "writer %d", i)
	}
	assertContentEquals(t, store, digests[0], data)

	if gc, ok := store.(content.GarbageCollectableStore); ok {
		all, err := gc.ListAllContent(testContext())
		require.NoError(t, err)
		assert.Len(t, all, 1)
	}
}

func (suite *StoreTestSuite) testDistinctWriters(t *testing.T) {
	store, writable := suite.writable(t)

	const writers = 16

	var wg sync.WaitGroup
	digests := make([]digest.Digest, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			digests[i], errs[i] = writable.WriteContent(testContext(), bytes.NewReader(generateTestData(1000+i)), "")
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i], "writer %d", i)
		assertContentSize(t, store, digests[i], uint64(1000+i))
	}
}

func (suite *StoreTestSuite) testReadersSeeCompleteEntries(t *testing.T) {
	store, writable := suite.writable(t)

	data := generateTestData(512 * 1024)
	dgst := digest.FromBytes(data)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	var partial []int

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				reader, err := store.ReadContent(testContext(), dgst)
				if err != nil {
					continue
				}
				got, err := io.ReadAll(reader)
				_ = reader.Close()
				if err == nil && !bytes.Equal(got, data) {
					mu.Lock()
					partial = append(partial, len(got))
					mu.Unlock()
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		_, err := writable.WriteContent(testContext(), bytes.NewReader(data), dgst)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Empty(t, partial, "readers observed incomplete entries")
}

func (suite *StoreTestSuite) testWriteDeleteRace(t *testing.T) {
	store, writable := suite.writable(t)

	data := []byte("contended")
	dgst := digest.FromBytes(data)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := writable.WriteContent(testContext(), bytes.NewReader(data), "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, writable.Delete(testContext(), dgst))
		}()
	}
	wg.Wait()

	// The entry is either fully present or absent, never corrupt.
	reader, err := store.ReadContent(testContext(), dgst)
	if errors.Is(err, content.ErrContentNotFound) {
		return
	}
	require.NoError(t, err)
	defer reader.Close()
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
