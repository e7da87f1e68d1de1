package gc

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/marmos91/dittocas/pkg/content/address"
	contentfs "github.com/marmos91/dittocas/pkg/content/fs"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *contentfs.FSContentStore {
	t.Helper()
	store, err := contentfs.NewFSContentStore(context.Background(), contentfs.FSContentStoreConfig{
		Path: "/cache",
		Fs:   afero.NewMemMapFs(),
	})
	require.NoError(t, err)
	return store
}

func put(t *testing.T, store *contentfs.FSContentStore, data string) digest.Digest {
	t.Helper()
	dgst, err := store.WriteBytes(context.Background(), []byte(data), "")
	require.NoError(t, err)
	return dgst
}

func corrupt(t *testing.T, store *contentfs.FSContentStore, dgst digest.Digest) {
	t.Helper()
	require.NoError(t, afero.WriteFile(store.Root().Fs(), address.Path(dgst), []byte("bit rot"), 0644))
}

func staleTemp(t *testing.T, store *contentfs.FSContentStore, age time.Duration) string {
	t.Helper()
	f, name, err := store.Root().CreateTemp()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	when := time.Now().Add(-age)
	require.NoError(t, store.Root().Fs().Chtimes(name, when, when))
	return name
}

func exists(t *testing.T, store *contentfs.FSContentStore, dgst digest.Digest) bool {
	t.Helper()
	ok, err := store.ContentExists(context.Background(), dgst)
	require.NoError(t, err)
	return ok
}

func TestNewCollector(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := NewCollector(newStore(t), nil, Config{}, nil)
		require.NoError(t, err)

		cfg := c.Config()
		assert.Equal(t, time.Hour, cfg.Interval)
		assert.Equal(t, 24*time.Hour, cfg.TempMaxAge)
		assert.Equal(t, 1000, cfg.BatchSize)
		assert.Equal(t, 4, cfg.Concurrency)
	})

	t.Run("StoreWithoutListing", func(t *testing.T) {
		_, err := NewCollector(readOnlyStore{}, nil, Config{}, nil)
		assert.Error(t, err)
	})
}

func TestRunNowSweepsStaleTemp(t *testing.T) {
	store := newStore(t)
	stale := staleTemp(t, store, 48*time.Hour)
	fresh := staleTemp(t, store, time.Minute)

	c, err := NewCollector(store, nil, Config{}, nil)
	require.NoError(t, err)

	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TempSwept)

	fs := store.Root().Fs()
	ok, _ := afero.Exists(fs, stale)
	assert.False(t, ok)
	ok, _ = afero.Exists(fs, fresh)
	assert.True(t, ok, "temp files younger than TempMaxAge belong to live writers")
}

func TestRunNowRemovesCorrupted(t *testing.T) {
	store := newStore(t)
	good := put(t, store, "good")
	bad := put(t, store, "bad")
	corrupt(t, store, bad)

	c, err := NewCollector(store, nil, Config{VerifyContent: true, Concurrency: 2}, nil)
	require.NoError(t, err)

	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(2), stats.ExistingCount)
	assert.Equal(t, uint64(1), stats.VerifiedCount)
	assert.Equal(t, uint64(1), stats.CorruptedCount)
	assert.Equal(t, uint64(1), stats.DeletedCount)
	assert.True(t, exists(t, store, good))
	assert.False(t, exists(t, store, bad))
}

func TestRunNowThrottledVerification(t *testing.T) {
	store := newStore(t)
	good := put(t, store, "healthy entry")
	bad := put(t, store, "rotting entry")
	corrupt(t, store, bad)

	c, err := NewCollector(store, nil, Config{VerifyContent: true, VerifyBandwidth: 1 << 20}, nil)
	require.NoError(t, err)

	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.CorruptedCount)
	assert.True(t, exists(t, store, good))
	assert.False(t, exists(t, store, bad))
}

func TestRunNowRemovesUnreferenced(t *testing.T) {
	store := newStore(t)
	keep := put(t, store, "keep")
	drop1 := put(t, store, "drop-1")
	drop2 := put(t, store, "drop-2")

	refs := ReferenceFunc(func(context.Context) ([]digest.Digest, error) {
		return []digest.Digest{keep}, nil
	})

	c, err := NewCollector(store, refs, Config{BatchSize: 1}, nil)
	require.NoError(t, err)

	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.ReferencedCount)
	assert.Equal(t, uint64(2), stats.OrphanedCount)
	assert.Equal(t, uint64(2), stats.DeletedCount)
	assert.True(t, exists(t, store, keep))
	assert.False(t, exists(t, store, drop1))
	assert.False(t, exists(t, store, drop2))
}

func TestRunNowCorruptedAndUnreferencedCountedOnce(t *testing.T) {
	store := newStore(t)
	bad := put(t, store, "bad")
	corrupt(t, store, bad)

	refs := ReferenceFunc(func(context.Context) ([]digest.Digest, error) { return nil, nil })
	c, err := NewCollector(store, refs, Config{VerifyContent: true}, nil)
	require.NoError(t, err)

	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.CorruptedCount)
	assert.Equal(t, uint64(0), stats.OrphanedCount)
	assert.Equal(t, uint64(1), stats.DeletedCount)
	assert.Zero(t, stats.FailedCount)
}

func TestRunNowDryRun(t *testing.T) {
	store := newStore(t)
	bad := put(t, store, "bad")
	corrupt(t, store, bad)
	orphan := put(t, store, "orphan")
	tmp := staleTemp(t, store, 72*time.Hour)

	refs := ReferenceFunc(func(context.Context) ([]digest.Digest, error) { return nil, nil })
	c, err := NewCollector(store, refs, Config{DryRun: true, VerifyContent: true}, nil)
	require.NoError(t, err)

	stats, err := c.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.CorruptedCount)
	assert.Equal(t, uint64(1), stats.OrphanedCount)
	assert.Zero(t, stats.DeletedCount)
	assert.Zero(t, stats.TempSwept)
	assert.Contains(t, stats.Summary(), "(dry run)")

	assert.True(t, exists(t, store, bad))
	assert.True(t, exists(t, store, orphan))
	ok, _ := afero.Exists(store.Root().Fs(), tmp)
	assert.True(t, ok)
}

func TestRunNowReferenceSourceFailure(t *testing.T) {
	store := newStore(t)
	dgst := put(t, store, "data")

	boom := errors.New("catalog offline")
	refs := ReferenceFunc(func(context.Context) ([]digest.Digest, error) { return nil, boom })

	metrics := &recordingMetrics{}
	c, err := NewCollector(store, refs, Config{}, metrics)
	require.NoError(t, err)

	_, err = c.RunNow(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, exists(t, store, dgst), "nothing is deleted without a reference set")

	require.Len(t, metrics.errs, 1)
	assert.ErrorIs(t, metrics.errs[0], boom)
}

func TestRunNowCancelled(t *testing.T) {
	store := newStore(t)
	put(t, store, "data")

	c, err := NewCollector(store, nil, Config{VerifyContent: true}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.RunNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartStop(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		c, err := NewCollector(newStore(t), nil, Config{}, nil)
		require.NoError(t, err)

		c.Start()
		assert.NoError(t, c.Stop(context.Background()))
	})

	t.Run("StopWithoutStart", func(t *testing.T) {
		c, err := NewCollector(newStore(t), nil, Config{Enabled: true}, nil)
		require.NoError(t, err)
		assert.NoError(t, c.Stop(context.Background()))
	})

	t.Run("PeriodicRuns", func(t *testing.T) {
		store := newStore(t)
		metrics := &recordingMetrics{}
		c, err := NewCollector(store, nil, Config{Enabled: true, Interval: 10 * time.Millisecond}, metrics)
		require.NoError(t, err)

		c.Start()
		c.Start()

		assert.Eventually(t, func() bool { return metrics.runs() >= 2 }, 2*time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, c.Stop(ctx))
		require.NoError(t, c.Stop(ctx), "second stop is a no-op")
	})
}

// putLarge stores size bytes so a throttled verification of the entry takes
// several seconds.
func putLarge(t *testing.T, store *contentfs.FSContentStore, size int) digest.Digest {
	t.Helper()
	dgst, err := store.WriteBytes(context.Background(), bytes.Repeat([]byte{'v'}, size), "")
	require.NoError(t, err)
	return dgst
}

func TestStopCancelsRunningCollection(t *testing.T) {
	store := newStore(t)
	dgst := putLarge(t, store, 512*1024)

	c, err := NewCollector(store, nil, Config{
		Enabled:         true,
		Interval:        10 * time.Millisecond,
		VerifyContent:   true,
		VerifyBandwidth: 32 * 1024,
	}, nil)
	require.NoError(t, err)

	c.Start()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, c.Stop(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.True(t, exists(t, store, dgst), "an interrupted verification removes nothing")
}

func TestStartDuringManualRun(t *testing.T) {
	store := newStore(t)
	putLarge(t, store, 512*1024)

	c, err := NewCollector(store, nil, Config{
		Enabled:         true,
		Interval:        time.Hour,
		VerifyContent:   true,
		VerifyBandwidth: 32 * 1024,
	}, nil)
	require.NoError(t, err)

	runCtx, cancelRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		_, err := c.RunNow(runCtx)
		runDone <- err
	}()
	time.Sleep(100 * time.Millisecond)

	started := make(chan struct{})
	go func() {
		c.Start()
		close(started)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked behind a manual run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	cancelRun()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("manual run ignored cancellation")
	}
}

func TestRunNowWaitsForContextWhileBusy(t *testing.T) {
	store := newStore(t)
	putLarge(t, store, 512*1024)

	c, err := NewCollector(store, nil, Config{VerifyContent: true, VerifyBandwidth: 32 * 1024}, nil)
	require.NoError(t, err)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go func() { _, _ = c.RunNow(runCtx) }()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.RunNow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStatsSummary(t *testing.T) {
	start := time.Now()
	s := &Stats{StartTime: start, EndTime: start.Add(2 * time.Second), TempSwept: 3, DeletedCount: 1}

	assert.Equal(t, 2*time.Second, s.Duration())
	assert.Contains(t, s.Summary(), "temp_swept=3")
	assert.Contains(t, s.Summary(), "deleted=1")
	assert.NotContains(t, s.Summary(), "dry run")
}

// readOnlyStore implements content.ContentStore only.
type readOnlyStore struct{ content.ContentStore }

type recordingMetrics struct {
	mu   sync.Mutex
	n    int
	errs []error
}

func (m *recordingMetrics) ObserveRun(_ *Stats, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	if err != nil {
		m.errs = append(m.errs, err)
	}
}

func (m *recordingMetrics) runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}
