package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyx-health/deid/internal/core/domain"
)

// TestFingerprint_Normalisation tests that whitespace and case variants of
// the same content share one fingerprint, while different prompts do not.
func TestFingerprint_Normalisation(t *testing.T) {
	a := Fingerprint("model/background", "The  patient\tis improving.")
	b := Fingerprint("model/background", "the patient is improving.")
	c := Fingerprint("model/recommendations", "the patient is improving.")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

// TestEnhanceCache_GetOrCompute_Deduplicates tests that N concurrent
// callers with the same fingerprint trigger exactly one compute and all
// receive its result.
func TestEnhanceCache_GetOrCompute_Deduplicates(t *testing.T) {
	cache := NewEnhanceCache(16, time.Hour, nil)

	var computes atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (string, error) {
		computes.Add(1)
		<-release
		return "enhanced", nil
	}

	const callers = 32
	results := make([]string, callers)
	errs := make([]error, callers)
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = cache.GetOrCompute(context.Background(), "fp-1", compute)
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond) // let callers reach the flight
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), computes.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "enhanced", results[i])
	}
	assert.Equal(t, 1, cache.Len())
}

// TestEnhanceCache_GetOrCompute_FailureNotCached tests that a failed
// compute is shared with in-flight subscribers but not stored, so a later
// call retries.
func TestEnhanceCache_GetOrCompute_FailureNotCached(t *testing.T) {
	cache := NewEnhanceCache(16, time.Hour, nil)

	var computes atomic.Int32
	boom := errors.New("upstream unavailable")
	_, err := cache.GetOrCompute(context.Background(), "fp-1", func(ctx context.Context) (string, error) {
		computes.Add(1)
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())

	result, err := cache.GetOrCompute(context.Background(), "fp-1", func(ctx context.Context) (string, error) {
		computes.Add(1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, int32(2), computes.Load())
}

// TestEnhanceCache_GetOrCompute_HitSkipsCompute tests that a second call
// with a cached fingerprint never invokes compute.
func TestEnhanceCache_GetOrCompute_HitSkipsCompute(t *testing.T) {
	cache := NewEnhanceCache(16, time.Hour, nil)

	_, err := cache.GetOrCompute(context.Background(), "fp-1", func(ctx context.Context) (string, error) {
		return "first", nil
	})
	require.NoError(t, err)

	result, err := cache.GetOrCompute(context.Background(), "fp-1", func(ctx context.Context) (string, error) {
		t.Fatal("compute must not run on a cache hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "first", result)
}

// TestEnhanceCache_Eviction tests that the in-memory map stays bounded and
// evicts oldest-first.
func TestEnhanceCache_Eviction(t *testing.T) {
	cache := NewEnhanceCache(8, time.Hour, nil)

	for i := 0; i < 12; i++ {
		fp := fmt.Sprintf("fp-%02d", i)
		_, err := cache.GetOrCompute(context.Background(), fp, func(ctx context.Context) (string, error) {
			return fp, nil
		})
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, cache.Len(), 8)

	// The newest entry is still resident.
	result, err := cache.GetOrCompute(context.Background(), "fp-11", func(ctx context.Context) (string, error) {
		t.Fatal("newest entry should be a hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fp-11", result)
}

// mockCacheStore implements driven.CacheStore for testing.
type mockCacheStore struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	getErr  error
}

func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{entries: make(map[string]domain.CacheEntry)}
}

func (m *mockCacheStore) Get(_ context.Context, fingerprint string) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[fingerprint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

func (m *mockCacheStore) Put(_ context.Context, entry domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Fingerprint] = entry
	return nil
}

func (m *mockCacheStore) Prune(_ context.Context, maxAge time.Duration, maxEntries int) (int, error) {
	return 0, nil
}

// TestEnhanceCache_PersistentLayer tests that results reach the backing
// store and that a cold cache serves from it.
func TestEnhanceCache_PersistentLayer(t *testing.T) {
	store := newMockCacheStore()

	warm := NewEnhanceCache(16, time.Hour, store)
	_, err := warm.GetOrCompute(context.Background(), "fp-1", func(ctx context.Context) (string, error) {
		return "persisted", nil
	})
	require.NoError(t, err)

	cold := NewEnhanceCache(16, time.Hour, store)
	result, err := cold.GetOrCompute(context.Background(), "fp-1", func(ctx context.Context) (string, error) {
		t.Fatal("compute must not run when the store has the entry")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "persisted", result)
}

// TestEnhanceCache_PersistentLayer_StaleIgnored tests that entries past
// the age bound are treated as misses.
func TestEnhanceCache_PersistentLayer_StaleIgnored(t *testing.T) {
	store := newMockCacheStore()
	store.entries["fp-1"] = domain.CacheEntry{
		Fingerprint: "fp-1",
		Result:      "ancient",
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}

	cache := NewEnhanceCache(16, time.Hour, store)
	result, err := cache.GetOrCompute(context.Background(), "fp-1", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", result)
}
