package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
	"github.com/calyx-health/deid/internal/logger"
)

// Fingerprint derives the content-addressed cache key for one enhancement
// request: a stable hash of the prompt identity (model plus section, which
// together determine the prompt) and the normalised content. Identical
// content in two different sections of the same kind shares one entry.
func Fingerprint(promptID, content string) string {
	h := sha256.New()
	h.Write([]byte(promptID))
	h.Write([]byte{0})
	h.Write([]byte(domain.NormaliseValue(content)))
	return hex.EncodeToString(h.Sum(nil))
}

// EnhanceCache deduplicates identical enhancement requests across parallel
// section jobs. For a given fingerprint the compute function runs at most
// once concurrently system-wide: concurrent callers subscribe to the
// single in-flight call and all receive its result, success or failure.
//
// Completed results are kept in a bounded in-memory map with FIFO
// eviction, optionally backed by a persistent store so results survive
// restarts. The cache is advisory: a miss or eviction only costs a
// repeated external call.
type EnhanceCache struct {
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
	order   []string // insertion order for FIFO eviction

	maxEntries int
	maxAge     time.Duration
	store      driven.CacheStore // optional persistent layer
}

// NewEnhanceCache creates a cache bounded by entry count and age.
// store may be nil for a purely in-memory cache.
func NewEnhanceCache(maxEntries int, maxAge time.Duration, store driven.CacheStore) *EnhanceCache {
	if maxEntries <= 0 {
		maxEntries = domain.DefaultCacheMaxEntries
	}
	if maxAge <= 0 {
		maxAge = domain.DefaultCacheMaxAge
	}
	return &EnhanceCache{
		entries:    make(map[string]domain.CacheEntry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		store:      store,
	}
}

// GetOrCompute returns the cached result for fingerprint or runs compute
// exactly once for all concurrent callers with the same fingerprint.
// Failures are shared with current subscribers but not cached, so a later
// call retries.
func (c *EnhanceCache) GetOrCompute(ctx context.Context, fingerprint string, compute func(ctx context.Context) (string, error)) (string, error) {
	if result, ok := c.lookup(ctx, fingerprint); ok {
		logger.Debug("cache hit for %s", fingerprint[:min(12, len(fingerprint))])
		return result, nil
	}

	ch := c.group.DoChan(fingerprint, func() (any, error) {
		// Re-check under the flight: a concurrent winner may have
		// populated the cache between lookup and DoChan.
		if result, ok := c.lookup(ctx, fingerprint); ok {
			return result, nil
		}
		result, err := compute(ctx)
		if err != nil {
			return "", err
		}
		c.insert(ctx, fingerprint, result)
		return result, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		result, ok := res.Val.(string)
		if !ok {
			return "", errors.New("enhance cache: unexpected result type")
		}
		return result, nil
	case <-ctx.Done():
		// The flight keeps running for other subscribers; this caller
		// just stops waiting.
		return "", ctx.Err()
	}
}

// lookup checks memory first, then the persistent layer. Stale entries
// are ignored.
func (c *EnhanceCache) lookup(ctx context.Context, fingerprint string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if ok && time.Since(entry.CreatedAt) <= c.maxAge {
		return entry.Result, true
	}

	if c.store == nil {
		return "", false
	}
	stored, err := c.store.Get(ctx, fingerprint)
	if err != nil || stored == nil {
		return "", false
	}
	if time.Since(stored.CreatedAt) > c.maxAge {
		return "", false
	}
	c.remember(*stored)
	return stored.Result, true
}

// insert records a fresh result in memory and, best effort, in the
// persistent layer.
func (c *EnhanceCache) insert(ctx context.Context, fingerprint, result string) {
	entry := domain.CacheEntry{
		Fingerprint: fingerprint,
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	}
	c.remember(entry)

	if c.store != nil {
		if err := c.store.Put(ctx, entry); err != nil {
			logger.Warn("cache persist failed for %s: %v", fingerprint[:min(12, len(fingerprint))], err)
		}
	}
}

// remember inserts into the in-memory map, evicting the oldest quarter
// when the bound is exceeded.
func (c *EnhanceCache) remember(entry domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[entry.Fingerprint]; !exists {
		c.order = append(c.order, entry.Fingerprint)
	}
	c.entries[entry.Fingerprint] = entry

	if len(c.entries) <= c.maxEntries {
		return
	}
	evict := c.maxEntries / 4
	if evict == 0 {
		evict = 1
	}
	for _, k := range c.order[:evict] {
		delete(c.entries, k)
	}
	alive := c.order[:0]
	for _, k := range c.order[evict:] {
		if _, ok := c.entries[k]; ok {
			alive = append(alive, k)
		}
	}
	c.order = alive
}

// Len returns the number of in-memory entries.
func (c *EnhanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
