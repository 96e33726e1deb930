package driven

import (
	"context"
	"time"

	"github.com/calyx-health/deid/internal/core/domain"
)

// CacheStore is an optional persistent layer under the in-memory
// enhancement cache, so cached results survive restarts. The cache is
// purely an optimisation: every method may fail or miss without affecting
// correctness, only cost.
type CacheStore interface {
	// Get retrieves an entry by fingerprint, or domain.ErrNotFound.
	Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error)

	// Put stores an entry, replacing any previous one.
	Put(ctx context.Context, entry domain.CacheEntry) error

	// Prune evicts entries older than maxAge and, beyond that, the
	// oldest entries above maxEntries. Returns the number evicted.
	Prune(ctx context.Context, maxAge time.Duration, maxEntries int) (int, error)
}

// ConfigStore loads and saves the engine configuration.
type ConfigStore interface {
	// Load reads the configuration, returning defaults when no file
	// exists. A malformed file is a load-time error.
	Load() (domain.EngineConfig, error)

	// Save persists the configuration.
	Save(cfg domain.EngineConfig) error

	// Path returns the configuration file location.
	Path() string
}
