package domain

import (
	"fmt"
	"time"
)

// MatcherKind selects a matcher implementation for a category.
type MatcherKind string

// Supported matcher kinds.
const (
	// MatcherRegex finds spans with a regular expression.
	MatcherRegex MatcherKind = "regex"

	// MatcherDictionary finds spans from a fixed vocabulary, matched on
	// word boundaries.
	MatcherDictionary MatcherKind = "dictionary"
)

// IsValid returns true if the matcher kind is recognised.
func (k MatcherKind) IsValid() bool {
	return k == MatcherRegex || k == MatcherDictionary
}

// MatcherConfig declares one matcher for a category.
type MatcherConfig struct {
	// Kind selects the matcher implementation.
	Kind MatcherKind `toml:"kind"`

	// Pattern is the regular expression (regex matchers only).
	Pattern string `toml:"pattern,omitempty"`

	// Terms is the fixed vocabulary (dictionary matchers only).
	Terms []string `toml:"terms,omitempty"`
}

// CategoryConfig declares one PHI category: its matchers and its conflict
// priority. Lower priority rank wins overlap conflicts.
type CategoryConfig struct {
	Name     string          `toml:"name"`
	Priority int             `toml:"priority"`
	Matchers []MatcherConfig `toml:"matchers"`
}

// EngineConfig is the full per-document configuration surface consumed by
// the engine. Zero values are filled with defaults by Normalise.
type EngineConfig struct {
	// Categories enumerates PHI categories and their matchers. Empty
	// means the built-in clinical defaults.
	Categories []CategoryConfig `toml:"categories"`

	// ExcludedTerms is the allow-list: terms never replaced even when a
	// pattern matches them. Compared case- and whitespace-insensitively.
	ExcludedTerms []string `toml:"excluded_terms"`

	// ChunkSize is the character budget per enhancement call.
	ChunkSize int `toml:"chunk_size"`

	// RetryCount bounds retries of transient enhancement failures.
	RetryCount int `toml:"retry_count"`

	// BackoffBase is the initial retry delay; it grows exponentially.
	BackoffBase time.Duration `toml:"backoff_base"`

	// Workers bounds concurrent chunk dispatches per section.
	Workers int `toml:"workers"`

	// Encrypt enables encryption of persisted reference tables. The key
	// is supplied out-of-band (passphrase or key file), never stored in
	// the artifact.
	Encrypt bool `toml:"encrypt"`

	// CacheMaxEntries bounds the in-memory enhancement cache.
	CacheMaxEntries int `toml:"cache_max_entries"`

	// CacheMaxAge bounds entry age; older entries are evicted.
	CacheMaxAge time.Duration `toml:"cache_max_age"`

	// RetentionDays is the artifact retention window consumed by the
	// purge housekeeping. Zero disables purging.
	RetentionDays int `toml:"retention_days"`
}

// Default engine parameters.
const (
	DefaultChunkSize       = 6000
	DefaultRetryCount      = 3
	DefaultBackoffBase     = 2 * time.Second
	DefaultWorkers         = 4
	DefaultCacheMaxEntries = 1024
	DefaultCacheMaxAge     = 24 * time.Hour
)

// Normalise fills zero values with defaults. It does not validate.
func (c *EngineConfig) Normalise() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.RetryCount <= 0 {
		c.RetryCount = DefaultRetryCount
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if c.CacheMaxAge <= 0 {
		c.CacheMaxAge = DefaultCacheMaxAge
	}
}

// Validate rejects malformed category and matcher declarations. Called at
// load time so scrub never sees a bad configuration.
func (c *EngineConfig) Validate() error {
	seen := make(map[Category]bool, len(c.Categories))
	for _, cat := range c.Categories {
		name := NormaliseCategory(cat.Name)
		if !name.IsValid() {
			return fmt.Errorf("%w: category name %q", ErrConfiguration, cat.Name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate category %q", ErrConfiguration, name)
		}
		seen[name] = true

		if len(cat.Matchers) == 0 {
			return fmt.Errorf("%w: category %q has no matchers", ErrConfiguration, name)
		}
		for i, m := range cat.Matchers {
			if !m.Kind.IsValid() {
				return fmt.Errorf("%w: category %q matcher %d: unknown kind %q", ErrConfiguration, name, i, m.Kind)
			}
			switch m.Kind {
			case MatcherRegex:
				if m.Pattern == "" {
					return fmt.Errorf("%w: category %q matcher %d: empty pattern", ErrConfiguration, name, i)
				}
			case MatcherDictionary:
				if len(m.Terms) == 0 {
					return fmt.Errorf("%w: category %q matcher %d: empty term list", ErrConfiguration, name, i)
				}
			}
		}
	}
	return nil
}
