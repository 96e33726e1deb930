package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// cacheStore implements driven.CacheStore over the shared database.
// Cached results contain only scrubbed text, so the cache carries no PHI.
type cacheStore struct {
	store *Store
}

var _ driven.CacheStore = (*cacheStore)(nil)

// Get retrieves an entry by fingerprint.
func (c *cacheStore) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT fingerprint, result, section, chunk_index, created_at
		FROM enhance_cache WHERE fingerprint = ?
	`, fingerprint)

	var entry domain.CacheEntry
	err := row.Scan(&entry.Fingerprint, &entry.Result, &entry.Section, &entry.Index, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache entry %s: %w", fingerprint, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting cache entry: %w", err)
	}
	return &entry, nil
}

// Put stores an entry, replacing any previous one.
func (c *cacheStore) Put(ctx context.Context, entry domain.CacheEntry) error {
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO enhance_cache (fingerprint, result, section, chunk_index, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			result = excluded.result,
			section = excluded.section,
			chunk_index = excluded.chunk_index,
			created_at = excluded.created_at
	`, entry.Fingerprint, entry.Result, entry.Section, entry.Index, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("putting cache entry: %w", err)
	}
	return nil
}

// Prune evicts entries older than maxAge and, beyond that, the oldest
// entries above maxEntries.
func (c *cacheStore) Prune(ctx context.Context, maxAge time.Duration, maxEntries int) (int, error) {
	cutoff := time.Now().Add(-maxAge).UTC()
	res, err := c.store.db.ExecContext(ctx,
		"DELETE FROM enhance_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning stale cache entries: %w", err)
	}
	aged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned entries: %w", err)
	}

	res, err = c.store.db.ExecContext(ctx, `
		DELETE FROM enhance_cache WHERE fingerprint IN (
			SELECT fingerprint FROM enhance_cache
			ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)
	`, maxEntries)
	if err != nil {
		return int(aged), fmt.Errorf("pruning excess cache entries: %w", err)
	}
	excess, err := res.RowsAffected()
	if err != nil {
		return int(aged), fmt.Errorf("counting pruned entries: %w", err)
	}

	return int(aged + excess), nil
}
