package domain

import (
	"sort"
	"sync"
	"time"
)

// TableFormatVersion is the version stamped into persisted artifacts.
const TableFormatVersion = 1

// Entry is one placeholder/value pair inside a persisted table.
type Entry struct {
	Placeholder Placeholder `json:"placeholder"`
	Original    string      `json:"original"`
}

// TableSnapshot is the serialisable view of a reference table, grouped by
// category. It is what the table store persists (encrypted at rest).
type TableSnapshot struct {
	FormatVersion int                  `json:"format_version"`
	SessionID     string               `json:"session_id"`
	CreatedAt     time.Time            `json:"created_at"`
	Categories    map[Category][]Entry `json:"categories"`
}

// ReferenceTable owns the bijection between placeholders and original
// values for exactly one document-processing session. It is mutated only
// through InsertOrLookup during scrub, read-only during restore, and never
// shared across sessions.
//
// All methods are safe for concurrent use: two sections of one document may
// allocate placeholders for the same name at the same time and must receive
// the same token.
type ReferenceTable struct {
	sessionID string
	createdAt time.Time

	mu       sync.RWMutex
	forward  map[Category]map[string]Placeholder // normalised value → placeholder
	reverse  map[Placeholder]string              // placeholder → original (verbatim)
	counters map[Category]uint64
}

// NewReferenceTable creates an empty table for a new session.
func NewReferenceTable(sessionID string) *ReferenceTable {
	return &ReferenceTable{
		sessionID: sessionID,
		createdAt: time.Now().UTC(),
		forward:   make(map[Category]map[string]Placeholder),
		reverse:   make(map[Placeholder]string),
		counters:  make(map[Category]uint64),
	}
}

// SessionID returns the owning session's identifier.
func (t *ReferenceTable) SessionID() string {
	return t.sessionID
}

// CreatedAt returns the table creation time. Exposed so external
// housekeeping can enforce the retention window.
func (t *ReferenceTable) CreatedAt() time.Time {
	return t.createdAt
}

// InsertOrLookup returns the placeholder for (category, original),
// allocating one if the normalised value has not been seen. The check and
// insert happen under a single lock, so no two concurrent calls can
// allocate distinct placeholders for the same logical entity, and ids are
// monotonically increasing per category.
//
// The first-seen original is the one restore reproduces; later variants
// that normalise to the same key reuse its placeholder.
func (t *ReferenceTable) InsertOrLookup(category Category, original string) Placeholder {
	key := NormaliseValue(original)

	t.mu.Lock()
	defer t.mu.Unlock()

	byValue, ok := t.forward[category]
	if !ok {
		byValue = make(map[string]Placeholder)
		t.forward[category] = byValue
	}
	if p, ok := byValue[key]; ok {
		return p
	}

	t.counters[category]++
	p := NewPlaceholder(category, t.counters[category])
	byValue[key] = p
	t.reverse[p] = original
	return p
}

// Lookup resolves a placeholder to its original value.
func (t *ReferenceTable) Lookup(p Placeholder) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	original, ok := t.reverse[p]
	return original, ok
}

// Len returns the number of distinct placeholders in the table.
func (t *ReferenceTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.reverse)
}

// Snapshot produces the serialisable grouped-by-category view. Entries are
// ordered by placeholder token within each category for stable artifacts.
func (t *ReferenceTable) Snapshot() TableSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cats := make(map[Category][]Entry, len(t.forward))
	for p, original := range t.reverse {
		c := p.Category()
		cats[c] = append(cats[c], Entry{Placeholder: p, Original: original})
	}
	for c := range cats {
		entries := cats[c]
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Placeholder < entries[j].Placeholder
		})
	}

	return TableSnapshot{
		FormatVersion: TableFormatVersion,
		SessionID:     t.sessionID,
		CreatedAt:     t.createdAt,
		Categories:    cats,
	}
}

// RestoreSnapshot rebuilds a table from a persisted snapshot. Counters are
// advanced past the highest id seen so a reloaded table can keep
// allocating without collisions.
func RestoreSnapshot(snap TableSnapshot) (*ReferenceTable, error) {
	if snap.FormatVersion != TableFormatVersion {
		return nil, &SnapshotVersionError{Got: snap.FormatVersion, Want: TableFormatVersion}
	}

	t := &ReferenceTable{
		sessionID: snap.SessionID,
		createdAt: snap.CreatedAt,
		forward:   make(map[Category]map[string]Placeholder),
		reverse:   make(map[Placeholder]string),
		counters:  make(map[Category]uint64),
	}

	for c, entries := range snap.Categories {
		byValue := make(map[string]Placeholder, len(entries))
		for _, e := range entries {
			byValue[NormaliseValue(e.Original)] = e.Placeholder
			t.reverse[e.Placeholder] = e.Original
			if id, ok := placeholderID(e.Placeholder); ok && id > t.counters[c] {
				t.counters[c] = id
			}
		}
		t.forward[c] = byValue
	}
	return t, nil
}

// SnapshotVersionError indicates a persisted table with an unsupported
// format version. It unwraps to ErrPersistence.
type SnapshotVersionError struct {
	Got, Want int
}

// Error implements the error interface.
func (e *SnapshotVersionError) Error() string {
	return "unsupported reference table format version"
}

// Unwrap allows errors.Is(err, ErrPersistence).
func (e *SnapshotVersionError) Unwrap() error {
	return ErrPersistence
}

// placeholderID extracts the numeric id from a token.
func placeholderID(p Placeholder) (uint64, bool) {
	parts := placeholderRe.FindStringSubmatch(string(p))
	if parts == nil {
		return 0, false
	}
	var id uint64
	for _, r := range parts[2] {
		id = id*10 + uint64(r-'0')
	}
	return id, true
}
