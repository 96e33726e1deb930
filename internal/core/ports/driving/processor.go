package driving

import (
	"context"
	"time"

	"github.com/calyx-health/deid/internal/core/domain"
)

// Section is one named unit of raw or scrubbed text. Format-specific
// extraction happens upstream; the engine only sees plain text.
type Section struct {
	// Name identifies the report section (e.g. "background_information").
	Name string

	// Content is the section text.
	Content string
}

// ScrubResult is the outcome of de-identifying a document.
type ScrubResult struct {
	// SessionID identifies the session whose table maps the placeholders.
	SessionID string

	// Sections holds the scrubbed text, same order as the input.
	Sections []Section

	// Placeholders is the number of distinct placeholders allocated.
	Placeholders int

	// TablePath is where the persisted reference table lives.
	TablePath string
}

// ProcessResult is the outcome of the full scrub → enhance → restore run.
type ProcessResult struct {
	// SessionID identifies the completed session.
	SessionID string

	// Sections holds the final re-identified text, same order as input.
	Sections []Section

	// Failed lists sections whose enhancement failed after retries;
	// their entries in Sections carry the scrubbed-but-unenhanced text
	// restored verbatim.
	Failed []string
}

// DocumentProcessor is the primary driving port: it runs documents through
// the de-identification / enhancement / re-identification pipeline.
type DocumentProcessor interface {
	// Scrub de-identifies sections under a fresh session and persists
	// the reference table before returning.
	Scrub(ctx context.Context, sections []Section) (*ScrubResult, error)

	// Enhance sends previously scrubbed sections through the enhancement
	// pipeline. Scrub for the session must have completed. Sections are
	// independent: a failed section keeps its input text, and the error
	// joins every per-section failure.
	Enhance(ctx context.Context, sessionID string, sections []Section) ([]Section, error)

	// Restore replaces placeholders in text with original values from
	// the session's table. Any unknown placeholder is a hard error.
	Restore(ctx context.Context, sessionID string, text string) (string, error)

	// Process runs scrub, enhance and restore end to end.
	Process(ctx context.Context, sections []Section) (*ProcessResult, error)
}

// SessionManager exposes session metadata and retention housekeeping.
type SessionManager interface {
	// List returns all known sessions, newest first.
	List(ctx context.Context) ([]domain.Session, error)

	// Get returns one session by ID.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Purge deletes sessions (and their artifacts) older than the
	// retention window. Returns the number purged.
	Purge(ctx context.Context, olderThan time.Duration) (int, error)
}
