package driven

import (
	"context"
	"time"

	"github.com/calyx-health/deid/internal/core/domain"
)

// ReferenceTableStore persists reference table artifacts, one per document
// session. When encryption is enabled the serialised bytes are encrypted
// with key material supplied out-of-band; a decryption failure must surface
// as an error wrapping domain.ErrPersistence, never a silent plaintext
// fallback.
type ReferenceTableStore interface {
	// Save writes the snapshot for its session, replacing any previous
	// artifact. Returns the artifact path.
	Save(ctx context.Context, snap domain.TableSnapshot) (string, error)

	// Load reads the artifact for a session. Returns an error wrapping
	// domain.ErrNotFound when no artifact exists, domain.ErrPersistence
	// on decryption or corruption failures.
	Load(ctx context.Context, sessionID string) (domain.TableSnapshot, error)

	// Delete removes the artifact for a session. Used by retention
	// housekeeping.
	Delete(ctx context.Context, sessionID string) error
}

// SessionStore records session metadata: lifecycle state and creation
// timestamps, which external housekeeping reads to enforce the retention
// window.
type SessionStore interface {
	// Save stores or updates a session record.
	Save(ctx context.Context, session domain.Session) error

	// Get retrieves a session by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// List returns all sessions, newest first.
	List(ctx context.Context) ([]domain.Session, error)

	// ListOlderThan returns sessions created before the cutoff.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Session, error)

	// Delete removes a session record.
	Delete(ctx context.Context, id string) error
}
