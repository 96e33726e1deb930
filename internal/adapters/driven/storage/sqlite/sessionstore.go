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

// sessionStore implements driven.SessionStore over the shared database.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

// Save stores or updates a session record.
func (s *sessionStore) Save(ctx context.Context, session domain.Session) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, table_path, encrypted, placeholders, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			table_path = excluded.table_path,
			encrypted = excluded.encrypted,
			placeholders = excluded.placeholders,
			updated_at = excluded.updated_at
	`, session.ID, string(session.State), session.TablePath, session.Encrypted,
		session.Placeholders, session.CreatedAt.UTC(), session.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving session %s: %w", session.ID, err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *sessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, state, table_path, encrypted, placeholders, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return session, nil
}

// List returns all sessions, newest first.
func (s *sessionStore) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, state, table_path, encrypted, placeholders, created_at, updated_at
		FROM sessions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListOlderThan returns sessions created before the cutoff.
func (s *sessionStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, state, table_path, encrypted, placeholders, created_at, updated_at
		FROM sessions WHERE created_at < ? ORDER BY created_at
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("listing stale sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// Delete removes a session record.
func (s *sessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var session domain.Session
	var state string
	if err := row.Scan(&session.ID, &state, &session.TablePath, &session.Encrypted,
		&session.Placeholders, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	session.State = domain.SessionState(state)
	return &session, nil
}

func collectSessions(rows *sql.Rows) ([]domain.Session, error) {
	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}
