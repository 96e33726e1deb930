package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
	"github.com/calyx-health/deid/internal/core/ports/driving"
	"github.com/calyx-health/deid/internal/logger"
)

// SessionService orchestrates the document lifecycle: scrub under a fresh
// session, persist the reference table, run chunked enhancement, and
// restore. It implements both driving ports.
type SessionService struct {
	scrubber *Scrubber
	pipeline *Pipeline
	tables   driven.ReferenceTableStore
	sessions driven.SessionStore
	encrypt  bool

	mu   sync.Mutex
	live map[string]*domain.ReferenceTable
}

var _ driving.DocumentProcessor = (*SessionService)(nil)
var _ driving.SessionManager = (*SessionService)(nil)

// NewSessionService wires the scrub and enhancement services to persistence.
func NewSessionService(scrubber *Scrubber, pipeline *Pipeline, tables driven.ReferenceTableStore, sessions driven.SessionStore, encrypt bool) *SessionService {
	return &SessionService{
		scrubber: scrubber,
		pipeline: pipeline,
		tables:   tables,
		sessions: sessions,
		encrypt:  encrypt,
		live:     map[string]*domain.ReferenceTable{},
	}
}

// Scrub de-identifies sections under a fresh session. The reference table
// is persisted before the scrubbed text is returned, so the mapping exists
// on disk before any text leaves the process.
func (s *SessionService) Scrub(ctx context.Context, sections []driving.Section) (*driving.ScrubResult, error) {
	sessionID := uuid.NewString()
	table := domain.NewReferenceTable(sessionID)

	now := time.Now()
	session := domain.Session{
		ID:        sessionID,
		State:     domain.SessionScrubbing,
		Encrypted: s.encrypt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("recording session: %w", err)
	}

	scrubbed := make([]driving.Section, len(sections))
	for i, sec := range sections {
		scrubbed[i] = driving.Section{
			Name:    sec.Name,
			Content: s.scrubber.Scrub(sec.Content, table),
		}
	}

	path, err := s.tables.Save(ctx, table.Snapshot())
	if err != nil {
		session.State = domain.SessionAborted
		session.UpdatedAt = time.Now()
		if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
			logger.Warn("marking session %s aborted: %v", sessionID, saveErr)
		}
		return nil, fmt.Errorf("persisting reference table: %w", err)
	}

	session.State = domain.SessionScrubbed
	session.TablePath = path
	session.Placeholders = table.Len()
	session.UpdatedAt = time.Now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("recording session: %w", err)
	}

	s.mu.Lock()
	s.live[sessionID] = table
	s.mu.Unlock()

	logger.Info("session %s scrubbed %d sections, %d placeholders", sessionID, len(sections), table.Len())
	return &driving.ScrubResult{
		SessionID:    sessionID,
		Sections:     scrubbed,
		Placeholders: table.Len(),
		TablePath:    path,
	}, nil
}

// Enhance sends previously scrubbed sections through the chunked pipeline.
// Each section is independent: a failure in one does not stop the others.
// Failed sections keep their input text, and the returned error joins the
// per-section failures so callers can name each one.
func (s *SessionService) Enhance(ctx context.Context, sessionID string, sections []driving.Section) ([]driving.Section, error) {
	if _, err := s.usableSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var failures []error
	out := make([]driving.Section, len(sections))
	for i, sec := range sections {
		out[i] = sec
		enhanced, err := s.pipeline.EnhanceSection(ctx, sessionID, sec.Name, sec.Content)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			failures = append(failures, err)
			continue
		}
		out[i].Content = enhanced
	}
	return out, errors.Join(failures...)
}

// Restore replaces placeholders in text with originals from the session's
// table, loading the persisted artifact if the table is not in memory.
func (s *SessionService) Restore(ctx context.Context, sessionID string, text string) (string, error) {
	table, err := s.table(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return s.scrubber.Restore(text, table)
}

// Process runs scrub, enhance and restore end to end. Sections whose
// enhancement fails after retries fall back to their scrubbed text for
// restoration, and are named in the result's Failed list.
func (s *SessionService) Process(ctx context.Context, sections []driving.Section) (*driving.ProcessResult, error) {
	scrub, err := s.Scrub(ctx, sections)
	if err != nil {
		return nil, err
	}

	result := &driving.ProcessResult{
		SessionID: scrub.SessionID,
		Sections:  make([]driving.Section, len(sections)),
	}

	for i, sec := range scrub.Sections {
		text := sec.Content
		enhanced, err := s.pipeline.EnhanceSection(ctx, scrub.SessionID, sec.Name, sec.Content)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("section %q enhancement failed, keeping scrubbed text: %v", sec.Name, err)
			result.Failed = append(result.Failed, sec.Name)
		} else {
			text = enhanced
		}

		restored, err := s.Restore(ctx, scrub.SessionID, text)
		if err != nil {
			return nil, err
		}
		result.Sections[i] = driving.Section{Name: sec.Name, Content: restored}
	}

	if err := s.finalise(ctx, scrub.SessionID); err != nil {
		return nil, err
	}
	return result, nil
}

// List returns all known sessions, newest first.
func (s *SessionService) List(ctx context.Context) ([]domain.Session, error) {
	return s.sessions.List(ctx)
}

// Get returns one session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Purge deletes sessions older than the retention window along with their
// table artifacts. Returns the number purged.
func (s *SessionService) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	stale, err := s.sessions.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, session := range stale {
		if err := s.tables.Delete(ctx, session.ID); err != nil {
			logger.Warn("deleting table artifact for %s: %v", session.ID, err)
			continue
		}
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			return purged, err
		}
		s.mu.Lock()
		delete(s.live, session.ID)
		s.mu.Unlock()
		purged++
	}
	if purged > 0 {
		logger.Info("purged %d sessions older than %s", purged, olderThan)
	}
	return purged, nil
}

// table returns the live in-memory table for a session, reloading it from
// the persisted artifact on a cold lookup.
func (s *SessionService) table(ctx context.Context, sessionID string) (*domain.ReferenceTable, error) {
	s.mu.Lock()
	table, ok := s.live[sessionID]
	s.mu.Unlock()
	if ok {
		return table, nil
	}

	if _, err := s.usableSession(ctx, sessionID); err != nil {
		return nil, err
	}
	snap, err := s.tables.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	table, err = domain.RestoreSnapshot(snap)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.live[sessionID] = table
	s.mu.Unlock()
	return table, nil
}

// usableSession loads the session record and rejects sessions that can no
// longer accept work.
func (s *SessionService) usableSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State == domain.SessionFinalised || session.State == domain.SessionAborted {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.State, domain.ErrSessionClosed)
	}
	return session, nil
}

// finalise marks a session complete and drops its live table.
func (s *SessionService) finalise(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.State = domain.SessionFinalised
	session.UpdatedAt = time.Now()
	if err := s.sessions.Save(ctx, *session); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.live, sessionID)
	s.mu.Unlock()
	return nil
}
