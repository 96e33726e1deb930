package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates a malformed category, matcher or engine
	// configuration. Fatal at load time; scrub never sees it.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnknownPlaceholder indicates restore met a placeholder the
	// reference table does not know. Fatal for the session: a missing
	// mapping means corruption or cross-session contamination, and the
	// engine must never guess PHI.
	ErrUnknownPlaceholder = errors.New("unknown placeholder")

	// ErrPersistence indicates an I/O or crypto failure on the reference
	// table artifact. Fatal: the engine never falls back to plaintext.
	ErrPersistence = errors.New("reference table persistence failed")

	// ErrTransientService indicates a retryable enhancement failure
	// (rate limit, timeout, upstream 5xx). Retried with bounded backoff.
	ErrTransientService = errors.New("transient service error")

	// ErrChunkFailed indicates a chunk exhausted its retries. The owning
	// section aborts; other sections are unaffected.
	ErrChunkFailed = errors.New("chunk enhancement failed")

	// ErrSessionClosed indicates an operation on a finalised or aborted
	// session. Tables are never reused across sessions.
	ErrSessionClosed = errors.New("session closed")
)

// UnknownPlaceholderError carries the offending token for restore-time
// integrity failures. It unwraps to ErrUnknownPlaceholder.
type UnknownPlaceholderError struct {
	Placeholder Placeholder
}

// Error implements the error interface.
func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("unknown placeholder %s: not present in reference table", e.Placeholder)
}

// Unwrap allows errors.Is(err, ErrUnknownPlaceholder).
func (e *UnknownPlaceholderError) Unwrap() error {
	return ErrUnknownPlaceholder
}

// ChunkError reports a chunk-level enhancement failure with enough context
// to retry just that chunk manually. It unwraps to ErrChunkFailed.
type ChunkError struct {
	SessionID string
	Section   string
	Index     int
	Attempts  int
	Err       error
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	return fmt.Sprintf("session %s section %q chunk %d failed after %d attempts: %v",
		e.SessionID, e.Section, e.Index, e.Attempts, e.Err)
}

// Unwrap allows errors.Is(err, ErrChunkFailed) and inspection of the cause.
func (e *ChunkError) Unwrap() []error {
	return []error{ErrChunkFailed, e.Err}
}

// Cause returns the underlying enhancement error.
func (e *ChunkError) Cause() error {
	return e.Err
}

// IsTransient reports whether err should be retried by the chunk
// dispatcher. Non-transient rejections must never be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientService)
}
