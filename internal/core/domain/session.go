package domain

import "time"

// SessionState tracks where a session is in its lifecycle. Restore is only
// legal once scrub (including persistence) has completed.
type SessionState string

// Session lifecycle states.
const (
	// SessionScrubbing means the table is still being populated.
	SessionScrubbing SessionState = "scrubbing"

	// SessionScrubbed means scrub finished and the table is persisted;
	// enhancement and restore may proceed.
	SessionScrubbed SessionState = "scrubbed"

	// SessionFinalised means restore completed and the session is closed.
	SessionFinalised SessionState = "finalised"

	// SessionAborted means the session was cancelled; its table must
	// never be reused.
	SessionAborted SessionState = "aborted"
)

// IsValid returns true if the state is recognised.
func (s SessionState) IsValid() bool {
	switch s {
	case SessionScrubbing, SessionScrubbed, SessionFinalised, SessionAborted:
		return true
	default:
		return false
	}
}

// Session describes one document-processing session. Exactly one reference
// table is live per session; tables are never merged across sessions.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// State is the current lifecycle state.
	State SessionState

	// TablePath is where the (possibly encrypted) reference table
	// artifact lives on disk.
	TablePath string

	// Encrypted records whether the artifact is encrypted at rest.
	Encrypted bool

	// Placeholders is the number of distinct placeholders allocated.
	Placeholders int

	// CreatedAt is when the session began. External housekeeping uses it
	// to purge sessions past the retention window.
	CreatedAt time.Time

	// UpdatedAt is when the session last changed state.
	UpdatedAt time.Time
}
