package domain

import "time"

// Chunk is an ordered fragment of a section's scrubbed text, sized for the
// enhancement collaborator. Chunks are rejoined strictly by Index, never by
// arrival order.
type Chunk struct {
	// SessionID is the owning document session.
	SessionID string

	// Section names the report section the chunk came from.
	Section string

	// Index is the ordinal position within the section.
	Index int

	// Content is the scrubbed text of this fragment.
	Content string
}

// CacheEntry is a cached enhancement result, keyed by content fingerprint.
// Entries are content-addressed: identical content in two sections shares
// one entry. The cache is advisory; absence only costs a repeated call.
type CacheEntry struct {
	// Fingerprint is the stable hash of normalised content plus prompt
	// identity.
	Fingerprint string

	// Result is the enhanced text returned by the collaborator.
	Result string

	// Section and Index record where the entry was first produced.
	Section string
	Index   int

	// CreatedAt drives age-bounded eviction.
	CreatedAt time.Time
}
