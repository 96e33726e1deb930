package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyx-health/deid/internal/catalog"
	"github.com/calyx-health/deid/internal/core/domain"
)

func newTestScrubber(t *testing.T, excluded ...string) *Scrubber {
	t.Helper()
	cat, err := catalog.New(domain.EngineConfig{})
	require.NoError(t, err)
	return NewScrubber(cat, excluded)
}

// TestScrubber_Scrub_RoundTrip tests that scrubbing then restoring
// reproduces the original text exactly.
func TestScrubber_Scrub_RoundTrip(t *testing.T) {
	s := newTestScrubber(t)
	table := domain.NewReferenceTable("sess-1")

	text := "Patient name: John Smith, born 1980-05-01, lives at 12 Oak Street. Reach him at john.smith@example.com or 555-123-4567."
	scrubbed := s.Scrub(text, table)

	assert.NotContains(t, scrubbed, "John Smith")
	assert.NotContains(t, scrubbed, "1980-05-01")
	assert.NotContains(t, scrubbed, "12 Oak Street")
	assert.NotContains(t, scrubbed, "john.smith@example.com")
	assert.NotContains(t, scrubbed, "555-123-4567")
	assert.Contains(t, scrubbed, "Patient name:")
	assert.Contains(t, scrubbed, "born")

	restored, err := s.Restore(scrubbed, table)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}

// TestScrubber_Scrub_ConsistentPlaceholders tests that the same value
// receives the same placeholder across repeated occurrences and calls.
func TestScrubber_Scrub_ConsistentPlaceholders(t *testing.T) {
	s := newTestScrubber(t)
	table := domain.NewReferenceTable("sess-1")

	first := s.Scrub("Patient name: John Smith.", table)
	second := s.Scrub("Name: John Smith. Patient name: John Smith.", table)

	tokens := domain.PlaceholderPattern().FindAllString(first, -1)
	require.Len(t, tokens, 1)
	assert.Equal(t, 2, strings.Count(second, tokens[0]))
	assert.Equal(t, 1, table.Len())
}

// TestScrubber_Scrub_AllowList tests that allow-listed clinical terms are
// never replaced even when a pattern matches them.
func TestScrubber_Scrub_AllowList(t *testing.T) {
	s := newTestScrubber(t, "Occupational Therapist")
	table := domain.NewReferenceTable("sess-1")

	text := "Assessed by Ms. Occupational Therapist on site. Patient name: John Smith."
	scrubbed := s.Scrub(text, table)

	assert.Contains(t, scrubbed, "Occupational Therapist")
	assert.NotContains(t, scrubbed, "John Smith")
}

// TestScrubber_Scrub_Empty tests that empty and match-free text pass
// through unchanged with no allocations in the table.
func TestScrubber_Scrub_Empty(t *testing.T) {
	s := newTestScrubber(t)
	table := domain.NewReferenceTable("sess-1")

	assert.Equal(t, "", s.Scrub("", table))
	plain := "The assessment indicates steady progress with mobility goals."
	assert.Equal(t, plain, s.Scrub(plain, table))
	assert.Equal(t, 0, table.Len())
}

// TestScrubber_Scrub_Idempotent tests that scrubbing already-scrubbed text
// changes nothing: placeholder tokens match no catalog pattern.
func TestScrubber_Scrub_Idempotent(t *testing.T) {
	s := newTestScrubber(t)
	table := domain.NewReferenceTable("sess-1")

	scrubbed := s.Scrub("Patient name: John Smith, DOB: 1980-05-01.", table)
	before := table.Len()

	again := s.Scrub(scrubbed, table)
	assert.Equal(t, scrubbed, again)
	assert.Equal(t, before, table.Len())
}

// TestScrubber_Restore_UnknownPlaceholder tests that a placeholder with no
// table entry is a hard error, not a silent pass-through.
func TestScrubber_Restore_UnknownPlaceholder(t *testing.T) {
	s := newTestScrubber(t)
	table := domain.NewReferenceTable("sess-1")

	_, err := s.Restore("Seen with [PERSON_7] at the clinic.", table)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownPlaceholder)

	var upe *domain.UnknownPlaceholderError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, domain.Placeholder("[PERSON_7]"), upe.Placeholder)
}

// TestScrubber_Restore_NonPlaceholderBrackets tests that bracketed text
// that is not a well-formed placeholder is left untouched.
func TestScrubber_Restore_NonPlaceholderBrackets(t *testing.T) {
	s := newTestScrubber(t)
	table := domain.NewReferenceTable("sess-1")

	text := "Scores recorded as [see appendix] and [NOTE] during review."
	restored, err := s.Restore(text, table)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}

// TestScrubber_Restore_NoPlaceholders tests the no-op path.
func TestScrubber_Restore_NoPlaceholders(t *testing.T) {
	s := newTestScrubber(t)
	table := domain.NewReferenceTable("sess-1")

	text := "No tokens here."
	restored, err := s.Restore(text, table)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}
