package services

import (
	"strings"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
	"github.com/calyx-health/deid/internal/logger"
)

// Scrubber replaces detected PHI spans with placeholders and restores them
// from a reference table. One Scrubber serves any number of sessions; all
// per-session state lives in the table it is handed.
type Scrubber struct {
	catalog  driven.Catalog
	excluded []string // normalised allow-list terms
}

// NewScrubber creates a scrub/restore engine over a compiled catalog.
// excludedTerms is the allow-list: text containing one of these terms is
// never replaced even when a pattern matches it.
func NewScrubber(catalog driven.Catalog, excludedTerms []string) *Scrubber {
	excluded := make([]string, 0, len(excludedTerms))
	for _, term := range excludedTerms {
		if norm := domain.NormaliseValue(term); norm != "" {
			excluded = append(excluded, norm)
		}
	}
	return &Scrubber{catalog: catalog, excluded: excluded}
}

// Scrub de-identifies text against the session's table. Matches are
// collected from every matcher, filtered through the allow-list, overlap-
// resolved deterministically, then replaced in a single offset-aware pass
// using the offsets captured before any substitution. Placeholder ids are
// allocated left to right, so the same fresh input always yields the same
// tokens.
func (s *Scrubber) Scrub(text string, table *domain.ReferenceTable) string {
	if text == "" {
		return text
	}

	matches := s.catalog.Classify(text)
	matches = s.filterExcluded(matches)
	resolved := domain.ResolveOverlaps(matches)
	if len(resolved) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range resolved {
		p := table.InsertOrLookup(m.Category, m.Text)
		b.WriteString(text[last:m.Start])
		b.WriteString(p.String())
		last = m.End
	}
	b.WriteString(text[last:])

	logger.Debug("scrubbed %d spans (%d distinct placeholders in table)", len(resolved), table.Len())
	return b.String()
}

// filterExcluded drops matches whose text contains an allow-listed term.
// Comparison is on normalised forms, as the allow-list holds clinical
// vocabulary ("Occupational Therapist") that may appear inside a larger
// matched span.
func (s *Scrubber) filterExcluded(matches []domain.Match) []domain.Match {
	if len(s.excluded) == 0 {
		return matches
	}

	kept := matches[:0]
	for _, m := range matches {
		norm := domain.NormaliseValue(m.Text)
		allowed := false
		for _, term := range s.excluded {
			if strings.Contains(norm, term) {
				allowed = true
				break
			}
		}
		if !allowed {
			kept = append(kept, m)
		}
	}
	return kept
}

// Restore replaces every placeholder token in text with its original
// value, verbatim. A placeholder missing from the table is a hard error:
// the engine never drops or guesses PHI, because a missing mapping means
// corruption or cross-session contamination. Text without placeholders is
// returned unchanged, and bracketed text that is not a well-formed
// placeholder is left untouched.
func (s *Scrubber) Restore(text string, table *domain.ReferenceTable) (string, error) {
	locs := domain.PlaceholderPattern().FindAllStringIndex(text, -1)
	if locs == nil {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		token := domain.Placeholder(text[loc[0]:loc[1]])
		original, ok := table.Lookup(token)
		if !ok {
			return "", &domain.UnknownPlaceholderError{Placeholder: token}
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(original)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
