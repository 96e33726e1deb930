package catalog

import (
	"regexp"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// Ensure RegexMatcher implements the interface.
var _ driven.Matcher = (*RegexMatcher)(nil)

// RegexMatcher finds spans of one category with a compiled regular
// expression. When the pattern contains a capture group, group 1 defines
// the reported span: the surrounding context (labels like "DOB:", trailing
// keywords like "born") anchors the match but is not replaced. RE2 has no
// lookarounds, so capture groups are how context-bounded patterns are
// written.
type RegexMatcher struct {
	category domain.Category
	re       *regexp.Regexp
}

// newRegexMatcher compiles the pattern, failing fast on a bad expression.
func newRegexMatcher(category domain.Category, pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexMatcher{category: category, re: re}, nil
}

// Category returns the PHI category this matcher detects.
func (m *RegexMatcher) Category() domain.Category {
	return m.category
}

// FindSpans returns every match of the pattern in text.
func (m *RegexMatcher) FindSpans(text string) []domain.Match {
	locs := m.re.FindAllStringSubmatchIndex(text, -1)
	if locs == nil {
		return nil
	}

	matches := make([]domain.Match, 0, len(locs))
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		// Group 1, when present and matched, narrows the span.
		if len(loc) >= 4 && loc[2] >= 0 {
			start, end = loc[2], loc[3]
		}
		if start == end {
			continue
		}
		matches = append(matches, domain.Match{
			Start:    start,
			End:      end,
			Category: m.category,
			Text:     text[start:end],
		})
	}
	return matches
}
