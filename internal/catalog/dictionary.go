package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// Ensure DictionaryMatcher implements the interface.
var _ driven.Matcher = (*DictionaryMatcher)(nil)

// DictionaryMatcher finds occurrences of a fixed vocabulary (known
// facility names, clinic addresses, staff rosters). Terms are matched
// case-insensitively on word boundaries, longest term first, so "Riverside
// Clinic East" wins over "Riverside Clinic".
type DictionaryMatcher struct {
	category domain.Category
	re       *regexp.Regexp
}

// newDictionaryMatcher compiles the vocabulary into a single alternation.
func newDictionaryMatcher(category domain.Category, terms []string) (*DictionaryMatcher, error) {
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term != "" {
			cleaned = append(cleaned, term)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("dictionary has no usable terms")
	}

	// Longest first so alternation prefers the most specific term.
	for i := 1; i < len(cleaned); i++ {
		for j := i; j > 0 && len(cleaned[j]) > len(cleaned[j-1]); j-- {
			cleaned[j], cleaned[j-1] = cleaned[j-1], cleaned[j]
		}
	}

	quoted := make([]string, len(cleaned))
	for i, term := range cleaned {
		quoted[i] = regexp.QuoteMeta(term)
	}

	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, err
	}
	return &DictionaryMatcher{category: category, re: re}, nil
}

// Category returns the PHI category this matcher detects.
func (m *DictionaryMatcher) Category() domain.Category {
	return m.category
}

// FindSpans returns every vocabulary occurrence in text.
func (m *DictionaryMatcher) FindSpans(text string) []domain.Match {
	locs := m.re.FindAllStringIndex(text, -1)
	if locs == nil {
		return nil
	}

	matches := make([]domain.Match, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, domain.Match{
			Start:    loc[0],
			End:      loc[1],
			Category: m.category,
			Text:     text[loc[0]:loc[1]],
		})
	}
	return matches
}
