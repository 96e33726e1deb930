package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyx-health/deid/internal/core/domain"
)

func personCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(domain.EngineConfig{Categories: []domain.CategoryConfig{
		{Name: "PERSON", Priority: 2, Matchers: []domain.MatcherConfig{
			{Kind: domain.MatcherRegex, Pattern: `\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`},
		}},
	}})
	require.NoError(t, err)
	return c
}

// TestNew_Defaults tests that an empty config compiles the builtin set
func TestNew_Defaults(t *testing.T) {
	c, err := New(domain.EngineConfig{})
	require.NoError(t, err)

	cats := c.Categories()
	assert.Contains(t, cats, domain.CategoryPerson)
	assert.Contains(t, cats, domain.CategoryMedicalRecord)
	// Priority order: structured identifiers first.
	assert.Equal(t, domain.CategoryMedicalRecord, cats[0])
}

// TestNew_BadPatternFailsAtLoad tests fail-fast on malformed regex
func TestNew_BadPatternFailsAtLoad(t *testing.T) {
	_, err := New(domain.EngineConfig{Categories: []domain.CategoryConfig{
		{Name: "PERSON", Matchers: []domain.MatcherConfig{
			{Kind: domain.MatcherRegex, Pattern: `([unclosed`},
		}},
	}})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

// TestCatalog_Classify tests span detection with priorities stamped
func TestCatalog_Classify(t *testing.T) {
	c := personCatalog(t)

	matches := c.Classify("Seen with John Smith and later Jane Doe.")

	require.Len(t, matches, 2)
	assert.Equal(t, "John Smith", matches[0].Text)
	assert.Equal(t, domain.CategoryPerson, matches[0].Category)
	assert.Equal(t, 2, matches[0].Priority)
	assert.Equal(t, "Jane Doe", matches[1].Text)
}

// TestCatalog_ClassifyNoMatches tests the empty result
func TestCatalog_ClassifyNoMatches(t *testing.T) {
	c := personCatalog(t)
	assert.Empty(t, c.Classify("nothing identifying here"))
}

// TestRegexMatcher_CaptureGroupNarrowsSpan tests label-anchored patterns
func TestRegexMatcher_CaptureGroupNarrowsSpan(t *testing.T) {
	m, err := newRegexMatcher(domain.CategoryDate, `DOB:\s*(\d{1,2}/\d{1,2}/\d{4})`)
	require.NoError(t, err)

	matches := m.FindSpans("DOB: 05/01/1980 noted on intake.")

	require.Len(t, matches, 1)
	assert.Equal(t, "05/01/1980", matches[0].Text)
	assert.Equal(t, len("DOB: "), matches[0].Start)
}

// TestDictionaryMatcher tests vocabulary matching
func TestDictionaryMatcher(t *testing.T) {
	m, err := newDictionaryMatcher(domain.Category("FACILITY"), []string{
		"Riverside Clinic",
		"Riverside Clinic East",
	})
	require.NoError(t, err)

	matches := m.FindSpans("Referred to riverside clinic east for follow-up.")

	require.Len(t, matches, 1)
	// Longest term wins the alternation.
	assert.Equal(t, "riverside clinic east", matches[0].Text)
}

// TestDictionaryMatcher_WordBoundaries tests substring rejection
func TestDictionaryMatcher_WordBoundaries(t *testing.T) {
	m, err := newDictionaryMatcher(domain.Category("FACILITY"), []string{"Oak"})
	require.NoError(t, err)

	assert.Empty(t, m.FindSpans("Oakland has no standalone mention"))
	assert.Len(t, m.FindSpans("under the Oak tree"), 1)
}

// TestDefaultCategories tests the builtin clinical patterns on report text
func TestDefaultCategories(t *testing.T) {
	c, err := New(domain.EngineConfig{})
	require.NoError(t, err)

	text := "Mr. John Smith, DOB: 05/01/1980, MRN: A-12345. Phone: (613) 555-0188. " +
		"Lives at 12 Oak Street. Contact: smith@example.com. Claim No: CL-99812."

	matches := domain.ResolveOverlaps(c.Classify(text))

	found := make(map[domain.Category]string)
	for _, m := range matches {
		found[m.Category] = m.Text
	}

	assert.Equal(t, "Mr. John Smith", found[domain.CategoryPerson])
	assert.Equal(t, "05/01/1980", found[domain.CategoryDate])
	assert.Equal(t, "A-12345", found[domain.CategoryMedicalRecord])
	assert.Equal(t, "12 Oak Street", found[domain.CategoryAddress])
	assert.Equal(t, "smith@example.com", found[domain.CategoryEmail])
	assert.Equal(t, "CL-99812", found[domain.CategoryIDNumber])
	assert.NotEmpty(t, found[domain.CategoryPhone])
}
