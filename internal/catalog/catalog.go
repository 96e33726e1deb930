// Package catalog assembles the declarative PHI pattern catalog: per
// category, one or more matchers (regex or dictionary) plus a conflict
// priority. Matchers are compiled once at load time; a malformed
// declaration is rejected there, never during scrub.
package catalog

import (
	"fmt"
	"sort"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// Ensure Catalog implements the interface.
var _ driven.Catalog = (*Catalog)(nil)

// entry pairs a compiled matcher with its category's priority rank.
type entry struct {
	matcher  driven.Matcher
	priority int
}

// Catalog holds the compiled matcher set for one configuration.
type Catalog struct {
	entries    []entry
	categories []domain.Category
}

// New compiles a catalog from configuration. An empty category list means
// the built-in clinical defaults. Any malformed matcher fails the whole
// load with an error wrapping domain.ErrConfiguration.
func New(cfg domain.EngineConfig) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cats := cfg.Categories
	if len(cats) == 0 {
		cats = DefaultCategories()
	}

	c := &Catalog{}
	for _, cat := range cats {
		name := domain.NormaliseCategory(cat.Name)
		c.categories = append(c.categories, name)

		for i, mc := range cat.Matchers {
			m, err := newMatcher(name, mc)
			if err != nil {
				return nil, fmt.Errorf("%w: category %q matcher %d: %v", domain.ErrConfiguration, name, i, err)
			}
			c.entries = append(c.entries, entry{matcher: m, priority: cat.Priority})
		}
	}

	sort.SliceStable(c.categories, func(i, j int) bool {
		return priorityOf(cats, c.categories[i]) < priorityOf(cats, c.categories[j])
	})
	return c, nil
}

// newMatcher builds the concrete matcher for a declaration.
func newMatcher(category domain.Category, mc domain.MatcherConfig) (driven.Matcher, error) {
	switch mc.Kind {
	case domain.MatcherRegex:
		return newRegexMatcher(category, mc.Pattern)
	case domain.MatcherDictionary:
		return newDictionaryMatcher(category, mc.Terms)
	default:
		return nil, fmt.Errorf("unknown matcher kind %q", mc.Kind)
	}
}

func priorityOf(cats []domain.CategoryConfig, name domain.Category) int {
	for _, c := range cats {
		if domain.NormaliseCategory(c.Name) == name {
			return c.Priority
		}
	}
	return 0
}

// Classify runs every matcher over text and returns all detected spans,
// stamped with their category's priority. Overlap resolution is the scrub
// engine's job.
func (c *Catalog) Classify(text string) []domain.Match {
	var all []domain.Match
	for _, e := range c.entries {
		for _, m := range e.matcher.FindSpans(text) {
			m.Priority = e.priority
			all = append(all, m)
		}
	}
	return all
}

// Categories lists the configured categories in priority order.
func (c *Catalog) Categories() []domain.Category {
	return append([]domain.Category(nil), c.categories...)
}
