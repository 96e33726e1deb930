package driven

import "github.com/calyx-health/deid/internal/core/domain"

// Matcher finds PHI spans of one category in text. Concrete variants are
// regex and dictionary matchers; adding a variant must not require touching
// any other component.
type Matcher interface {
	// Category returns the PHI category this matcher detects.
	Category() domain.Category

	// FindSpans returns every span of the matcher's category found in
	// text. Offsets are byte offsets into text. Spans from one matcher
	// may overlap spans from others; the scrub engine resolves conflicts.
	FindSpans(text string) []domain.Match
}

// Catalog is the assembled set of matchers for a session's configuration.
type Catalog interface {
	// Classify runs every matcher and returns all detected spans,
	// unresolved.
	Classify(text string) []domain.Match

	// Categories lists the configured categories in priority order.
	Categories() []domain.Category
}
