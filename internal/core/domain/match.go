package domain

import "sort"

// Match is a detected PHI span in source text. Matches are transient:
// produced by the catalog and consumed within a single scrub pass.
// Offsets are byte offsets into the text the catalog was given.
type Match struct {
	// Start is the byte offset of the first byte of the span.
	Start int

	// End is the byte offset one past the last byte of the span.
	End int

	// Category is the PHI category the matcher belongs to.
	Category Category

	// Priority is the category's conflict rank. Lower wins overlaps.
	Priority int

	// Text is the matched source text, exactly as it appears.
	Text string
}

// Len returns the span length in bytes.
func (m Match) Len() int {
	return m.End - m.Start
}

// Overlaps reports whether two spans share at least one byte.
func (m Match) Overlaps(other Match) bool {
	return m.Start < other.End && other.Start < m.End
}

// ResolveOverlaps removes overlapping matches deterministically:
// higher-priority category wins (lower rank), then the longer span,
// then the left-most start. The result is sorted by start offset and
// contains no overlapping spans. The same input always produces the
// same output.
func ResolveOverlaps(matches []Match) []Match {
	if len(matches) <= 1 {
		return append([]Match(nil), matches...)
	}

	// Order candidates by winning criteria so a single greedy pass
	// keeps exactly the spans the policy prefers.
	ranked := append([]Match(nil), matches...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority < ranked[j].Priority
		}
		if ranked[i].Len() != ranked[j].Len() {
			return ranked[i].Len() > ranked[j].Len()
		}
		if ranked[i].Start != ranked[j].Start {
			return ranked[i].Start < ranked[j].Start
		}
		// Full tie: fixed category order keeps the pass reproducible.
		return ranked[i].Category < ranked[j].Category
	})

	var kept []Match
	for _, cand := range ranked {
		conflict := false
		for _, k := range kept {
			if cand.Overlaps(k) {
				conflict = true
				break
			}
		}
		// Identical spans from two matchers of one category collapse
		// to a single match.
		if !conflict {
			kept = append(kept, cand)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
