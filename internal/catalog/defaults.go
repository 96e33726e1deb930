package catalog

import "github.com/calyx-health/deid/internal/core/domain"

// DefaultCategories returns the built-in clinical pattern set, tuned for
// occupational therapy and medico-legal reports. Institutions extend or
// replace it through configuration without touching any other component.
//
// Lower priority rank wins overlap conflicts: structured identifiers
// (MRNs, claim numbers) outrank free-text categories so an MRN inside a
// labelled line is never half-claimed by a name pattern. Patterns use a
// capture group where a label or keyword anchors the match but must stay
// in the text ("DOB:" survives, the date does not).
func DefaultCategories() []domain.CategoryConfig {
	return []domain.CategoryConfig{
		{
			Name:     string(domain.CategoryMedicalRecord),
			Priority: 0,
			Matchers: []domain.MatcherConfig{
				{Kind: domain.MatcherRegex, Pattern: `(?i)\b(?:MRN|Medical\s+Record\s+(?:Number|No\.?)|Patient\s+ID|Record\s+#)\s*:?\s*([A-Z0-9][A-Z0-9-]{4,})`},
			},
		},
		{
			Name:     string(domain.CategoryIDNumber),
			Priority: 1,
			Matchers: []domain.MatcherConfig{
				{Kind: domain.MatcherRegex, Pattern: `(?i)\b(?:Claim|File|Policy)\s+(?:No\.?|Number)\s*:?\s*([A-Z0-9][A-Z0-9-]{4,})`},
			},
		},
		{
			Name:     string(domain.CategoryPerson),
			Priority: 2,
			Matchers: []domain.MatcherConfig{
				// Titled names: Mr. John Smith, Dr. Aricha.
				{Kind: domain.MatcherRegex, Pattern: `\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`},
				// Labelled names: "Patient name: John Smith". The label
				// survives; only the name is replaced.
				{Kind: domain.MatcherRegex, Pattern: `(?i)\b(?:patient|client|name)\s*(?:name|is)?\s*:\s*((?-i:[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+))`},
				// Full name anchored by a following birth reference.
				{Kind: domain.MatcherRegex, Pattern: `\b([A-Z][a-z]+\s+[A-Z][a-z]+),?\s+(?:born|DOB|date of birth)\b`},
			},
		},
		{
			Name:     string(domain.CategoryDate),
			Priority: 3,
			Matchers: []domain.MatcherConfig{
				// Labelled clinical dates: DOB, assessment, injury.
				{Kind: domain.MatcherRegex, Pattern: `(?i)\b(?:DOB|Date\s+of\s+Birth|Birth\s+Date|Assessment\s+Date|Evaluation\s+Date|Date\s+of\s+(?:Assessment|Evaluation|Loss|Injury)|Accident\s+Date|Injury\s+Date)\s*:\s*(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`},
				// ISO dates.
				{Kind: domain.MatcherRegex, Pattern: `\b\d{4}-\d{2}-\d{2}\b`},
			},
		},
		{
			Name:     string(domain.CategoryPhone),
			Priority: 4,
			Matchers: []domain.MatcherConfig{
				{Kind: domain.MatcherRegex, Pattern: `(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}\b`},
			},
		},
		{
			Name:     string(domain.CategoryEmail),
			Priority: 5,
			Matchers: []domain.MatcherConfig{
				{Kind: domain.MatcherRegex, Pattern: `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`},
			},
		},
		{
			Name:     string(domain.CategoryAddress),
			Priority: 6,
			Matchers: []domain.MatcherConfig{
				{Kind: domain.MatcherRegex, Pattern: `\b\d+\s+[A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl)\b`},
			},
		},
	}
}
