package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder is the opaque token substituted for a PHI span, of the form
// [CATEGORY_<id>]. The id is scoped to one reference table: within a table
// a placeholder maps to exactly one original value and back.
type Placeholder string

// placeholderRe matches a complete placeholder token. The trailing digits
// distinguish placeholders from other bracketed text, which restore must
// leave untouched.
var placeholderRe = regexp.MustCompile(`\[([A-Z][A-Z0-9_]*)_(\d+)\]`)

// PlaceholderPattern returns the compiled pattern recognising placeholder
// tokens, for callers that scan text (restore, chunk splitting).
func PlaceholderPattern() *regexp.Regexp {
	return placeholderRe
}

// NewPlaceholder builds the token for a category and allocation id.
func NewPlaceholder(category Category, id uint64) Placeholder {
	return Placeholder(fmt.Sprintf("[%s_%d]", category, id))
}

// String returns the token text.
func (p Placeholder) String() string {
	return string(p)
}

// Category extracts the category embedded in the token, or "" if the
// token is not a well-formed placeholder.
func (p Placeholder) Category() Category {
	parts := placeholderRe.FindStringSubmatch(string(p))
	if parts == nil {
		return ""
	}
	return Category(parts[1])
}

// IsPlaceholder reports whether s is exactly one placeholder token.
func IsPlaceholder(s string) bool {
	loc := placeholderRe.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// whitespaceRe collapses runs of whitespace for value normalisation.
var whitespaceRe = regexp.MustCompile(`\s+`)

// NormaliseValue produces the case- and whitespace-insensitive key used
// to deduplicate original values. "John  Smith" and "john smith" share
// one placeholder.
func NormaliseValue(value string) string {
	v := strings.TrimSpace(value)
	v = whitespaceRe.ReplaceAllString(v, " ")
	return strings.ToLower(v)
}
