package cli

import (
	"fmt"
	"strings"

	"github.com/calyx-health/deid/internal/core/ports/driving"
)

// splitSections divides a document into named sections on markdown-style
// "## " headings. The heading is slugified into the section name
// ("## Background Information" becomes background_information) so the
// engine can apply section-specific prompt guidance. Text before the
// first heading becomes a "document" section.
func splitSections(text string) []driving.Section {
	var sections []driving.Section
	current := driving.Section{Name: "document"}
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			current.Content = content
			sections = append(sections, current)
		}
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if heading, ok := strings.CutPrefix(line, "## "); ok {
			flush()
			current = driving.Section{Name: slugify(heading)}
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, driving.Section{Name: "document", Content: strings.TrimSpace(text)})
	}
	return sections
}

// joinSections renders sections back into one document, restoring the
// headings for every section that came from one.
func joinSections(sections []driving.Section) string {
	var b strings.Builder
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if sec.Name != "document" {
			fmt.Fprintf(&b, "## %s\n\n", unslugify(sec.Name))
		}
		b.WriteString(sec.Content)
	}
	return b.String()
}

// slugify lowercases a heading and joins its words with underscores.
func slugify(heading string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(heading)))
	kept := words[:0]
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, w)
		if w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, "_")
}

// unslugify is the display inverse of slugify.
func unslugify(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
