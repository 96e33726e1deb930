// Package reader loads clinical documents into plain text for the engine.
// Assessment notes arrive as .docx exports from practice software or as
// plain text; everything downstream of this package sees only text.
package reader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/calyx-health/deid/internal/core/domain"
)

// ReadFile loads a document by path, extracting text from DOCX archives
// and passing any other file through as plain text.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return ExtractDocx(data)
	}
	return string(data), nil
}

// ExtractDocx pulls the paragraph text out of a DOCX archive, one line per
// paragraph. Formatting, tables-of-contents and embedded media are
// discarded; the engine only needs the narrative text.
func ExtractDocx(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a DOCX archive: %w", domain.ErrConfiguration)
	}

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("opening document body: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading document body: %w", err)
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("no document body found: %w", domain.ErrConfiguration)
}

// documentXML mirrors the parts of word/document.xml the extraction needs.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parsing document body: %w", err)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
