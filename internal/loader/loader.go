// Package loader reads source documents and extracts their plain text.
//
// A document loads into one or more units: plain-text formats produce a
// single unit, paginated formats (PDF) produce one unit per page with the
// page number carried as the section hint. Unsupported extensions are
// rejected before any content reaches the chunking or storage layers.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for file extensions with no loader.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument is returned when a loader extracts zero characters.
	ErrEmptyDocument = errors.New("no text extracted from document")
)

// Unit is one loaded slice of a document: the whole file for flat formats,
// a single page for paginated ones.
type Unit struct {
	// Text is the extracted plain text.
	Text string

	// Section is an optional sub-location hint, e.g. a page number.
	// Empty when the format has no internal structure.
	Section string
}

// Extensions lists the file extensions Load accepts.
func Extensions() []string {
	return []string{".txt", ".md", ".pdf", ".docx"}
}

// Supported reports whether the file extension has a loader.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".md", ".pdf", ".docx":
		return true
	}
	return false
}

// Load reads the file at path and extracts its text by extension.
//
// Returns ErrUnsupportedFormat for unrecognized extensions and
// ErrEmptyDocument when extraction produces no text at all.
func Load(path string) ([]Unit, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		units []Unit
		err   error
	)
	switch ext {
	case ".txt", ".md":
		units, err = loadPlainText(path)
	case ".pdf":
		units, err = loadPDF(path)
	case ".docx":
		units, err = loadDOCX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	if totalLen(units) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filepath.Base(path))
	}
	return units, nil
}

// FromString wraps pasted text as a single loaded unit.
// Returns ErrEmptyDocument for empty or whitespace-only input.
func FromString(text string) ([]Unit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	return []Unit{{Text: text}}, nil
}

func loadPlainText(path string) ([]Unit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return []Unit{{Text: string(content)}}, nil
}

func totalLen(units []Unit) int {
	n := 0
	for _, u := range units {
		n += len(strings.TrimSpace(u.Text))
	}
	return n
}
