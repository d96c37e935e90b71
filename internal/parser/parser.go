package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/labelgest/internal/doctext"
)

// Whole-document failures. Callers tell them apart with errors.Is.
var (
	ErrUnreadable    = errors.New("document unreadable")
	ErrEmptyDocument = errors.New("document has no pages")
)

// Parser converts raw document bytes into pages of positioned text.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) ([]doctext.Page, error)
}

// Options tune parser selection.
type Options struct {
	FallbackPdftotext bool // retry unreadable PDFs with poppler's pdftotext
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// linePages drops trailing blank lines from every page and returns nil when
// no page has any text left.
func linePages(pages [][]string) []doctext.Page {
	var kept [][]string
	hasText := false
	for _, lines := range pages {
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) > 0 {
			hasText = true
		}
		kept = append(kept, lines)
	}
	if !hasText {
		return nil
	}
	return doctext.LinePages(kept)
}
