package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/labelgest/internal/doctext"
	pdflib "github.com/ledongthuc/pdf"
)

// Glyphs closer than this vertically sit on the same baseline.
const baselineEpsilon = 0.5

// PDFParser handles PDF files. It reads positioned glyphs with the Go
// library and can fall back to pdftotext when that fails.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string) ([]doctext.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read: %v", ErrUnreadable, filename, err)
	}

	pages, err := readPDFPages(data)
	if err != nil && p.FallbackPdftotext {
		var fbErr error
		pages, fbErr = pdftotextPages(ctx, data)
		if fbErr != nil {
			err = fmt.Errorf("%v; pdftotext: %v", err, fbErr)
		} else {
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, filename, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return pages, nil
}

// readPDFPages extracts every page's text runs with their coordinates. The
// library panics on some malformed content streams; that is reported as an
// error.
func readPDFPages(data []byte) (pages []doctext.Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("pdf content: %v", rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, doctext.Page{
			Index:     i - 1,
			Fragments: mergeGlyphs(page.Content().Text, i-1),
		})
	}
	return pages, nil
}

// mergeGlyphs joins the per-glyph output of the content stream into text
// runs. A glyph continues the current run when it shares its baseline and
// starts within a fifth of an em of where the run ends; anything further
// away opens a new run, which line reconstruction later separates with a
// space.
func mergeGlyphs(glyphs []pdflib.Text, page int) []doctext.Fragment {
	var out []doctext.Fragment
	var cur strings.Builder
	var x, y, end float64
	open := false

	flush := func() {
		if open && strings.TrimSpace(cur.String()) != "" {
			out = append(out, doctext.Fragment{
				Text: strings.TrimSpace(cur.String()),
				X:    x,
				Y:    y,
				Page: page,
			})
		}
		cur.Reset()
		open = false
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		gap := 0.2 * g.FontSize
		if gap <= 0 {
			gap = 1
		}
		if open && math.Abs(g.Y-y) <= baselineEpsilon && g.X >= x && g.X <= end+gap {
			cur.WriteString(g.S)
			end = math.Max(end, g.X+g.W)
			continue
		}
		flush()
		cur.WriteString(g.S)
		x, y, end = g.X, g.Y, g.X+g.W
		open = true
	}
	flush()
	return out
}

// pdftotextPages runs poppler's pdftotext in layout mode. Its output has
// no coordinates, so lines are laid out top to bottom and pages split on
// form feeds.
func pdftotextPages(ctx context.Context, data []byte) ([]doctext.Page, error) {
	tmp, err := os.CreateTemp("", "labelgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", tmpPath, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	var pages [][]string
	for _, page := range strings.Split(string(out), "\f") {
		pages = append(pages, strings.Split(strings.ReplaceAll(page, "\r\n", "\n"), "\n"))
	}
	// pdftotext ends the last page with a form feed.
	if n := len(pages); n > 0 && len(pages[n-1]) == 1 && pages[n-1][0] == "" {
		pages = pages[:n-1]
	}
	return linePages(pages), nil
}
