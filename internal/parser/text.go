package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/labelgest/internal/doctext"
)

// TextParser handles plain text exports of label PDFs. Form feeds separate
// pages.
type TextParser struct{}

func (p *TextParser) Parse(ctx context.Context, r io.Reader, filename string) ([]doctext.Page, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	pages := [][]string{nil}
	for scanner.Scan() {
		parts := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\f")
		for i, part := range parts {
			if i > 0 {
				pages = append(pages, nil)
			}
			if i > 0 && part == "" {
				continue
			}
			pages[len(pages)-1] = append(pages[len(pages)-1], part)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, filename, err)
	}

	out := linePages(pages)
	if out == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return out, nil
}
