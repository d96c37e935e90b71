package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/labelgest/internal/doctext"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Every paragraph becomes a line and every
// table row a line of space-separated cells.
type DOCXParser struct{}

func (p *DOCXParser) Parse(ctx context.Context, r io.Reader, filename string) ([]doctext.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read: %v", ErrUnreadable, filename, err)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse docx: %v", ErrUnreadable, filename, err)
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		switch o := item.(type) {
		case *docx.Paragraph:
			lines = append(lines, docxParagraphText(o))
		case *docx.Table:
			lines = append(lines, docxTableLines(o)...)
		}
	}

	pages := linePages([][]string{lines})
	if pages == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return pages, nil
}

func docxTableLines(t *docx.Table) []string {
	var lines []string
	for _, row := range t.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if s := docxParagraphText(para); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				cells = append(cells, strings.Join(parts, " "))
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	}
	return lines
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
