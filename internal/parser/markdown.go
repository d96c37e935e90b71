package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/labelgest/internal/doctext"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Each block keeps
// its own line breaks and a thematic break (---) starts a new page.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(ctx context.Context, r io.Reader, filename string) ([]doctext.Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read: %v", ErrUnreadable, filename, err)
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	pages := [][]string{nil}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() == ast.KindThematicBreak {
			pages = append(pages, nil)
			continue
		}
		t := extractText(n, src)
		if t == "" {
			continue
		}
		last := len(pages) - 1
		pages[last] = append(pages[last], strings.Split(t, "\n")...)
	}

	out := linePages(pages)
	if out == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return out, nil
}

// extractText gets the text content of a goldmark AST node, one output line
// per source line.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		default:
			s := extractText(c, src)
			if s == "" {
				continue
			}
			if c.Type() == ast.TypeBlock && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
				buf.WriteByte('\n')
			}
			buf.WriteString(s)
			if c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
