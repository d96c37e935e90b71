package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/labelgest/internal/doctext"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML renderings of label sheets. Block elements and
// table rows become lines, table cells are separated by spaces and <hr>
// starts a new page.
type HTMLParser struct{}

func (p *HTMLParser) Parse(ctx context.Context, r io.Reader, filename string) ([]doctext.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse html: %v", ErrUnreadable, filename, err)
	}

	w := &lineWriter{pages: [][]string{nil}}

	var walk func(*html.Node, bool)
	walk = func(n *html.Node, pre bool) {
		switch n.Type {
		case html.TextNode:
			if pre {
				lines := strings.Split(n.Data, "\n")
				for i, l := range lines {
					if i > 0 {
						w.flush()
					}
					w.cur.WriteString(l)
				}
				return
			}
			w.cur.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head", "noscript", "template":
				return
			case "br":
				w.flush()
				return
			case "hr":
				w.pageBreak()
				return
			case "td", "th":
				w.cur.WriteByte(' ')
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, pre)
				}
				w.cur.WriteByte(' ')
				return
			}
			if isBlock(n.Data) {
				w.flush()
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, pre || n.Data == "pre")
				}
				w.flush()
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, pre)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body, false)
	} else {
		walk(doc, false)
	}
	w.flush()

	pages := linePages(w.pages)
	if pages == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return pages, nil
}

// lineWriter accumulates inline text into lines and lines into pages.
type lineWriter struct {
	pages [][]string
	cur   strings.Builder
}

func (w *lineWriter) flush() {
	line := strings.Join(strings.Fields(w.cur.String()), " ")
	w.cur.Reset()
	if line == "" {
		return
	}
	last := len(w.pages) - 1
	w.pages[last] = append(w.pages[last], line)
}

func (w *lineWriter) pageBreak() {
	w.flush()
	w.pages = append(w.pages, nil)
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "table", "ul", "ol", "section", "article",
		"address", "blockquote", "pre", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
