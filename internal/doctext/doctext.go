package doctext

import "strings"

// Fragment is a short text run with its page coordinates. Larger Y is higher
// on the page.
type Fragment struct {
	Text string
	X    float64
	Y    float64
	Page int
}

// Page holds the fragments of one page in source order (no ordering assumed).
type Page struct {
	Index     int
	Fragments []Fragment
}

// Document is the reconstructed plain text of a whole file.
type Document struct {
	Text  string
	Pages int
}

// Lines returns the document text split on newlines, blank lines included.
func (d Document) Lines() []string {
	if d.Text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
}

// LineStride is the vertical distance LinePages puts between lines. It is
// far above any useful line tolerance, so such lines never merge.
const LineStride = 100.0

// LinePages converts already line-broken text into pages of fragments, one
// fragment per line, laid out top to bottom. Formats without geometry (plain
// text, HTML, DOCX, Markdown) go through this so reconstruction is the single
// path for every input.
func LinePages(pages [][]string) []Page {
	out := make([]Page, 0, len(pages))
	for i, lines := range pages {
		p := Page{Index: i, Fragments: make([]Fragment, 0, len(lines))}
		for j, line := range lines {
			p.Fragments = append(p.Fragments, Fragment{
				Text: line,
				Y:    float64(len(lines)-j) * LineStride,
				Page: i,
			})
		}
		out = append(out, p)
	}
	return out
}
