package extract

import (
	"regexp"
	"strings"
)

var (
	productBlockRe = regexp.MustCompile(`(?is)Product Details\s*(.*?)TAX INVOICE`)
	lineBreakRe    = regexp.MustCompile(`\r?\n`)
	orderTailRe    = regexp.MustCompile(`\d+_\d+$`)
)

var headerTokens = []string{"sku", "size", "qty", "color", "order no"}

// FindProductRow locates the product table of a chunk and returns its data
// row. The row ends at the first line finishing with an order number of the
// form digits_digits.
func FindProductRow(chunk string) (ProductRow, error) {
	m := productBlockRe.FindStringSubmatch(chunk)
	if m == nil {
		return ProductRow{}, ErrNoProductBlock
	}

	var lines []string
	for _, l := range lineBreakRe.Split(strings.TrimSpace(m[1]), -1) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	header := -1
	for i, l := range lines {
		if isHeaderLine(l) {
			header = i
			break
		}
	}
	if header < 0 {
		return ProductRow{}, ErrNoHeader
	}

	var buf []string
	raw := ""
	for _, l := range lines[header+1:] {
		if orderTailRe.MatchString(l) {
			raw = l
			break
		}
		buf = append(buf, l)
	}

	// A single wrapped line is the row itself.
	if len(buf) == 1 {
		raw = strings.TrimSpace(strings.TrimRight(buf[0], ","))
	}
	if raw == "" {
		return ProductRow{}, ErrNoProductRow
	}

	return ProductRow{Raw: raw, Lines: buf}, nil
}

func isHeaderLine(l string) bool {
	l = strings.ToLower(l)
	for _, tok := range headerTokens {
		if !strings.Contains(l, tok) {
			return false
		}
	}
	return true
}
