package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	digitLetterRe = regexp.MustCompile(`(\d)([A-Za-z])`)
	camelRe       = regexp.MustCompile(`([a-z])([A-Z])`)
	leadingIntRe  = regexp.MustCompile(`^[+-]?\d+`)
)

// Normalize separates tokens that the PDF text layer ran together:
// "RA8" -> "RA 8" (but "X-A8" is kept), "1Red" -> "1 Red",
// "freeSize" -> "free Size".
func Normalize(raw string) string {
	s := splitLetterDigit(raw)
	s = digitLetterRe.ReplaceAllString(s, "${1} ${2}")
	s = camelRe.ReplaceAllString(s, "${1} ${2}")
	return strings.TrimSpace(s)
}

// splitLetterDigit inserts a space between a letter and the digit after it
// unless the letter follows a hyphen.
func splitLetterDigit(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		sb.WriteByte(c)
		if isLetter(c) && i+1 < len(s) && isDigit(s[i+1]) && (i == 0 || s[i-1] != '-') {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// ParseFields reads SKU, size, quantity, color and order number from a
// product row. Columns are taken from the end of the row, so a SKU that
// contains spaces does not shift them. Missing values come back empty.
func ParseFields(row ProductRow) Fields {
	parts := strings.Fields(Normalize(row.Raw))
	pop := func(fallback string) string {
		if len(parts) == 0 {
			return fallback
		}
		v := parts[len(parts)-1]
		parts = parts[:len(parts)-1]
		return v
	}

	orderNo := pop("")
	color := pop("")
	qty := pop("1")
	size2 := pop("")
	size1 := pop("")

	// Prefer the raw text before the "{size1} {size2}" phrase: it keeps the
	// SKU's own spacing and punctuation. With no size tokens the phrase is a
	// single space, so the SKU is the first raw word.
	var sku string
	if len(row.Lines) > 1 {
		sku = strings.Join(row.Lines, " ")
	} else if idx := strings.Index(asciiLower(row.Raw), asciiLower(size1+" "+size2)); idx > 0 {
		sku = strings.TrimSpace(row.Raw[:idx])
	} else {
		sku = strings.Join(parts, " ")
	}

	return Fields{
		SKU:      sku,
		Size:     strings.Join(nonEmpty(size1, size2), " "),
		Quantity: parseQuantity(qty),
		Color:    color,
		OrderNo:  orderNo,
	}
}

// parseQuantity reads the leading integer of s. Anything unparsable, zero,
// and values that overflow int count as one item.
func parseQuantity(s string) int {
	m := leadingIntRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return 1
	}
	n, err := strconv.Atoi(m)
	if err != nil || n == 0 {
		return 1
	}
	return n
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// asciiLower lowercases ASCII letters only so byte offsets stay valid
// against the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func isLetter(c byte) bool { return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' }
func isDigit(c byte) bool  { return '0' <= c && c <= '9' }
