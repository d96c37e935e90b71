package extract

import "regexp"

// GSTIN: 2 digits, 5 letters, 4 digits, a letter, a digit, 'Z', a check digit.
var gstinRe = regexp.MustCompile(`\b\d{2}[A-Z]{5}\d{4}[A-Z]\dZ\d\b`)

// FindGSTIN returns the first GSTIN printed in the text. The order ledger
// partitions records by it.
func FindGSTIN(text string) (string, bool) {
	m := gstinRe.FindString(text)
	return m, m != ""
}
