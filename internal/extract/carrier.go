package extract

import (
	"regexp"
	"strings"
)

// UnknownCarrier is reported when no delivery partner can be identified.
const UnknownCarrier = "Unknown"

// DefaultCarriers in match priority order.
var DefaultCarriers = []string{
	"Ecom Express",
	"Delhivery",
	"DTDC",
	"Blue Dart",
	"Bluedart",
	"Xpressbees",
	"Shiprocket",
	"Shadowfax",
}

var codLineRe = regexp.MustCompile(`(?i)COD:[^\n]+\n\s*([^\n]+)`)

// DetectCarrier returns the first carrier of the list found in the chunk.
// Failing that it re-checks the line printed under the "COD:" annotation.
// Matching is case-sensitive throughout.
func DetectCarrier(chunk string, carriers []string) string {
	if carriers == nil {
		carriers = DefaultCarriers
	}
	if c, ok := firstCarrier(chunk, carriers); ok {
		return c
	}
	if m := codLineRe.FindStringSubmatch(chunk); m != nil {
		if c, ok := firstCarrier(strings.TrimSpace(m[1]), carriers); ok {
			return c
		}
	}
	return UnknownCarrier
}

func firstCarrier(s string, carriers []string) (string, bool) {
	for _, c := range carriers {
		if strings.Contains(s, c) {
			return c, true
		}
	}
	return "", false
}
