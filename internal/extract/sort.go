package extract

import (
	"sort"
	"strings"
)

// PartnerPriority orders labels for packing: partners earlier in the list
// come first, partners not listed come last.
var PartnerPriority = []string{"delhivery", "ecom express", "shadowfax", "unknown"}

// SortByPartner returns a copy of labels grouped by delivery partner
// priority. Label numbers are kept and break ties.
func SortByPartner(labels []ValidatedLabel) []ValidatedLabel {
	out := make([]ValidatedLabel, len(labels))
	copy(out, labels)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := partnerRank(out[i].DeliveryPartner), partnerRank(out[j].DeliveryPartner)
		if pi != pj {
			return pi < pj
		}
		return out[i].LabelNumber < out[j].LabelNumber
	})
	return out
}

func partnerRank(partner string) int {
	p := strings.ToLower(partner)
	for i, name := range PartnerPriority {
		if p == name {
			return i
		}
	}
	return len(PartnerPriority)
}
