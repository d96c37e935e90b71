package doctext

import (
	"math"
	"sort"
	"strings"
)

// DefaultLineTolerance rounds y coordinates to the nearest unit.
const DefaultLineTolerance = 1.0

// Options controls line grouping.
type Options struct {
	// LineTolerance is the rounding unit applied to y before bucketing
	// fragments into lines. Raise it for renderers with coarse jitter.
	LineTolerance float64
}

// Reconstruct turns positioned fragments into line-broken text. Fragments
// sharing a rounded y form a line, ordered left to right; lines run top to
// bottom; each page ends with a blank line.
func Reconstruct(pages []Page, opts Options) Document {
	tol := opts.LineTolerance
	if tol <= 0 {
		tol = DefaultLineTolerance
	}

	ordered := make([]Page, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var sb strings.Builder
	for _, p := range ordered {
		for _, line := range pageLines(p.Fragments, tol) {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	return Document{Text: sb.String(), Pages: len(ordered)}
}

func pageLines(frags []Fragment, tol float64) []string {
	buckets := make(map[float64][]Fragment)
	var keys []float64
	for _, f := range frags {
		key := math.Round(f.Y/tol) * tol
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], f)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(keys)))

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		row := buckets[key]
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		parts := make([]string, len(row))
		for i, f := range row {
			parts[i] = f.Text
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}
