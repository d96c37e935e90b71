package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultAnchor opens every shipment block in a label PDF.
const DefaultAnchor = "Customer Address"

// Config controls segmentation.
type Config struct {
	Anchor   string // Phrase that starts a new shipment.
	MinChunk int    // Minimum chunk length in characters to emit.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Anchor:   DefaultAnchor,
		MinChunk: 100,
	}
}

// Chunk is the text of one shipment.
type Chunk struct {
	Index  int    // Position in the unfiltered split.
	Offset int    // Byte offset of Text in the document.
	Text   string
}

// Segment splits text in front of every anchor occurrence, keeping the
// anchor with the text that follows it. Chunks shorter than MinChunk are
// noise (leading boilerplate, page furniture) and are dropped.
func Segment(text string, cfg Config) []Chunk {
	if cfg.Anchor == "" {
		cfg.Anchor = DefaultAnchor
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = 100
	}

	var chunks []Chunk
	for i, b := range boundaries(text, cfg.Anchor) {
		part := text[b.start:b.end]
		if utf8.RuneCountInString(part) < cfg.MinChunk {
			continue
		}
		chunks = append(chunks, Chunk{Index: i, Offset: b.start, Text: part})
	}
	return chunks
}

// Count returns how many pieces Segment considers before noise filtering.
func Count(text string, cfg Config) int {
	if cfg.Anchor == "" {
		cfg.Anchor = DefaultAnchor
	}
	return len(boundaries(text, cfg.Anchor))
}

type span struct{ start, end int }

func boundaries(text, anchor string) []span {
	if text == "" {
		return nil
	}

	starts := []int{0}
	from := 1
	for from < len(text) {
		idx := strings.Index(text[from:], anchor)
		if idx < 0 {
			break
		}
		starts = append(starts, from+idx)
		from += idx + len(anchor)
	}

	spans := make([]span, len(starts))
	for i, s := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		spans[i] = span{start: s, end: end}
	}
	return spans
}
