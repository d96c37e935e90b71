package extract

import (
	"log/slog"

	"github.com/dgallion1/labelgest/internal/chunker"
)

// ChunkResult is what one shipment chunk yielded.
type ChunkResult struct {
	Chunk     chunker.Chunk
	Fields    Fields
	Partner   string
	Candidate *Label // nil when the chunk produced nothing
	Err       error  // why Candidate is nil
}

// ExtractChunk runs table, field and carrier extraction on a single chunk.
// It depends on nothing but its arguments, so chunks may be processed in
// any order or in parallel.
func ExtractChunk(c chunker.Chunk, carriers []string) ChunkResult {
	res := ChunkResult{Chunk: c, Partner: DetectCarrier(c.Text, carriers)}

	row, err := FindProductRow(c.Text)
	if err != nil {
		res.Err = err
		return res
	}

	res.Fields = ParseFields(row)
	if res.Fields.SKU == "" || res.Fields.OrderNo == "" {
		res.Err = ErrIncomplete
		return res
	}

	res.Candidate = &Label{
		SKU:             res.Fields.SKU,
		OrderID:         res.Fields.OrderNo,
		Quantity:        res.Fields.Quantity,
		DeliveryPartner: res.Partner,
	}
	return res
}

// Assemble numbers the candidates of results, which must be in document
// order. Numbering starts at 1 and counts emitted labels only.
func Assemble(results []ChunkResult) []Label {
	labels := make([]Label, 0, len(results))
	for _, r := range results {
		if r.Candidate == nil {
			continue
		}
		l := *r.Candidate
		l.LabelNumber = len(labels) + 1
		labels = append(labels, l)
	}
	return labels
}

// Config controls extraction.
type Config struct {
	Segment  chunker.Config
	Carriers []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Segment:  chunker.DefaultConfig(),
		Carriers: DefaultCarriers,
	}
}

// Skip records a chunk that yielded no label.
type Skip struct {
	ChunkIndex int    `json:"chunk_index"`
	Reason     string `json:"reason"`
}

// Result is the outcome of extracting a whole document.
type Result struct {
	Labels  []Label `json:"labels"`
	Chunks  int     `json:"chunks"`
	Skipped []Skip  `json:"skipped"`
}

// Extractor is the sequential label extraction pipeline.
type Extractor struct {
	cfg Config
	log *slog.Logger
}

func NewExtractor(cfg Config, log *slog.Logger) *Extractor {
	if cfg.Carriers == nil {
		cfg.Carriers = DefaultCarriers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{cfg: cfg, log: log}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract segments text into shipments and returns the labels found.
func (e *Extractor) Extract(text string) Result {
	chunks := chunker.Segment(text, e.cfg.Segment)
	results := make([]ChunkResult, len(chunks))
	for i, c := range chunks {
		results[i] = ExtractChunk(c, e.cfg.Carriers)
	}
	return e.Collect(chunker.Count(text, e.cfg.Segment), results)
}

// Collect assembles per-chunk results, in document order, into a Result
// and logs why chunks were skipped.
func (e *Extractor) Collect(total int, results []ChunkResult) Result {
	res := Result{Chunks: total, Skipped: []Skip{}}
	for _, r := range results {
		if r.Err != nil {
			e.log.Debug("chunk skipped", "chunk", r.Chunk.Index, "reason", r.Err.Error())
			res.Skipped = append(res.Skipped, Skip{ChunkIndex: r.Chunk.Index, Reason: r.Err.Error()})
			continue
		}
		e.log.Debug("label extracted",
			"chunk", r.Chunk.Index,
			"sku", r.Fields.SKU,
			"order_id", r.Fields.OrderNo,
			"quantity", r.Fields.Quantity,
			"partner", r.Partner,
		)
	}
	res.Labels = Assemble(results)
	return res
}
