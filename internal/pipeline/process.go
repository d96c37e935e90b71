package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/labelgest/internal/chunker"
	"github.com/dgallion1/labelgest/internal/config"
	"github.com/dgallion1/labelgest/internal/doctext"
	"github.com/dgallion1/labelgest/internal/extract"
	"github.com/dgallion1/labelgest/internal/parser"
	"golang.org/x/sync/errgroup"
)

// ProcessorConfig controls one document run.
type ProcessorConfig struct {
	Parser      parser.Options
	Reconstruct doctext.Options
	Extract     extract.Config
	Concurrency int // chunks extracted in parallel
}

// NewProcessorConfig derives processor settings from the service config.
func NewProcessorConfig(cfg config.Config) ProcessorConfig {
	ex := extract.DefaultConfig()
	ex.Segment.MinChunk = cfg.MinChunkChars
	return ProcessorConfig{
		Parser:      parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		Reconstruct: doctext.Options{LineTolerance: cfg.LineTolerance},
		Extract:     ex,
		Concurrency: cfg.ExtractConcurrency,
	}
}

// Hooks observe progress. Either may be nil; ChunkDone is called from
// several goroutines.
type Hooks struct {
	Parsed    func(pages, chunks int)
	ChunkDone func()
}

// Outcome is everything one document run produced.
type Outcome struct {
	Filename string                   `json:"fileName"`
	Pages    int                      `json:"numPages"`
	GSTIN    string                   `json:"gstin,omitempty"`
	Chunks   int                      `json:"chunks"`
	Skipped  []extract.Skip           `json:"skipped"`
	Labels   []extract.ValidatedLabel `json:"labels"`
	Duration time.Duration            `json:"-"`
}

// Valid returns the labels that passed validation.
func (o *Outcome) Valid() []extract.ValidatedLabel {
	var out []extract.ValidatedLabel
	for _, l := range o.Labels {
		if l.Validation.IsValid {
			out = append(out, l)
		}
	}
	return out
}

// Invalid returns the labels that failed validation.
func (o *Outcome) Invalid() []extract.ValidatedLabel {
	var out []extract.ValidatedLabel
	for _, l := range o.Labels {
		if !l.Validation.IsValid {
			out = append(out, l)
		}
	}
	return out
}

// Processor runs parse, reconstruction, segmentation, extraction and
// validation for a single document.
type Processor struct {
	cfg       ProcessorConfig
	extractor *extract.Extractor
	stats     *ExtractionStats
	log       *slog.Logger
}

func NewProcessor(cfg ProcessorConfig, stats *ExtractionStats, log *slog.Logger) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Processor{
		cfg:       cfg,
		extractor: extract.NewExtractor(cfg.Extract, log),
		stats:     stats,
		log:       log,
	}
}

// Stats returns the latency tracker, or nil.
func (p *Processor) Stats() *ExtractionStats {
	return p.stats
}

// Process extracts validated labels from the document in r. Whole-document
// failures wrap parser.ErrUnreadable or parser.ErrEmptyDocument.
func (p *Processor) Process(ctx context.Context, r io.Reader, filename string, hooks Hooks) (*Outcome, error) {
	start := time.Now()
	out, err := p.process(ctx, r, filename, hooks)
	if p.stats != nil {
		if err != nil {
			p.stats.RecordFailure()
		} else {
			p.stats.Record(out.Duration.Milliseconds(), len(out.Labels))
		}
	}
	if err != nil {
		return nil, err
	}
	p.log.Info("document extracted",
		"filename", filename,
		"pages", out.Pages,
		"chunks", out.Chunks,
		"labels", len(out.Labels),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (p *Processor) process(ctx context.Context, r io.Reader, filename string, hooks Hooks) (*Outcome, error) {
	start := time.Now()

	prs, err := parser.ForFile(filename, p.cfg.Parser)
	if err != nil {
		return nil, err
	}
	pages, err := prs.Parse(ctx, r, filename)
	if err != nil {
		return nil, err
	}

	doc := doctext.Reconstruct(pages, p.cfg.Reconstruct)
	segCfg := p.extractor.Config().Segment
	chunks := chunker.Segment(doc.Text, segCfg)
	if hooks.Parsed != nil {
		hooks.Parsed(doc.Pages, len(chunks))
	}

	// Chunks are independent; results land at their own index so assembly
	// still sees document order.
	carriers := p.extractor.Config().Carriers
	results := make([]extract.ChunkResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = extract.ExtractChunk(c, carriers)
			if hooks.ChunkDone != nil {
				hooks.ChunkDone()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract chunks: %w", err)
	}

	res := p.extractor.Collect(chunker.Count(doc.Text, segCfg), results)
	gstin, _ := extract.FindGSTIN(doc.Text)

	return &Outcome{
		Filename: filename,
		Pages:    doc.Pages,
		GSTIN:    gstin,
		Chunks:   res.Chunks,
		Skipped:  res.Skipped,
		Labels:   extract.ValidateAll(res.Labels),
		Duration: time.Since(start),
	}, nil
}
