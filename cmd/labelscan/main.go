// Command labelscan extracts shipping labels from a local document and prints
// them as JSON.
//
//	labelscan [flags] labels.pdf
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dgallion1/labelgest/internal/config"
	"github.com/dgallion1/labelgest/internal/export"
	"github.com/dgallion1/labelgest/internal/extract"
	"github.com/dgallion1/labelgest/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(stderr, "labelscan:", err)
	}
	cfg := config.Load()

	fs := flag.NewFlagSet("labelscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tolerance := fs.Float64("tolerance", cfg.LineTolerance, "y distance treated as one text line")
	minChunk := fs.Int("min-chunk", cfg.MinChunkChars, "drop shipment chunks shorter than this many characters")
	concurrency := fs.Int("concurrency", cfg.ExtractConcurrency, "chunks extracted in parallel")
	pdftotext := fs.Bool("pdftotext", cfg.PDFFallbackPdftotext, "fall back to pdftotext -layout for unreadable PDFs")
	sortBy := fs.String("sort", "label", "label order: label or partner")
	xlsxPath := fs.String("xlsx", "", "also write the labels to this XLSX file")
	validOnly := fs.Bool("valid", false, "print only labels that pass validation")
	verbose := fs.Bool("v", false, "log extraction diagnostics to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: labelscan [flags] FILE")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || (*sortBy != "label" && *sortBy != "partner") {
		fs.Usage()
		return 2
	}
	path := fs.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg.LineTolerance = *tolerance
	cfg.MinChunkChars = *minChunk
	cfg.ExtractConcurrency = *concurrency
	cfg.PDFFallbackPdftotext = *pdftotext

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(stderr, "labelscan:", err)
		return 1
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	proc := pipeline.NewProcessor(pipeline.NewProcessorConfig(cfg), nil, log)
	out, err := proc.Process(ctx, f, path, pipeline.Hooks{})
	if err != nil {
		fmt.Fprintln(stderr, "labelscan:", err)
		return 1
	}

	labels := out.Labels
	if *validOnly {
		labels = out.Valid()
	}
	if *sortBy == "partner" {
		labels = extract.SortByPartner(labels)
	}
	if labels == nil {
		labels = []extract.ValidatedLabel{}
	}

	if *xlsxPath != "" {
		data, err := export.LabelsXLSX(labels, log)
		if err != nil {
			fmt.Fprintln(stderr, "labelscan:", err)
			return 1
		}
		if err := os.WriteFile(*xlsxPath, data, 0o644); err != nil {
			fmt.Fprintln(stderr, "labelscan:", err)
			return 1
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report{
		File:     path,
		Pages:    out.Pages,
		GSTIN:    out.GSTIN,
		Chunks:   out.Chunks,
		Skipped:  out.Skipped,
		Labels:   labels,
		Duration: out.Duration.Round(time.Millisecond).String(),
	}); err != nil {
		fmt.Fprintln(stderr, "labelscan:", err)
		return 1
	}
	return 0
}

type report struct {
	File     string                   `json:"file"`
	Pages    int                      `json:"pages"`
	GSTIN    string                   `json:"gstin,omitempty"`
	Chunks   int                      `json:"chunks"`
	Skipped  []extract.Skip           `json:"skipped,omitempty"`
	Labels   []extract.ValidatedLabel `json:"labels"`
	Duration string                   `json:"duration"`
}
