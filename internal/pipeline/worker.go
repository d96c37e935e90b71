package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/labelgest/internal/extract"
	"github.com/dgallion1/labelgest/internal/ledger"
)

// OrderSubmitter records orders on the inventory/order ledger.
type OrderSubmitter interface {
	ProcessOrders(ctx context.Context, gstin string, orders []ledger.Order) (ledger.Result, error)
}

// ErrLedgerDisabled is recorded on jobs that ask for submission when no
// ledger is configured.
var ErrLedgerDisabled = errors.New("order ledger not configured")

// Worker processes a single document job.
type Worker struct {
	proc    *Processor
	ledger  OrderSubmitter
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

// NewWorker creates a worker. ledger may be nil when submission is disabled.
func NewWorker(proc *Processor, submitter OrderSubmitter, log *slog.Logger) *Worker {
	return &Worker{
		proc:    proc,
		ledger:  submitter,
		log:     log,
		backoff: Backoff,
	}
}

// Process runs extraction and, when asked, ledger submission for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	// Phase 1: Parse and extract.
	job.SetStatus(StatusParsing, "parsing")
	out, err := w.proc.Process(ctx, bytes.NewReader(job.FileData()), job.Filename, Hooks{
		Parsed: func(pages, chunks int) {
			job.SetParsed(pages, chunks)
			job.SetStatus(StatusExtracting, "extracting")
		},
		ChunkDone: job.IncrChunksProcessed,
	})
	job.ReleaseFileData()
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	job.SetLabels(out.Labels)
	if job.Snapshot().GSTIN == "" && out.GSTIN != "" {
		job.SetGSTIN(out.GSTIN)
	}
	for _, l := range out.Invalid() {
		job.AddError(fmt.Sprintf("label %d: %v", l.LabelNumber, l.Validation.Errors))
	}

	if !job.Submit {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 2: Submit valid labels to the ledger.
	job.SetStatus(StatusSubmitting, "submitting")
	orders := OrdersFromLabels(out.Labels)
	res, err := w.submit(ctx, log, job.Snapshot().GSTIN, orders)
	if err != nil {
		log.Error("submission failed", "error", err, "orders", len(orders))
		job.AddError(fmt.Sprintf("submit: %s", err))
		job.SetStatus(StatusPartial, "submitting")
		return
	}

	job.SetSubmission(res)
	for _, e := range res.Errors {
		job.AddError("ledger: " + e)
	}
	log.Info("orders submitted",
		"saved", res.Saved,
		"skipped", res.Skipped,
		"inventory_updated", res.InventoryUpdated,
		"unmapped_skus", len(res.UnmappedSKUs),
	)

	if len(res.Errors) > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) submit(ctx context.Context, log *slog.Logger, gstin string, orders []ledger.Order) (ledger.Result, error) {
	if w.ledger == nil {
		return ledger.Result{}, ErrLedgerDisabled
	}
	if gstin == "" {
		return ledger.Result{}, ledger.ErrMissingGSTIN
	}

	var res ledger.Result
	var lastErr error
	for attempt := range MaxRetries {
		res, lastErr = w.ledger.ProcessOrders(ctx, gstin, orders)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable ledger error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return ledger.Result{}, ctx.Err()
		}
	}
	return res, lastErr
}

// OrdersFromLabels converts the valid labels into ledger orders, keeping
// label order.
func OrdersFromLabels(labels []extract.ValidatedLabel) []ledger.Order {
	orders := make([]ledger.Order, 0, len(labels))
	for _, l := range labels {
		if !l.Validation.IsValid {
			continue
		}
		orders = append(orders, ledger.Order{
			OrderID:         l.OrderID,
			SKU:             l.SKU,
			Quantity:        l.Quantity,
			DeliveryPartner: l.DeliveryPartner,
		})
	}
	return orders
}
