package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/labelgest/internal/api"
	"github.com/dgallion1/labelgest/internal/config"
	"github.com/dgallion1/labelgest/internal/ledger"
	"github.com/dgallion1/labelgest/internal/pipeline"
)

func main() {
	dotenvErr := config.LoadDotEnv(".env")
	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if dotenvErr != nil {
		log.Warn("ignoring .env", "error", dotenvErr)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the ledger client; nil interfaces disable submission.
	var (
		lc        *ledger.Client
		submitter pipeline.OrderSubmitter
		orders    api.OrderLister
	)
	if cfg.LedgerEnabled() {
		lc = ledger.NewClient(cfg.LedgerURL, cfg.LedgerAPIKey)
		submitter, orders = lc, lc
	} else {
		log.Warn("LEDGER_URL not set, order submission disabled")
	}

	// Initialize pipeline.
	stats := pipeline.NewExtractionStats(time.Hour)
	proc := pipeline.NewProcessor(pipeline.NewProcessorConfig(cfg), stats, log)
	orch := pipeline.NewOrchestrator(cfg, proc, submitter, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, orders, log, cfg)
	go srv.RunMaintenance(ctx, 10*time.Minute)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		cancel()

		if lc != nil {
			lc.Close()
		}
	}()

	log.Info("starting labelgest",
		"port", cfg.Port,
		"workers", cfg.WorkerCount,
		"ledger", cfg.LedgerEnabled(),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
