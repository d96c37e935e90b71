package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/dgallion1/labelgest/internal/config"
	"github.com/dgallion1/labelgest/internal/ledger"
	"github.com/dgallion1/labelgest/internal/pipeline"
)

// OrderLister reads back orders recorded on the ledger.
type OrderLister interface {
	ListOrders(ctx context.Context, gstin string) ([]ledger.StoredOrder, error)
}

// Server is the HTTP API server for labelgest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	ledger       OrderLister
	limiter      *RateLimiter
	parseSem     *semaphore.Weighted
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. orders may be nil when
// no ledger is configured.
func NewServer(orch *pipeline.Orchestrator, orders OrderLister, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		ledger:       orders,
		limiter:      NewRateLimiter(cfg.RateLimitEvery, cfg.RateLimitBurst),
		parseSem:     semaphore.NewWeighted(max(cfg.MaxConcurrentParse, 1)),
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RunMaintenance periodically forgets per-client rate limiters until ctx is
// done.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Reset()
		}
	}
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.LabelgestAPIKey, s.log))
		r.Use(s.limiter.Middleware(s.log))

		r.Post("/api/labels/parse", s.handleParse)
		r.Post("/api/labels/jobs", s.handleCreateJob)
		r.Get("/api/labels/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/labels/jobs/{jobID}/labels", s.handleJobLabels)
		r.Get("/api/stats/extraction", s.handleExtractionStats)

		r.Get("/api/ledger/orders", s.handleListOrders)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
