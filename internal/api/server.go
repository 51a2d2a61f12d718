package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/orchestrator"
	"github.com/opensource-commerce/shrike/internal/pricing"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, orch *orchestrator.Orchestrator, filters *pricing.FilterEngine, version string) *Server {
	handler := NewHandler(repo, cache, bus, orch, filters, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no seller required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (seller required)
	router.Route("/", func(r chi.Router) {
		r.Use(SellerMiddleware)

		// Price event processing
		r.Post("/events", handler.ProcessEvent)
		r.Post("/events/batch", handler.ProcessBatch)

		// Decision audit trail
		r.Get("/decisions/{id}", handler.GetDecision)

		// Listing snapshots
		r.Get("/listings/{sku}", handler.GetListing)
		r.Put("/listings/{sku}", handler.PutListing)
		r.Get("/listings/{sku}/decisions", handler.ListDecisionsBySKU)

		// Strategy management
		r.Get("/strategies", handler.ListStrategies)
		r.Get("/strategies/{id}", handler.GetStrategy)
		r.Post("/strategies", handler.CreateStrategy)
		r.Put("/strategies/{id}", handler.UpdateStrategy)

		// Reset windows
		r.Get("/reset-rules/{market}", handler.GetResetRule)
		r.Put("/reset-rules/{market}", handler.PutResetRule)

		// Eligibility filters
		r.Get("/filters", handler.ListFilters)
		r.Get("/filters/{id}", handler.GetFilter)
		r.Post("/filters", handler.CreateFilter)
		r.Delete("/filters/{id}", handler.DeleteFilter)
		r.Post("/filters/reload", handler.ReloadFilters)

		// Pipeline counters
		r.Get("/stats", handler.GetStats)
		r.Post("/stats/reset", handler.ResetStats)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
