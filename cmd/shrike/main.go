// Shrike - Marketplace repricing decisions in milliseconds.
// Copyright (c) 2025 opensource.commerce
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-commerce/shrike/internal/api"
	"github.com/opensource-commerce/shrike/internal/bus"
	"github.com/opensource-commerce/shrike/internal/cache"
	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/extract"
	"github.com/opensource-commerce/shrike/internal/orchestrator"
	"github.com/opensource-commerce/shrike/internal/pricing"
	"github.com/opensource-commerce/shrike/internal/repository"
	"github.com/opensource-commerce/shrike/internal/schedule"
	"github.com/opensource-commerce/shrike/internal/velocity"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SHRIKE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting shrike",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for cluster profile via environment
	if os.Getenv("SHRIKE_PROFILE") == "cluster" {
		cfg = domain.ClusterConfig()
		slog.Info("running in cluster profile")
	}

	slog.Info("configuration loaded",
		"profile", cfg.Profile,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Filter Engine
	filterEngine, err := pricing.NewFilterEngine()
	if err != nil {
		slog.Error("failed to initialize filter engine", "error", err)
		os.Exit(1)
	}
	defer filterEngine.Close()

	// Load filters from database (no hardcoded defaults - configure via API)
	if err := loadFiltersFromDatabase(ctx, repo, filterEngine); err != nil {
		slog.Error("failed to load filters", "error", err)
		os.Exit(1)
	}
	slog.Info("filter engine initialized", "filters_count", filterEngine.FilterCount())

	// Initialize extraction and scheduling services
	extractor := extract.NewExtractor(repo, cacheImpl)
	windows := schedule.NewService(repo, cacheImpl)

	// Initialize Orchestrator
	orch := orchestrator.New(cfg.Orchestrator, extractor, windows, filterEngine, repo, busImpl)
	if cfg.Orchestrator.ChurnLimit > 0 {
		window := time.Duration(cfg.Orchestrator.ChurnWindowSecs) * time.Second
		orch.SetChurnGuard(velocity.NewGuard(cacheImpl, int64(cfg.Orchestrator.ChurnLimit), window))
		slog.Info("churn guard enabled",
			"limit", cfg.Orchestrator.ChurnLimit,
			"window_secs", cfg.Orchestrator.ChurnWindowSecs,
		)
	}
	slog.Info("orchestrator initialized", "max_concurrency", cfg.Orchestrator.MaxConcurrency)

	// Initialize async Consumer
	var consumer *orchestrator.Consumer
	if os.Getenv("SHRIKE_CONSUMER") != "false" {
		consumer = orchestrator.NewConsumer(busImpl, orch)

		sellerIDs := []string{}
		if envSellers := os.Getenv("SHRIKE_SELLERS"); envSellers != "" {
			sellerIDs = strings.Split(envSellers, ",")
		}

		if err := consumer.Start(orchestrator.ConsumerConfig{SellerIDs: sellerIDs}); err != nil {
			slog.Error("failed to start consumer", "error", err)
		} else {
			slog.Info("consumer started", "seller_count", len(sellerIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, orch, filterEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("shrike is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop consumer first so no new decisions start mid-shutdown
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			slog.Error("failed to stop consumer", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("shrike shutdown complete")
}

// GlobalSellerID is used for filters that apply to all sellers.
const GlobalSellerID = "*"

// loadFiltersFromDatabase loads eligibility filters into the engine.
// All filters must be configured via POST /filters API - no hardcoded defaults.
func loadFiltersFromDatabase(ctx context.Context, repo domain.Repository, engine *pricing.FilterEngine) error {
	dbFilters, err := repo.ListFilters(ctx, GlobalSellerID)
	if err != nil {
		slog.Warn("failed to list filters from database", "error", err)
		return nil // Start with empty filters - they can be added via API
	}

	if len(dbFilters) > 0 {
		slog.Info("loading filters from database", "count", len(dbFilters))
		return engine.LoadFilters(dbFilters)
	}

	slog.Info("no filters in database - configure via POST /filters API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               SHRIKE                      ║")
	fmt.Println("  ║     Marketplace Repricing Engine          ║")
	fmt.Println("  ║      Every price, every event.            ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Profile:  %s\n", cfg.Profile)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /events                  - Process a price-change event")
	fmt.Println("    POST /events/batch            - Process a batch of events")
	fmt.Println("    GET  /decisions/{id}          - Get decision by ID")
	fmt.Println("    GET  /listings/{sku}          - Get listing snapshot")
	fmt.Println("    PUT  /listings/{sku}          - Upsert listing snapshot")
	fmt.Println("    GET  /strategies              - List strategies")
	fmt.Println("    POST /strategies              - Create a strategy")
	fmt.Println("    PUT  /reset-rules/{market}    - Configure a reset window")
	fmt.Println("    GET  /filters                 - List eligibility filters")
	fmt.Println("    POST /filters/reload          - Hot-reload filters from database")
	fmt.Println("    GET  /stats                   - Pipeline counters")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
