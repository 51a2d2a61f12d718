package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/extract"
	"github.com/opensource-commerce/shrike/internal/orchestrator"
	"github.com/opensource-commerce/shrike/internal/pricing"
	"github.com/opensource-commerce/shrike/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	orch    *orchestrator.Orchestrator
	filters *pricing.FilterEngine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, orch *orchestrator.Orchestrator, filters *pricing.FilterEngine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		orch:    orch,
		filters: filters,
		version: version,
	}
}

// ProcessEvent handles POST /events. The body is a raw price-change
// notification in wire format. With ?async=true the event is published
// to the bus for the consumer instead of being processed inline.
func (h *Handler) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return
	}

	event, err := extract.ParseEvent(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if event.SellerID == "" {
		event.SellerID = sellerID
	}
	if event.SellerID != sellerID {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "event seller_id does not match X-Seller-ID",
		})
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if err := h.bus.Publish(ctx, sellerID, domain.TopicPriceChanged, body); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to enqueue event",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"eventId": event.ID,
			"status":  "accepted",
		})
		return
	}

	outcome := h.orch.ProcessOne(ctx, event)
	writeJSON(w, http.StatusOK, outcome)
}

// BatchRequest is the request body for POST /events/batch.
type BatchRequest struct {
	Events []json.RawMessage `json:"events"`
}

// BatchResponse is the response for POST /events/batch. Outcomes are
// index-aligned with the submitted events.
type BatchResponse struct {
	Outcomes []*domain.Outcome `json:"outcomes"`
	Count    int               `json:"count"`
}

// ProcessBatch handles POST /events/batch requests.
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Events) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "events must be non-empty",
		})
		return
	}

	// Malformed entries stay in the batch as nil so the outcome slice
	// keeps its index alignment; the orchestrator reports them as
	// per-event errors.
	events := make([]*domain.PriceEvent, len(req.Events))
	for i, raw := range req.Events {
		event, err := extract.ParseEvent(raw)
		if err != nil {
			continue
		}
		if event.SellerID == "" {
			event.SellerID = sellerID
		}
		if event.SellerID != sellerID {
			continue
		}
		events[i] = event
	}

	outcomes := h.orch.ProcessBatch(ctx, events)
	writeJSON(w, http.StatusOK, BatchResponse{
		Outcomes: outcomes,
		Count:    len(outcomes),
	})
}

// GetDecision handles GET /decisions/{id} requests.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	decisionID := chi.URLParam(r, "id")
	if decisionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision id is required",
		})
		return
	}

	decision, err := h.repo.GetDecision(ctx, sellerID, decisionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "decision not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve decision",
		})
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// GetListing handles GET /listings/{sku} requests.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	sku := chi.URLParam(r, "sku")
	if sku == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "sku is required",
		})
		return
	}

	listing, err := h.repo.GetListing(ctx, sellerID, sku)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "listing not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve listing",
		})
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// PutListing handles PUT /listings/{sku} requests.
func (h *Handler) PutListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	sku := chi.URLParam(r, "sku")
	if sku == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "sku is required",
		})
		return
	}

	var listing domain.Listing
	if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	listing.SellerID = sellerID
	listing.SKU = sku

	if !listing.ListedPrice.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "listedPrice must be positive",
		})
		return
	}
	if listing.MinPrice != nil && listing.MaxPrice != nil && listing.MinPrice.GreaterThan(*listing.MaxPrice) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "minPrice must not exceed maxPrice",
		})
		return
	}

	if err := h.repo.SaveListing(ctx, sellerID, &listing); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save listing",
		})
		return
	}

	// Drop any cached snapshot so the next event sees the new listing.
	if err := h.cache.Delete(ctx, sellerID, "listing:"+sku); err != nil {
		slog.Warn("failed to invalidate cached listing", "sku", sku, "error", err)
	}

	slog.Info("listing saved", "seller_id", sellerID, "sku", sku, "is_b2b", listing.IsB2B)
	writeJSON(w, http.StatusOK, listing)
}

// ListDecisionsBySKU handles GET /listings/{sku}/decisions requests.
// An optional ?since=RFC3339 narrows the window; the default is the
// last 24 hours.
func (h *Handler) ListDecisionsBySKU(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	sku := chi.URLParam(r, "sku")
	if sku == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "sku is required",
		})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	decisions, err := h.repo.ListDecisionsBySKU(ctx, sellerID, sku, since)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// CreateStrategy handles POST /strategies requests.
func (h *Handler) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	var strategy domain.Strategy
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if strategy.ID == "" {
		strategy.ID = uuid.New().String()
	}
	strategy.SellerID = sellerID

	if err := h.repo.SaveStrategy(ctx, sellerID, &strategy); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save strategy",
		})
		return
	}

	slog.Info("strategy saved", "seller_id", sellerID, "strategy_id", strategy.ID)
	writeJSON(w, http.StatusCreated, strategy)
}

// GetStrategy handles GET /strategies/{id} requests.
func (h *Handler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	strategyID := chi.URLParam(r, "id")
	if strategyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "strategy id is required",
		})
		return
	}

	strategy, err := h.repo.GetStrategy(ctx, sellerID, strategyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "strategy not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve strategy",
		})
		return
	}

	writeJSON(w, http.StatusOK, strategy)
}

// ListStrategies handles GET /strategies requests.
func (h *Handler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	strategies, err := h.repo.ListStrategies(ctx, sellerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list strategies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": strategies,
		"count":      len(strategies),
	})
}

// UpdateStrategy handles PUT /strategies/{id} requests.
func (h *Handler) UpdateStrategy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	strategyID := chi.URLParam(r, "id")
	if strategyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "strategy id is required",
		})
		return
	}

	var strategy domain.Strategy
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	strategy.ID = strategyID
	strategy.SellerID = sellerID

	if err := h.repo.SaveStrategy(ctx, sellerID, &strategy); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save strategy",
		})
		return
	}

	slog.Info("strategy updated", "seller_id", sellerID, "strategy_id", strategyID)
	writeJSON(w, http.StatusOK, strategy)
}

// GetResetRule handles GET /reset-rules/{market} requests.
func (h *Handler) GetResetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	market := chi.URLParam(r, "market")
	if market == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "market is required",
		})
		return
	}

	rule, err := h.repo.GetResetRule(ctx, sellerID, market)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "reset rule not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve reset rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// PutResetRule handles PUT /reset-rules/{market} requests.
func (h *Handler) PutResetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	market := chi.URLParam(r, "market")
	if market == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "market is required",
		})
		return
	}

	var rule domain.ResetRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	rule.SellerID = sellerID
	rule.Market = market

	if err := h.repo.SaveResetRule(ctx, sellerID, &rule); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save reset rule",
		})
		return
	}

	// The scheduler caches rules per market; drop the stale entry.
	if err := h.cache.Delete(ctx, sellerID, "reset:"+market); err != nil {
		slog.Warn("failed to invalidate cached reset rule", "market", market, "error", err)
	}

	slog.Info("reset rule saved",
		"seller_id", sellerID,
		"market", market,
		"reset_hour", rule.ResetHour,
		"resume_hour", rule.ResumeHour,
	)
	writeJSON(w, http.StatusOK, rule)
}

// CreateFilter handles POST /filters requests.
func (h *Handler) CreateFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	var filter domain.Filter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if filter.ID == "" {
		filter.ID = uuid.New().String()
	}
	filter.SellerID = sellerID

	// Compile before persisting so a broken expression never reaches
	// the database.
	if err := h.filters.ValidateFilter(&filter); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveFilter(ctx, sellerID, &filter); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save filter",
		})
		return
	}

	if filter.Enabled {
		if err := h.filters.LoadFilter(&filter); err != nil {
			slog.Warn("failed to load filter into engine", "filter_id", filter.ID, "error", err)
		}
	}

	slog.Info("filter saved", "seller_id", sellerID, "filter_id", filter.ID)
	writeJSON(w, http.StatusCreated, filter)
}

// GetFilter handles GET /filters/{id} requests.
func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	filterID := chi.URLParam(r, "id")
	if filterID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "filter id is required",
		})
		return
	}

	filter, err := h.repo.GetFilter(ctx, sellerID, filterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "filter not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve filter",
		})
		return
	}

	writeJSON(w, http.StatusOK, filter)
}

// ListFilters handles GET /filters requests.
func (h *Handler) ListFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	filters, err := h.repo.ListFilters(ctx, sellerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list filters",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filters": filters,
		"count":   len(filters),
	})
}

// DeleteFilter handles DELETE /filters/{id} requests.
func (h *Handler) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	filterID := chi.URLParam(r, "id")
	if filterID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "filter id is required",
		})
		return
	}

	if err := h.repo.DeleteFilter(ctx, sellerID, filterID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "filter not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete filter",
		})
		return
	}

	slog.Info("filter deleted", "seller_id", sellerID, "filter_id", filterID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     filterID,
	})
}

// ReloadFilters handles POST /filters/reload requests, replacing the
// engine's loaded set with the enabled filters currently persisted.
func (h *Handler) ReloadFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID := GetSellerID(ctx)

	filters, err := h.repo.ListFilters(ctx, sellerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list filters",
		})
		return
	}

	if err := h.filters.ReloadFilters(filters); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("filters reloaded", "seller_id", sellerID, "count", len(filters))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"count":  len(filters),
	})
}

// GetStats handles GET /stats requests.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Stats())
}

// ResetStats handles POST /stats/reset requests.
func (h *Handler) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.orch.ResetStats()
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "reset",
	})
}

// Health handles GET /health requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	code := http.StatusOK
	checks := map[string]string{}

	if err := h.repo.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		checks["repository"] = err.Error()
	} else {
		checks["repository"] = "ok"
	}

	if err := h.cache.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		checks["cache"] = err.Error()
	} else {
		checks["cache"] = "ok"
	}

	writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready handles GET /ready requests.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
