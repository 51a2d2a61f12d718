// Package orchestrator wraps the repricing decision process with
// bounded concurrency, per-event fault isolation, and running
// statistics.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/extract"
	"github.com/opensource-commerce/shrike/internal/pricing"
	"github.com/opensource-commerce/shrike/internal/schedule"
	"github.com/opensource-commerce/shrike/internal/velocity"
)

// Orchestrator runs the per-event pipeline: normalize, gate, decide,
// persist, publish. Events are independent; nothing is shared across
// them except the counters.
type Orchestrator struct {
	extractor *extract.Extractor
	windows   *schedule.Service
	filters   *pricing.FilterEngine
	repo      domain.Repository
	bus       domain.EventBus
	guard     *velocity.Guard

	sem   chan struct{}
	stats Stats
}

// New creates an orchestrator. The filter engine, reset-window service,
// and bus are optional; absent collaborators disable their stage.
func New(cfg domain.OrchestratorConfig, extractor *extract.Extractor, windows *schedule.Service, filters *pricing.FilterEngine, repo domain.Repository, bus domain.EventBus) *Orchestrator {
	max := cfg.MaxConcurrency
	if max <= 0 {
		max = 50
	}
	return &Orchestrator{
		extractor: extractor,
		windows:   windows,
		filters:   filters,
		repo:      repo,
		bus:       bus,
		sem:       make(chan struct{}, max),
	}
}

// SetChurnGuard installs a per-SKU churn limiter. Without one, SKUs may
// reprice on every notification.
func (o *Orchestrator) SetChurnGuard(guard *velocity.Guard) {
	o.guard = guard
}

// ProcessOne runs the full decision pipeline for a single event. It
// never returns an error: every failure at any stage is folded into the
// returned Outcome so a bad event cannot abort a batch.
func (o *Orchestrator) ProcessOne(ctx context.Context, event *domain.PriceEvent) (outcome *domain.Outcome) {
	start := time.Now()

	outcome = &domain.Outcome{}
	if event != nil {
		outcome.EventID = event.ID
		outcome.SellerID = event.SellerID
		outcome.ASIN = event.ASIN
		outcome.SKU = event.SKU
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Kind = domain.KindError
			outcome.Error = fmt.Sprintf("panic: %v", r)
			slog.Error("panic in repricing pipeline",
				"event_id", outcome.EventID,
				"sku", outcome.SKU,
				"panic", r,
			)
		}
		outcome.DurationMs = time.Since(start).Milliseconds()
		o.stats.record(outcome)
	}()

	if event == nil {
		o.fail(outcome, "extract", fmt.Errorf("%w: event is nil", domain.ErrInvalidInput))
		return outcome
	}

	offer, err := o.extractor.Normalize(ctx, event)
	if err != nil {
		o.fail(outcome, "extract", err)
		return outcome
	}
	outcome.ASIN = offer.ASIN
	old := offer.ListedPrice
	outcome.OldPrice = &old

	if o.filters != nil {
		eligible, reason := o.filters.Check(offer)
		if !eligible {
			o.skip(outcome, reason)
			outcome.DurationMs = time.Since(start).Milliseconds()
			o.persist(ctx, offer, outcome)
			o.publish(ctx, offer, outcome)
			return outcome
		}
	}

	if o.windows != nil {
		suppressed, err := o.windows.Suppressed(ctx, offer.SellerID, offer.Market)
		if err != nil {
			o.fail(outcome, "schedule", err)
			return outcome
		}
		if suppressed {
			o.skip(outcome, "repricing suppressed by reset window")
			outcome.DurationMs = time.Since(start).Milliseconds()
			o.persist(ctx, offer, outcome)
			o.publish(ctx, offer, outcome)
			return outcome
		}
	}

	if o.guard != nil {
		ok, err := o.guard.Allow(ctx, offer.SellerID, offer.SKU)
		if err != nil {
			// The guard is advisory; a broken counter must not halt
			// repricing.
			slog.Warn("churn guard unavailable", "sku", offer.SKU, "error", err)
		} else if !ok {
			o.skip(outcome, "churn limit reached")
			outcome.DurationMs = time.Since(start).Milliseconds()
			o.persist(ctx, offer, outcome)
			o.publish(ctx, offer, outcome)
			return outcome
		}
	}

	policy := pricing.SelectPolicy(offer)
	outcome.StrategyUsed = policy.Name()

	err = policy.Apply(offer)
	o.classify(outcome, offer, err)

	outcome.DurationMs = time.Since(start).Milliseconds()
	o.persist(ctx, offer, outcome)
	o.publish(ctx, offer, outcome)

	slog.Debug("event processed",
		"event_id", event.ID,
		"sku", offer.SKU,
		"kind", outcome.Kind,
		"price_changed", outcome.PriceChanged,
	)

	return outcome
}

// ProcessBatch fans out events under the concurrency ceiling and returns
// one outcome per event, index-aligned with the input. Slow or failing
// items never block the batch beyond their own slot.
func (o *Orchestrator) ProcessBatch(ctx context.Context, events []*domain.PriceEvent) []*domain.Outcome {
	outcomes := make([]*domain.Outcome, len(events))

	var wg sync.WaitGroup
	for i, event := range events {
		wg.Add(1)
		go func(i int, event *domain.PriceEvent) {
			defer wg.Done()
			o.sem <- struct{}{}
			defer func() { <-o.sem }()
			outcomes[i] = o.ProcessOne(ctx, event)
		}(i, event)
	}
	wg.Wait()

	return outcomes
}

// Stats returns the current counter snapshot.
func (o *Orchestrator) Stats() Snapshot {
	return o.stats.Snapshot()
}

// ResetStats zeroes the counters.
func (o *Orchestrator) ResetStats() {
	o.stats.Reset()
}

// classify folds a policy result into the outcome.
func (o *Orchestrator) classify(outcome *domain.Outcome, offer *domain.Offer, err error) {
	var skipErr *domain.SkipError
	var boundsErr *domain.BoundsViolationError

	switch {
	case err == nil:
		outcome.Success = true
		outcome.Kind = domain.KindRepriced
		outcome.NewPrice = offer.UpdatedPrice
		outcome.Reason = offer.Message
		if offer.UpdatedPrice != nil && !offer.UpdatedPrice.Equal(offer.ListedPrice) {
			outcome.PriceChanged = true
		}
	case errors.As(err, &skipErr):
		outcome.Success = true
		outcome.Kind = domain.KindSkipped
		outcome.Reason = skipErr.Reason
	case errors.As(err, &boundsErr):
		outcome.Success = false
		outcome.Kind = domain.KindViolation
		outcome.Reason = boundsErr.Error()
	default:
		outcome.Success = false
		outcome.Kind = domain.KindError
		outcome.Error = err.Error()
	}
}

// skip marks the outcome as a non-fatal skip.
func (o *Orchestrator) skip(outcome *domain.Outcome, reason string) {
	outcome.Success = true
	outcome.Kind = domain.KindSkipped
	outcome.Reason = reason
}

// fail marks the outcome as a per-event error at the named stage.
func (o *Orchestrator) fail(outcome *domain.Outcome, stage string, err error) {
	outcome.Success = false
	outcome.Kind = domain.KindError
	outcome.Error = err.Error()
	slog.Error("repricing failed",
		"event_id", outcome.EventID,
		"seller_id", outcome.SellerID,
		"sku", outcome.SKU,
		"stage", stage,
		"error", err,
	)
}

// persist writes the decision audit record. A persistence failure
// downgrades the outcome to an error but stays per-event.
func (o *Orchestrator) persist(ctx context.Context, offer *domain.Offer, outcome *domain.Outcome) {
	if o.repo == nil {
		return
	}

	decision := &domain.Decision{
		ID:         uuid.New().String(),
		SellerID:   offer.SellerID,
		ASIN:       offer.ASIN,
		SKU:        offer.SKU,
		Kind:       outcome.Kind,
		OldPrice:   offer.ListedPrice,
		NewPrice:   offer.UpdatedPrice,
		StrategyID: offer.StrategyID,
		Reason:     outcome.Reason,
		DurationMs: outcome.DurationMs,
		Timestamp:  time.Now().UTC(),
	}
	if outcome.Error != "" {
		decision.Reason = outcome.Error
	}
	for key, tier := range offer.Tiers {
		qty := tier.Quantity
		if qty == 0 {
			qty, _ = strconv.Atoi(key)
		}
		decision.TierOutcomes = append(decision.TierOutcomes, domain.TierOutcome{
			Quantity: qty,
			NewPrice: tier.UpdatedPrice,
			Message:  tier.Message,
		})
	}

	if err := o.repo.SaveDecision(ctx, offer.SellerID, decision); err != nil {
		o.fail(outcome, "persist", err)
	}
}

// publish emits the decision to the bus: every decision on the decision
// topic, price changes on the repriced topic, violations on the
// violation topic. Publish failures are logged, never fatal.
func (o *Orchestrator) publish(ctx context.Context, offer *domain.Offer, outcome *domain.Outcome) {
	if o.bus == nil {
		return
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		return
	}

	if err := o.bus.Publish(ctx, offer.SellerID, domain.TopicDecision, payload); err != nil {
		slog.Error("failed to publish decision",
			"event_id", outcome.EventID,
			"error", err,
		)
	}

	if outcome.PriceChanged {
		if err := o.bus.Publish(ctx, offer.SellerID, domain.TopicRepriced, payload); err != nil {
			slog.Error("failed to publish reprice",
				"event_id", outcome.EventID,
				"error", err,
			)
		}
	}

	if outcome.Kind == domain.KindViolation {
		if err := o.bus.Publish(ctx, offer.SellerID, domain.TopicViolation, payload); err != nil {
			slog.Error("failed to publish violation",
				"event_id", outcome.EventID,
				"error", err,
			)
		}
	}
}
