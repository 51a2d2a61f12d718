package pricing

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// FilterEngine evaluates seller-configured CEL eligibility filters.
// Filters decide whether an offer may be repriced at all; they never
// compute prices. Expressions are compiled once and cached.
type FilterEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledFilter
}

type compiledFilter struct {
	Config  *domain.Filter
	Program cel.Program
}

// NewFilterEngine creates a filter engine with the offer variable set.
func NewFilterEngine() (*FilterEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("listed_price", cel.DoubleType),
		cel.Variable("competitor_price", cel.DoubleType),
		cel.Variable("has_competitor", cel.BoolType),
		cel.Variable("min_price", cel.DoubleType),
		cel.Variable("max_price", cel.DoubleType),
		cel.Variable("has_bounds", cel.BoolType),
		cel.Variable("offer_count", cel.IntType),
		cel.Variable("is_buybox_winner", cel.BoolType),
		cel.Variable("is_b2b", cel.BoolType),
		cel.Variable("sku", cel.StringType),
		cel.Variable("asin", cel.StringType),
		cel.Variable("market", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &FilterEngine{
		env:      env,
		compiled: make(map[string]*compiledFilter),
	}, nil
}

// ValidateFilter compiles a filter without loading it.
func (e *FilterEngine) ValidateFilter(cfg *domain.Filter) error {
	if cfg == nil {
		return fmt.Errorf("filter config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileFilter(cfg)
	return err
}

// LoadFilter compiles and loads a filter into the engine.
func (e *FilterEngine) LoadFilter(cfg *domain.Filter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileFilter(cfg)
	if err != nil {
		return err
	}

	e.compiled[cfg.ID] = compiled
	return nil
}

// LoadFilters compiles and loads multiple enabled filters.
func (e *FilterEngine) LoadFilters(configs []*domain.Filter) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadFilter(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadFilters replaces all loaded filters, enabling hot reload from
// the database.
func (e *FilterEngine) ReloadFilters(configs []*domain.Filter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*compiledFilter)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileFilter(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.compiled = next
	return nil
}

// GetLoadedFilters returns the currently loaded filter configurations.
func (e *FilterEngine) GetLoadedFilters() []*domain.Filter {
	e.mu.RLock()
	defer e.mu.RUnlock()

	filters := make([]*domain.Filter, 0, len(e.compiled))
	for _, c := range e.compiled {
		filters = append(filters, c.Config)
	}
	return filters
}

// FilterCount returns the number of loaded filters.
func (e *FilterEngine) FilterCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Check evaluates every loaded filter for the offer's seller. An offer is
// eligible only when all of the seller's filters return true. The
// returned reason names the first filter that rejected the offer. A
// filter that fails to evaluate rejects the offer rather than silently
// admitting it.
func (e *FilterEngine) Check(offer *domain.Offer) (eligible bool, reason string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.compiled) == 0 {
		return true, ""
	}

	activation := activationFor(offer)

	for _, f := range e.compiled {
		if f.Config.SellerID != "" && f.Config.SellerID != offer.SellerID {
			continue
		}

		out, _, err := f.Program.Eval(activation)
		if err != nil {
			return false, fmt.Sprintf("filter %q failed to evaluate: %v", f.Config.Name, err)
		}
		if out == types.False {
			return false, fmt.Sprintf("excluded by filter %q", f.Config.Name)
		}
	}

	return true, ""
}

// Close cleans up the engine.
func (e *FilterEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledFilter)
	return nil
}

func (e *FilterEngine) compileFilter(cfg *domain.Filter) (*compiledFilter, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for filter %s: %w", cfg.ID, err)
	}

	return &compiledFilter{Config: cfg, Program: program}, nil
}

func activationFor(offer *domain.Offer) map[string]any {
	listed, _ := offer.ListedPrice.Float64()

	var comp float64
	hasComp := offer.CompetitorPrice != nil
	if hasComp {
		comp, _ = offer.CompetitorPrice.Float64()
	}

	var min, max float64
	hasBounds := offer.MinPrice != nil && offer.MaxPrice != nil
	if offer.MinPrice != nil {
		min, _ = offer.MinPrice.Float64()
	}
	if offer.MaxPrice != nil {
		max, _ = offer.MaxPrice.Float64()
	}

	return map[string]any{
		"listed_price":     listed,
		"competitor_price": comp,
		"has_competitor":   hasComp,
		"min_price":        min,
		"max_price":        max,
		"has_bounds":       hasBounds,
		"offer_count":      int64(offer.OfferCount),
		"is_buybox_winner": offer.IsBuyBoxWinner,
		"is_b2b":           offer.IsB2B,
		"sku":              offer.SKU,
		"asin":             offer.ASIN,
		"market":           offer.Market,
	}
}
