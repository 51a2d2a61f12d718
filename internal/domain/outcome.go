package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across packages.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidBounds = errors.New("unsatisfiable price bounds")
)

// SkipError means no price change should happen this cycle. It is a
// non-fatal, per-offer outcome carrying a human-readable reason.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "repricing skipped: " + e.Reason
}

// Skip builds a SkipError with a formatted reason.
func Skip(format string, args ...any) *SkipError {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// BoundsViolationError means a resolved candidate price still fails the
// min <= price <= max check. It is terminal for the offer or tier, never
// retried, and carries all three values for diagnostics.
type BoundsViolationError struct {
	CalculatedPrice decimal.Decimal
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
}

func (e *BoundsViolationError) Error() string {
	min, max := "none", "none"
	if e.MinPrice != nil {
		min = e.MinPrice.String()
	}
	if e.MaxPrice != nil {
		max = e.MaxPrice.String()
	}
	return fmt.Sprintf("calculated price %s outside bounds [%s, %s]",
		e.CalculatedPrice, min, max)
}

// Outcome kinds, partitioning every processed event.
const (
	KindRepriced  = "repriced"
	KindSkipped   = "skipped"
	KindViolation = "violation"
	KindError     = "error"
)

// Outcome is the orchestrator's per-event result. A batch of N events
// always yields exactly N outcomes.
type Outcome struct {
	EventID      string           `json:"eventId"`
	SellerID     string           `json:"sellerId"`
	ASIN         string           `json:"asin,omitempty"`
	SKU          string           `json:"sku,omitempty"`
	Success      bool             `json:"success"`
	Kind         string           `json:"kind"`
	PriceChanged bool             `json:"priceChanged"`
	OldPrice     *decimal.Decimal `json:"oldPrice,omitempty"`
	NewPrice     *decimal.Decimal `json:"newPrice,omitempty"`
	StrategyUsed string           `json:"strategyUsed,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Error        string           `json:"error,omitempty"`
	DurationMs   int64            `json:"durationMs"`
}

// Decision is the persisted audit record of one repricing outcome,
// keyed by product identity.
type Decision struct {
	ID           string           `json:"id"`
	SellerID     string           `json:"sellerId"`
	ASIN         string           `json:"asin"`
	SKU          string           `json:"sku"`
	Kind         string           `json:"kind"`
	OldPrice     decimal.Decimal  `json:"oldPrice"`
	NewPrice     *decimal.Decimal `json:"newPrice,omitempty"`
	StrategyID   string           `json:"strategyId,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	TierOutcomes []TierOutcome    `json:"tierOutcomes,omitempty"`
	DurationMs   int64            `json:"durationMs"`
	Timestamp    time.Time        `json:"timestamp"`
}

// TierOutcome records one quantity tier's independent result.
type TierOutcome struct {
	Quantity int              `json:"quantity"`
	NewPrice *decimal.Decimal `json:"newPrice,omitempty"`
	Message  string           `json:"message,omitempty"`
}
