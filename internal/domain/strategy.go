package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CompeteWith selects which competitor price the strategy tracks.
type CompeteWith string

const (
	CompeteLowestPrice    CompeteWith = "LOWEST_PRICE"
	CompeteLowestFBAPrice CompeteWith = "LOWEST_FBA_PRICE"
	CompeteMatchBuyBox    CompeteWith = "MATCH_BUYBOX"
	CompeteFBALowest      CompeteWith = "FBA_LOWEST"
)

// PriceRule names a tie-break behavior applied when a candidate price
// falls outside [min_price, max_price].
type PriceRule string

const (
	RuleJumpToMin       PriceRule = "JUMP_TO_MIN"
	RuleJumpToMax       PriceRule = "JUMP_TO_MAX"
	RuleJumpToAvg       PriceRule = "JUMP_TO_AVG"
	RuleMatchCompetitor PriceRule = "MATCH_COMPETITOR"
	RuleDefaultPrice    PriceRule = "DEFAULT_PRICE"
	RuleDoNothing       PriceRule = "DO_NOTHING"
)

// Strategy is a seller-configured pricing policy. It is fetched once per
// decision and treated as immutable for the decision's duration.
type Strategy struct {
	ID          string `json:"id"`
	SellerID    string `json:"sellerId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// CompeteWith picks the competitor price to track.
	CompeteWith CompeteWith `json:"competeWith"`

	// BeatBy is a signed offset added to the chosen competitor price.
	// Negative undercuts, positive adds margin.
	BeatBy decimal.Decimal `json:"beatBy"`

	// Out-of-bounds resolution rules.
	MinPriceRule PriceRule `json:"minPriceRule"`
	MaxPriceRule PriceRule `json:"maxPriceRule"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

var validRules = map[PriceRule]bool{
	RuleJumpToMin:       true,
	RuleJumpToMax:       true,
	RuleJumpToAvg:       true,
	RuleMatchCompetitor: true,
	RuleDefaultPrice:    true,
	RuleDoNothing:       true,
}

var validCompeteWith = map[CompeteWith]bool{
	CompeteLowestPrice:    true,
	CompeteLowestFBAPrice: true,
	CompeteMatchBuyBox:    true,
	CompeteFBALowest:      true,
}

// Validate checks that the strategy references known rule and
// competitor-selection names.
func (s *Strategy) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: strategy id is required", ErrInvalidInput)
	}
	if !validCompeteWith[s.CompeteWith] {
		return fmt.Errorf("%w: unknown compete_with %q", ErrInvalidInput, s.CompeteWith)
	}
	if !validRules[s.MinPriceRule] {
		return fmt.Errorf("%w: unknown min_price_rule %q", ErrInvalidInput, s.MinPriceRule)
	}
	if !validRules[s.MaxPriceRule] {
		return fmt.Errorf("%w: unknown max_price_rule %q", ErrInvalidInput, s.MaxPriceRule)
	}
	return nil
}

// RuleFor returns the resolution rule configured for the violated bound.
func (s *Strategy) RuleFor(bound BoundKind) PriceRule {
	if bound == BoundMin {
		return s.MinPriceRule
	}
	return s.MaxPriceRule
}

// BoundKind identifies which side of the price corridor was violated.
type BoundKind string

const (
	BoundMin BoundKind = "min"
	BoundMax BoundKind = "max"
)

// Filter is a seller-configured eligibility filter: a CEL expression over
// offer fields that must evaluate to true for the offer to be repriced.
// Filters gate the decision process; they never compute prices.
type Filter struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"sellerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Expression  string    `json:"expression"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}
