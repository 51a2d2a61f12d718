// Package pricing implements the repricing decision engine: candidate
// price computation, out-of-bounds resolution, bounds validation, and
// the strategy policies that tie them together.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// two-decimal, half-up currency rounding. decimal.Round rounds half away
// from zero, which is half-up for the non-negative prices handled here.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Resolve maps an out-of-bounds candidate price to a final price using
// the strategy rule configured for the violated bound. A rule that cannot
// produce a price returns a SkipError.
func Resolve(strategy *domain.Strategy, target domain.PriceTarget, bound domain.BoundKind) (decimal.Decimal, error) {
	min, max := target.Bounds()

	switch rule := strategy.RuleFor(bound); rule {
	case domain.RuleJumpToMin:
		if min == nil {
			return decimal.Zero, domain.Skip("rule %s: min price is not set", rule)
		}
		return round2(*min), nil

	case domain.RuleJumpToMax:
		if max == nil {
			return decimal.Zero, domain.Skip("rule %s: max price is not set", rule)
		}
		return round2(*max), nil

	case domain.RuleJumpToAvg:
		// max is checked first so the skip reason names the first
		// missing bound in max, min order.
		if max == nil {
			return decimal.Zero, domain.Skip("rule %s: max price is not set", rule)
		}
		if min == nil {
			return decimal.Zero, domain.Skip("rule %s: min price is not set", rule)
		}
		avg := min.Add(*max).Div(decimal.NewFromInt(2))
		return round2(avg), nil

	case domain.RuleMatchCompetitor:
		comp := target.Competitor()
		if comp == nil {
			return decimal.Zero, domain.Skip("rule %s: competitor price is not available", rule)
		}
		return round2(*comp), nil

	case domain.RuleDefaultPrice:
		def := target.Default()
		if def == nil || !def.IsPositive() {
			return decimal.Zero, domain.Skip("rule %s: default price is not set", rule)
		}
		if min != nil && max != nil && (def.LessThan(*min) || def.GreaterThan(*max)) {
			return decimal.Zero, domain.Skip("rule %s: default price %s is outside bounds", rule, def)
		}
		return round2(*def), nil

	case domain.RuleDoNothing:
		return decimal.Zero, domain.Skip("rule %s: product intentionally left unpriced", rule)

	default:
		return decimal.Zero, domain.Skip("unknown price rule %q", rule)
	}
}

// ProcessPrice is the rule engine entry point. A nil or non-positive raw
// price is an immediate skip. A raw price above max resolves via the
// max rule, below min via the min rule; anything in range passes through
// rounded. An absent bound disables that branch entirely.
//
// ProcessPrice is idempotent: feeding its own output back in returns the
// same price.
func ProcessPrice(raw *decimal.Decimal, strategy *domain.Strategy, target domain.PriceTarget) (decimal.Decimal, error) {
	if raw == nil || !raw.IsPositive() {
		return decimal.Zero, domain.Skip("no positive candidate price to process")
	}

	min, max := target.Bounds()

	if max != nil && raw.GreaterThan(*max) {
		return Resolve(strategy, target, domain.BoundMax)
	}
	if min != nil && raw.LessThan(*min) {
		return Resolve(strategy, target, domain.BoundMin)
	}
	return round2(*raw), nil
}
