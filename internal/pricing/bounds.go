package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// Validate enforces min <= price <= max against the target's own bounds.
// When either bound is absent the check is skipped entirely: undefined
// bounds mean "no constraint", not "reject".
//
// Validate runs after the rule engine has already resolved out-of-range
// candidates, so a violation here means the resolved price is itself
// invalid and is terminal for the offer or tier.
func Validate(price decimal.Decimal, target domain.PriceTarget) (decimal.Decimal, error) {
	min, max := target.Bounds()
	if min == nil || max == nil {
		return price, nil
	}

	if price.LessThan(*min) || price.GreaterThan(*max) {
		return decimal.Zero, &domain.BoundsViolationError{
			CalculatedPrice: price,
			MinPrice:        min,
			MaxPrice:        max,
		}
	}
	return price, nil
}
