package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// Policy is one of the three interchangeable repricing algorithms.
// Apply mutates the offer's UpdatedPrice/Message in place; the error, if
// any, is the parent offer's Skip or BoundsViolation outcome. Tier
// failures are recorded on the tier and never surface here.
type Policy interface {
	Name() string
	Apply(offer *domain.Offer) error
}

// SelectPolicy picks the policy matching the offer's competitive
// situation: no competitor data means the seller stands alone, an offer
// already holding the buy box can drift upward, and everything else
// chases the buy box.
func SelectPolicy(offer *domain.Offer) Policy {
	if offer.CompetitorPrice == nil || offer.OfferCount <= 1 {
		return OnlySeller{}
	}
	if offer.IsBuyBoxWinner {
		return MaximiseProfit{}
	}
	return ChaseBuyBox{}
}

// applyFunc is a policy's per-target logic, shared between the parent
// offer and each quantity tier.
type applyFunc func(strategy *domain.Strategy, target domain.PriceTarget) error

// run applies per-target logic to the parent offer and fans out across
// tiers. The parent's error is recorded and returned; each tier's error
// is recorded on the tier and swallowed so sibling tiers and the parent
// are unaffected.
func run(offer *domain.Offer, apply applyFunc) error {
	parentErr := apply(offer.Strategy, offer)
	if parentErr != nil {
		offer.SetResult(nil, parentErr.Error())
	}

	fanOutTiers(offer, apply)

	return parentErr
}

// ChaseBuyBox beats the chosen competitor price by the strategy's signed
// offset.
type ChaseBuyBox struct{}

// Name returns the policy name recorded in decisions.
func (ChaseBuyBox) Name() string { return "chase_buybox" }

// Apply computes competitor_price + beat_by, guards against repricing
// into a worse position, and resolves/validates the candidate.
func (p ChaseBuyBox) Apply(offer *domain.Offer) error {
	return run(offer, p.applyTo)
}

func (ChaseBuyBox) applyTo(strategy *domain.Strategy, target domain.PriceTarget) error {
	comp := target.Competitor()
	if comp == nil {
		return domain.Skip("no competitor price available")
	}

	candidate := round2(comp.Add(strategy.BeatBy))

	// Self-competition guard: chasing only ever moves the price down
	// toward the candidate. A current price at or below the candidate is
	// already the better competitive position, for either sign of
	// beat_by, and repricing would be a no-op or an oscillation.
	if target.Current().LessThanOrEqual(candidate) {
		return domain.Skip("Already winning with better price")
	}

	price, err := ProcessPrice(&candidate, strategy, target)
	if err != nil {
		return err
	}

	price, err = Validate(price, target)
	if err != nil {
		return err
	}

	target.SetResult(&price, fmt.Sprintf("price updated to %s", price))
	return nil
}

// MaximiseProfit raises the price toward the competitor's when the seller
// is already winning.
type MaximiseProfit struct{}

// Name returns the policy name recorded in decisions.
func (MaximiseProfit) Name() string { return "maximise_profit" }

// Apply raises toward competitor_price, valid only while the competitor
// sits above the current price.
func (p MaximiseProfit) Apply(offer *domain.Offer) error {
	return run(offer, p.applyTo)
}

func (MaximiseProfit) applyTo(strategy *domain.Strategy, target domain.PriceTarget) error {
	comp := target.Competitor()
	if comp == nil {
		return domain.Skip("no competitor price available")
	}

	if comp.LessThanOrEqual(target.Current()) {
		return domain.Skip("Competitor price is at or below our price")
	}

	// The rule engine is deliberately not invoked: a candidate above max
	// is escalated as a bounds violation so the operator learns when the
	// ceiling is the binding constraint.
	price, err := Validate(round2(*comp), target)
	if err != nil {
		return err
	}

	target.SetResult(&price, fmt.Sprintf("price raised to %s", price))
	return nil
}

// OnlySeller resets an uncontested listing to a safe anchor price.
type OnlySeller struct{}

// Name returns the policy name recorded in decisions.
func (OnlySeller) Name() string { return "only_seller" }

// Apply anchors to the default price, falling back to the midpoint of
// the bounds when no default is configured.
func (p OnlySeller) Apply(offer *domain.Offer) error {
	return run(offer, p.applyTo)
}

func (OnlySeller) applyTo(strategy *domain.Strategy, target domain.PriceTarget) error {
	var candidate decimal.Decimal

	min, max := target.Bounds()
	switch {
	case target.Default() != nil && target.Default().IsPositive():
		candidate = *target.Default()
	case min != nil && max != nil:
		candidate = min.Add(*max).Div(decimal.NewFromInt(2))
	default:
		return domain.Skip("no default price or bounds to derive an anchor price")
	}

	price, err := Validate(round2(candidate), target)
	if err != nil {
		return err
	}

	target.SetResult(&price, fmt.Sprintf("price reset to %s", price))
	return nil
}
