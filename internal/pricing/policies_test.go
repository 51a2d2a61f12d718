package pricing

import (
	"errors"
	"testing"

	"github.com/opensource-commerce/shrike/internal/domain"
)

func competitiveOffer(listed, competitor string) *domain.Offer {
	offer := testOffer()
	offer.ListedPrice = dec(listed)
	offer.CompetitorPrice = decp(competitor)
	offer.OfferCount = 3
	offer.Strategy = testStrategy(domain.RuleJumpToMin, domain.RuleJumpToMax)
	return offer
}

func TestSelectPolicy(t *testing.T) {
	t.Run("NoCompetitorPicksOnlySeller", func(t *testing.T) {
		offer := testOffer()
		offer.Strategy = testStrategy(domain.RuleJumpToMin, domain.RuleJumpToMax)

		if _, ok := SelectPolicy(offer).(OnlySeller); !ok {
			t.Errorf("expected OnlySeller, got %s", SelectPolicy(offer).Name())
		}
	})

	t.Run("SingleOfferPicksOnlySeller", func(t *testing.T) {
		offer := competitiveOffer("50.00", "48.00")
		offer.OfferCount = 1

		if _, ok := SelectPolicy(offer).(OnlySeller); !ok {
			t.Errorf("expected OnlySeller, got %s", SelectPolicy(offer).Name())
		}
	})

	t.Run("BuyBoxWinnerPicksMaximiseProfit", func(t *testing.T) {
		offer := competitiveOffer("50.00", "55.00")
		offer.IsBuyBoxWinner = true

		if _, ok := SelectPolicy(offer).(MaximiseProfit); !ok {
			t.Errorf("expected MaximiseProfit, got %s", SelectPolicy(offer).Name())
		}
	})

	t.Run("ContestedOfferPicksChaseBuyBox", func(t *testing.T) {
		offer := competitiveOffer("50.00", "48.00")

		if _, ok := SelectPolicy(offer).(ChaseBuyBox); !ok {
			t.Errorf("expected ChaseBuyBox, got %s", SelectPolicy(offer).Name())
		}
	})
}

func TestChaseBuyBox(t *testing.T) {
	t.Run("BeatsCompetitor", func(t *testing.T) {
		// competitor 100, beat_by +0.01, listed 105, bounds [90, 110]
		offer := competitiveOffer("105.00", "100.00")
		offer.MinPrice = decp("90.00")
		offer.MaxPrice = decp("110.00")
		offer.Strategy.BeatBy = dec("0.01")

		if err := (ChaseBuyBox{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if offer.UpdatedPrice == nil || !offer.UpdatedPrice.Equal(dec("100.01")) {
			t.Errorf("expected 100.01, got %v", offer.UpdatedPrice)
		}
	})

	t.Run("AlreadyWinning", func(t *testing.T) {
		offer := competitiveOffer("99.99", "100.00")
		offer.MinPrice = decp("90.00")
		offer.MaxPrice = decp("110.00")
		offer.Strategy.BeatBy = dec("0.01")

		err := (ChaseBuyBox{}).Apply(offer)
		var skip *domain.SkipError
		if !errors.As(err, &skip) {
			t.Fatalf("expected SkipError, got %v", err)
		}
		if skip.Reason != "Already winning with better price" {
			t.Errorf("unexpected reason %q", skip.Reason)
		}
		if offer.UpdatedPrice != nil {
			t.Error("expected no updated price on skip")
		}
	})

	t.Run("GuardHoldsForNegativeBeatBy", func(t *testing.T) {
		offer := competitiveOffer("99.98", "100.00")
		offer.Strategy.BeatBy = dec("-0.01")

		// candidate 99.99, current 99.98 is already better
		err := (ChaseBuyBox{}).Apply(offer)
		var skip *domain.SkipError
		if !errors.As(err, &skip) {
			t.Fatalf("expected SkipError, got %v", err)
		}
	})

	t.Run("UndercutFromAbove", func(t *testing.T) {
		offer := competitiveOffer("52.00", "50.00")
		offer.Strategy.BeatBy = dec("-0.01")

		if err := (ChaseBuyBox{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if offer.UpdatedPrice == nil || !offer.UpdatedPrice.Equal(dec("49.99")) {
			t.Errorf("expected 49.99, got %v", offer.UpdatedPrice)
		}
	})

	t.Run("NoCompetitorSkips", func(t *testing.T) {
		offer := testOffer()
		offer.Strategy = testStrategy(domain.RuleJumpToMin, domain.RuleJumpToMax)

		err := (ChaseBuyBox{}).Apply(offer)
		var skip *domain.SkipError
		if !errors.As(err, &skip) {
			t.Fatalf("expected SkipError, got %v", err)
		}
	})

	t.Run("CandidateBelowMinJumpsToMin", func(t *testing.T) {
		offer := competitiveOffer("50.00", "30.00")
		offer.Strategy.BeatBy = dec("-0.01")

		// candidate 29.99 below min 40.00, min rule JUMP_TO_MIN
		if err := (ChaseBuyBox{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if offer.UpdatedPrice == nil || !offer.UpdatedPrice.Equal(dec("40.00")) {
			t.Errorf("expected 40.00, got %v", offer.UpdatedPrice)
		}
	})

	t.Run("DoNothingRuleSkips", func(t *testing.T) {
		offer := competitiveOffer("50.00", "30.00")
		offer.Strategy.MinPriceRule = domain.RuleDoNothing

		err := (ChaseBuyBox{}).Apply(offer)
		var skip *domain.SkipError
		if !errors.As(err, &skip) {
			t.Fatalf("expected SkipError, got %v", err)
		}
	})
}

func TestMaximiseProfit(t *testing.T) {
	t.Run("RaisesTowardCompetitor", func(t *testing.T) {
		offer := competitiveOffer("50.00", "58.00")

		if err := (MaximiseProfit{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if offer.UpdatedPrice == nil || !offer.UpdatedPrice.Equal(dec("58.00")) {
			t.Errorf("expected 58.00, got %v", offer.UpdatedPrice)
		}
	})

	t.Run("CompetitorAtOrBelowSkips", func(t *testing.T) {
		// competitor 25, listed 30
		offer := competitiveOffer("30.00", "25.00")
		offer.MinPrice = nil
		offer.MaxPrice = nil

		err := (MaximiseProfit{}).Apply(offer)
		var skip *domain.SkipError
		if !errors.As(err, &skip) {
			t.Fatalf("expected SkipError, got %v", err)
		}
		if skip.Reason != "Competitor price is at or below our price" {
			t.Errorf("unexpected reason %q", skip.Reason)
		}
	})

	t.Run("AboveMaxEscalatesAsViolation", func(t *testing.T) {
		// being above max is escalated, not resolved: the operator
		// should learn when the ceiling binds
		offer := competitiveOffer("50.00", "75.00")

		err := (MaximiseProfit{}).Apply(offer)
		var violation *domain.BoundsViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("expected BoundsViolationError, got %v", err)
		}
		if !violation.CalculatedPrice.Equal(dec("75.00")) {
			t.Errorf("expected calculated 75.00, got %s", violation.CalculatedPrice)
		}
	})
}

func TestOnlySeller(t *testing.T) {
	t.Run("AnchorsToDefaultPrice", func(t *testing.T) {
		offer := testOffer()
		offer.DefaultPrice = decp("52.00")
		offer.Strategy = testStrategy(domain.RuleJumpToMin, domain.RuleJumpToMax)

		if err := (OnlySeller{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if offer.UpdatedPrice == nil || !offer.UpdatedPrice.Equal(dec("52.00")) {
			t.Errorf("expected 52.00, got %v", offer.UpdatedPrice)
		}
	})

	t.Run("FallsBackToBoundsMidpoint", func(t *testing.T) {
		offer := testOffer()
		offer.Strategy = testStrategy(domain.RuleJumpToMin, domain.RuleJumpToMax)

		if err := (OnlySeller{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if offer.UpdatedPrice == nil || !offer.UpdatedPrice.Equal(dec("50.00")) {
			t.Errorf("expected midpoint 50.00, got %v", offer.UpdatedPrice)
		}
	})

	t.Run("NoAnchorSkips", func(t *testing.T) {
		offer := testOffer()
		offer.MinPrice = nil
		offer.MaxPrice = nil
		offer.Strategy = testStrategy(domain.RuleJumpToMin, domain.RuleJumpToMax)

		err := (OnlySeller{}).Apply(offer)
		var skip *domain.SkipError
		if !errors.As(err, &skip) {
			t.Fatalf("expected SkipError, got %v", err)
		}
	})

	t.Run("InvertedBoundsViolate", func(t *testing.T) {
		// min 45, max 40: midpoint 42.5 is outside both bounds
		offer := testOffer()
		offer.MinPrice = decp("45.00")
		offer.MaxPrice = decp("40.00")
		offer.Strategy = testStrategy(domain.RuleJumpToMin, domain.RuleJumpToMax)

		err := (OnlySeller{}).Apply(offer)
		var violation *domain.BoundsViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("expected BoundsViolationError, got %v", err)
		}
		if !violation.CalculatedPrice.Equal(dec("42.50")) {
			t.Errorf("expected calculated 42.50, got %s", violation.CalculatedPrice)
		}
	})
}

func TestTierFanOut(t *testing.T) {
	b2bOffer := func() *domain.Offer {
		offer := competitiveOffer("105.00", "100.00")
		offer.Strategy.BeatBy = dec("0.01")
		offer.MinPrice = decp("90.00")
		offer.MaxPrice = decp("110.00")
		offer.IsB2B = true
		offer.Tiers = map[string]*domain.TierOffer{
			"5": {
				Quantity:        5,
				ListedPrice:     dec("100.00"),
				CompetitorPrice: decp("95.00"),
				MinPrice:        decp("85.00"),
				MaxPrice:        decp("105.00"),
			},
			"10": {
				Quantity:        10,
				ListedPrice:     dec("95.00"),
				CompetitorPrice: decp("90.00"),
				MinPrice:        decp("92.00"),
				MaxPrice:        decp("91.00"), // inverted: this tier must fail alone
			},
			"20": {
				Quantity:    20,
				ListedPrice: dec("90.00"),
				// no competitor price: left unpriced, not an error
			},
		}
		return offer
	}

	t.Run("TiersPricedIndependently", func(t *testing.T) {
		offer := b2bOffer()

		if err := (ChaseBuyBox{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		if offer.UpdatedPrice == nil || !offer.UpdatedPrice.Equal(dec("100.01")) {
			t.Errorf("parent: expected 100.01, got %v", offer.UpdatedPrice)
		}

		five := offer.Tiers["5"]
		if five.UpdatedPrice == nil || !five.UpdatedPrice.Equal(dec("95.01")) {
			t.Errorf("tier 5: expected 95.01, got %v", five.UpdatedPrice)
		}
	})

	t.Run("TierFailureIsolated", func(t *testing.T) {
		offer := b2bOffer()

		if err := (ChaseBuyBox{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		ten := offer.Tiers["10"]
		if ten.UpdatedPrice != nil {
			t.Errorf("tier 10: expected no price after violation, got %v", ten.UpdatedPrice)
		}
		if ten.Message == "" {
			t.Error("tier 10: expected diagnostic message")
		}

		// siblings and parent unaffected
		if offer.UpdatedPrice == nil {
			t.Error("parent outcome must survive tier failure")
		}
		if offer.Tiers["5"].UpdatedPrice == nil {
			t.Error("sibling tier outcome must survive tier failure")
		}
	})

	t.Run("TierWithoutCompetitorLeftUnpriced", func(t *testing.T) {
		offer := b2bOffer()

		if err := (ChaseBuyBox{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		twenty := offer.Tiers["20"]
		if twenty.UpdatedPrice != nil {
			t.Errorf("tier 20: expected unpriced, got %v", twenty.UpdatedPrice)
		}
		if twenty.Message == "" {
			t.Error("tier 20: expected diagnostic message")
		}
	})

	t.Run("ParentFailureStillProcessesTiers", func(t *testing.T) {
		offer := b2bOffer()
		offer.CompetitorPrice = nil // parent skips

		err := (ChaseBuyBox{}).Apply(offer)
		var skip *domain.SkipError
		if !errors.As(err, &skip) {
			t.Fatalf("expected SkipError, got %v", err)
		}

		if offer.Tiers["5"].UpdatedPrice == nil {
			t.Error("tiers must be priced independently of parent outcome")
		}
	})

	t.Run("NonB2BSkipsFanOut", func(t *testing.T) {
		offer := competitiveOffer("105.00", "100.00")
		offer.Strategy.BeatBy = dec("0.01")
		offer.MaxPrice = decp("110.00")
		offer.Tiers = map[string]*domain.TierOffer{
			"5": {Quantity: 5, ListedPrice: dec("100.00"), CompetitorPrice: decp("95.00")},
		}
		// is_b2b false: tiers untouched

		if err := (ChaseBuyBox{}).Apply(offer); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if offer.Tiers["5"].UpdatedPrice != nil || offer.Tiers["5"].Message != "" {
			t.Error("expected tiers untouched for non-B2B offer")
		}
	})
}
