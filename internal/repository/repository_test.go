package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/shrike/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "shrike-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	sellerID := "seller-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetListing", func(t *testing.T) {
		listing := &domain.Listing{
			SellerID:     sellerID,
			SKU:          "SKU-001",
			ASIN:         "B00TEST001",
			Market:       "US",
			ListedPrice:  dec("50.00"),
			MinPrice:     decp("40.00"),
			MaxPrice:     decp("60.00"),
			DefaultPrice: decp("55.00"),
			StrategyID:   "strat-001",
		}

		if err := repo.SaveListing(ctx, sellerID, listing); err != nil {
			t.Fatalf("SaveListing failed: %v", err)
		}

		got, err := repo.GetListing(ctx, sellerID, "SKU-001")
		if err != nil {
			t.Fatalf("GetListing failed: %v", err)
		}

		if got.ASIN != "B00TEST001" || got.Market != "US" {
			t.Errorf("identity mismatch: %+v", got)
		}
		if !got.ListedPrice.Equal(dec("50.00")) {
			t.Errorf("listed price = %s, want 50.00", got.ListedPrice)
		}
		if got.MinPrice == nil || !got.MinPrice.Equal(dec("40.00")) {
			t.Errorf("min price = %v, want 40.00", got.MinPrice)
		}
		if got.DefaultPrice == nil || !got.DefaultPrice.Equal(dec("55.00")) {
			t.Errorf("default price = %v, want 55.00", got.DefaultPrice)
		}
	})

	t.Run("UpsertListing", func(t *testing.T) {
		listing := &domain.Listing{
			SellerID:    sellerID,
			SKU:         "SKU-001",
			ASIN:        "B00TEST001",
			Market:      "US",
			ListedPrice: dec("48.75"),
		}

		if err := repo.SaveListing(ctx, sellerID, listing); err != nil {
			t.Fatalf("SaveListing failed: %v", err)
		}

		got, err := repo.GetListing(ctx, sellerID, "SKU-001")
		if err != nil {
			t.Fatalf("GetListing failed: %v", err)
		}
		if !got.ListedPrice.Equal(dec("48.75")) {
			t.Errorf("listed price = %s, want 48.75 after upsert", got.ListedPrice)
		}
		if got.MinPrice != nil {
			t.Errorf("min price = %v, want nil after upsert", got.MinPrice)
		}
	})

	t.Run("B2BListingRoundTrip", func(t *testing.T) {
		listing := &domain.Listing{
			SellerID:    sellerID,
			SKU:         "SKU-B2B",
			ASIN:        "B00TEST002",
			Market:      "US",
			ListedPrice: dec("100.00"),
			IsB2B:       true,
			Tiers: []domain.ListingTier{
				{Quantity: 5, ListedPrice: dec("95.00"), MinPrice: decp("80.00")},
				{Quantity: 10, ListedPrice: dec("90.00")},
			},
		}

		if err := repo.SaveListing(ctx, sellerID, listing); err != nil {
			t.Fatalf("SaveListing failed: %v", err)
		}

		got, err := repo.GetListing(ctx, sellerID, "SKU-B2B")
		if err != nil {
			t.Fatalf("GetListing failed: %v", err)
		}
		if !got.IsB2B || len(got.Tiers) != 2 {
			t.Fatalf("expected B2B listing with 2 tiers, got %+v", got)
		}
		if got.Tiers[0].Quantity != 5 || !got.Tiers[0].ListedPrice.Equal(dec("95.00")) {
			t.Errorf("tier 0 = %+v", got.Tiers[0])
		}
		if got.Tiers[0].MinPrice == nil || !got.Tiers[0].MinPrice.Equal(dec("80.00")) {
			t.Errorf("tier 0 min price = %v, want 80.00", got.Tiers[0].MinPrice)
		}
	})

	t.Run("ListingNotFound", func(t *testing.T) {
		_, err := repo.GetListing(ctx, sellerID, "SKU-404")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SellerIsolation", func(t *testing.T) {
		_, err := repo.GetListing(ctx, "seller-002", "SKU-001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for other seller, got %v", err)
		}
	})

	t.Run("RequiresSellerID", func(t *testing.T) {
		_, err := repo.GetListing(ctx, "", "SKU-001")
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("SaveAndGetStrategy", func(t *testing.T) {
		strategy := &domain.Strategy{
			ID:           "strat-001",
			SellerID:     sellerID,
			Name:         "undercut",
			Description:  "beat lowest price by a cent",
			CompeteWith:  domain.CompeteLowestPrice,
			BeatBy:       dec("-0.01"),
			MinPriceRule: domain.RuleJumpToMin,
			MaxPriceRule: domain.RuleJumpToMax,
			Enabled:      true,
		}

		if err := repo.SaveStrategy(ctx, sellerID, strategy); err != nil {
			t.Fatalf("SaveStrategy failed: %v", err)
		}

		got, err := repo.GetStrategy(ctx, sellerID, "strat-001")
		if err != nil {
			t.Fatalf("GetStrategy failed: %v", err)
		}
		if got.Name != "undercut" || got.CompeteWith != domain.CompeteLowestPrice {
			t.Errorf("strategy mismatch: %+v", got)
		}
		if !got.BeatBy.Equal(dec("-0.01")) {
			t.Errorf("beat_by = %s, want -0.01", got.BeatBy)
		}
		if got.MinPriceRule != domain.RuleJumpToMin {
			t.Errorf("min_price_rule = %s", got.MinPriceRule)
		}
	})

	t.Run("RejectsInvalidStrategy", func(t *testing.T) {
		bad := &domain.Strategy{
			ID:           "strat-bad",
			CompeteWith:  "RANDOM_WALK",
			MinPriceRule: domain.RuleJumpToMin,
			MaxPriceRule: domain.RuleJumpToMax,
		}
		if err := repo.SaveStrategy(ctx, sellerID, bad); err == nil {
			t.Error("expected validation error for unknown compete_with")
		}
	})

	t.Run("ListStrategies", func(t *testing.T) {
		second := &domain.Strategy{
			ID:           "strat-002",
			SellerID:     sellerID,
			Name:         "margin",
			CompeteWith:  domain.CompeteMatchBuyBox,
			BeatBy:       dec("0.50"),
			MinPriceRule: domain.RuleDoNothing,
			MaxPriceRule: domain.RuleJumpToMax,
			Enabled:      true,
		}
		if err := repo.SaveStrategy(ctx, sellerID, second); err != nil {
			t.Fatalf("SaveStrategy failed: %v", err)
		}

		disabled := &domain.Strategy{
			ID:           "strat-003",
			SellerID:     sellerID,
			Name:         "off",
			CompeteWith:  domain.CompeteLowestPrice,
			BeatBy:       dec("0"),
			MinPriceRule: domain.RuleDoNothing,
			MaxPriceRule: domain.RuleDoNothing,
			Enabled:      false,
		}
		if err := repo.SaveStrategy(ctx, sellerID, disabled); err != nil {
			t.Fatalf("SaveStrategy failed: %v", err)
		}

		strategies, err := repo.ListStrategies(ctx, sellerID)
		if err != nil {
			t.Fatalf("ListStrategies failed: %v", err)
		}
		if len(strategies) != 2 {
			t.Errorf("expected 2 enabled strategies, got %d", len(strategies))
		}
	})

	t.Run("SaveAndGetDecision", func(t *testing.T) {
		decision := &domain.Decision{
			ID:         "dec-001",
			SellerID:   sellerID,
			ASIN:       "B00TEST001",
			SKU:        "SKU-001",
			Kind:       domain.KindRepriced,
			OldPrice:   dec("50.00"),
			NewPrice:   decp("49.49"),
			StrategyID: "strat-001",
			Reason:     "chasing buy box",
			TierOutcomes: []domain.TierOutcome{
				{Quantity: 5, NewPrice: decp("47.25"), Message: ""},
			},
			DurationMs: 3,
			Timestamp:  time.Now().UTC(),
		}

		if err := repo.SaveDecision(ctx, sellerID, decision); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		got, err := repo.GetDecision(ctx, sellerID, "dec-001")
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}
		if got.Kind != domain.KindRepriced {
			t.Errorf("kind = %s", got.Kind)
		}
		if got.NewPrice == nil || !got.NewPrice.Equal(dec("49.49")) {
			t.Errorf("new price = %v, want 49.49", got.NewPrice)
		}
		if len(got.TierOutcomes) != 1 || got.TierOutcomes[0].Quantity != 5 {
			t.Errorf("tier outcomes = %+v", got.TierOutcomes)
		}
	})

	t.Run("ListDecisionsBySKU", func(t *testing.T) {
		older := &domain.Decision{
			ID:        "dec-002",
			SellerID:  sellerID,
			ASIN:      "B00TEST001",
			SKU:       "SKU-001",
			Kind:      domain.KindSkipped,
			OldPrice:  dec("50.00"),
			Reason:    "no competitor price available",
			Timestamp: time.Now().UTC().Add(-48 * time.Hour),
		}
		if err := repo.SaveDecision(ctx, sellerID, older); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		recent, err := repo.ListDecisionsBySKU(ctx, sellerID, "SKU-001", time.Now().UTC().Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("ListDecisionsBySKU failed: %v", err)
		}
		if len(recent) != 1 {
			t.Errorf("expected 1 recent decision, got %d", len(recent))
		}

		all, err := repo.ListDecisionsBySKU(ctx, sellerID, "SKU-001", time.Time{})
		if err != nil {
			t.Fatalf("ListDecisionsBySKU failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 decisions total, got %d", len(all))
		}
	})

	t.Run("SaveAndGetResetRule", func(t *testing.T) {
		rule := &domain.ResetRule{
			SellerID:   sellerID,
			Market:     "US",
			Enabled:    true,
			ResetHour:  23,
			ResumeHour: 3,
		}

		if err := repo.SaveResetRule(ctx, sellerID, rule); err != nil {
			t.Fatalf("SaveResetRule failed: %v", err)
		}

		got, err := repo.GetResetRule(ctx, sellerID, "US")
		if err != nil {
			t.Fatalf("GetResetRule failed: %v", err)
		}
		if !got.Enabled || got.ResetHour != 23 || got.ResumeHour != 3 {
			t.Errorf("reset rule mismatch: %+v", got)
		}
	})

	t.Run("ResetRuleHourRange", func(t *testing.T) {
		bad := &domain.ResetRule{SellerID: sellerID, Market: "US", ResetHour: 25, ResumeHour: 2}
		if err := repo.SaveResetRule(ctx, sellerID, bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for hour 25, got %v", err)
		}
	})

	t.Run("ResetRuleNotFound", func(t *testing.T) {
		_, err := repo.GetResetRule(ctx, sellerID, "JP")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FilterLifecycle", func(t *testing.T) {
		filter := &domain.Filter{
			ID:         "flt-001",
			SellerID:   sellerID,
			Name:       "skip-low-margin",
			Expression: `listed_price >= 10.0`,
			Enabled:    true,
		}

		if err := repo.SaveFilter(ctx, sellerID, filter); err != nil {
			t.Fatalf("SaveFilter failed: %v", err)
		}

		got, err := repo.GetFilter(ctx, sellerID, "flt-001")
		if err != nil {
			t.Fatalf("GetFilter failed: %v", err)
		}
		if got.Expression != filter.Expression {
			t.Errorf("expression = %q", got.Expression)
		}

		filters, err := repo.ListFilters(ctx, sellerID)
		if err != nil {
			t.Fatalf("ListFilters failed: %v", err)
		}
		if len(filters) != 1 {
			t.Errorf("expected 1 filter, got %d", len(filters))
		}

		if err := repo.DeleteFilter(ctx, sellerID, "flt-001"); err != nil {
			t.Fatalf("DeleteFilter failed: %v", err)
		}

		filters, err = repo.ListFilters(ctx, sellerID)
		if err != nil {
			t.Fatalf("ListFilters failed: %v", err)
		}
		if len(filters) != 0 {
			t.Errorf("expected no enabled filters after delete, got %d", len(filters))
		}

		// The soft-delete only touches enabled rows, so a repeat
		// delete reports the filter as gone.
		if err := repo.DeleteFilter(ctx, sellerID, "flt-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on repeat delete, got %v", err)
		}

		if err := repo.DeleteFilter(ctx, sellerID, "flt-404"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing filter, got %v", err)
		}
	})
}

func TestRebind(t *testing.T) {
	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = ? AND b = ?" {
		t.Errorf("sqlite rebind should be a no-op, got %q", got)
	}

	postgres := &SQLRepository{driver: "postgres"}
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got := postgres.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}
