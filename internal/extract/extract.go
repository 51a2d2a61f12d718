// Package extract normalizes raw marketplace price-change notifications
// into canonical events and assembles the Offer a decision runs on.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// rawNotification is the wire shape of an inbound marketplace
// notification. Prices arrive as JSON numbers or strings; decimal
// handles both.
type rawNotification struct {
	ID              string                     `json:"id"`
	SellerID        string                     `json:"seller_id"`
	ASIN            string                     `json:"asin"`
	SKU             string                     `json:"sku"`
	Market          string                     `json:"market"`
	CompetitorPrice *decimal.Decimal           `json:"competitor_price"`
	OfferCount      int                        `json:"offer_count"`
	IsBuyBoxWinner  bool                       `json:"is_buybox_winner"`
	TierPrices      map[string]decimal.Decimal `json:"tier_prices"`
	ObservedAt      *time.Time                 `json:"observed_at"`
}

// ParseEvent decodes a raw notification payload into a canonical
// PriceEvent. Missing identity fields are an ErrInvalidInput; a missing
// event ID is generated, a missing timestamp defaults to now.
func ParseEvent(data []byte) (*domain.PriceEvent, error) {
	var raw rawNotification
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed event payload: %v", domain.ErrInvalidInput, err)
	}

	if raw.SellerID == "" {
		return nil, fmt.Errorf("%w: seller_id is required", domain.ErrInvalidInput)
	}
	if raw.SKU == "" {
		return nil, fmt.Errorf("%w: sku is required", domain.ErrInvalidInput)
	}

	event := &domain.PriceEvent{
		ID:              raw.ID,
		SellerID:        raw.SellerID,
		ASIN:            raw.ASIN,
		SKU:             raw.SKU,
		Market:          raw.Market,
		CompetitorPrice: raw.CompetitorPrice,
		OfferCount:      raw.OfferCount,
		IsBuyBoxWinner:  raw.IsBuyBoxWinner,
		ObservedAt:      time.Now().UTC(),
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if raw.ObservedAt != nil {
		event.ObservedAt = raw.ObservedAt.UTC()
	}

	if len(raw.TierPrices) > 0 {
		event.TierPrices = make(map[int]decimal.Decimal, len(raw.TierPrices))
		for qty, price := range raw.TierPrices {
			n, err := strconv.Atoi(qty)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: invalid tier quantity %q", domain.ErrInvalidInput, qty)
			}
			event.TierPrices[n] = price
		}
	}

	return event, nil
}

// Extractor resolves inbound events against stored listing snapshots and
// strategy configuration, producing a fully populated Offer.
type Extractor struct {
	repo  domain.Repository
	cache domain.Cache

	// ListingTTL bounds staleness of cached listing snapshots.
	ListingTTL time.Duration
}

// NewExtractor creates an extractor backed by the given repository and
// optional cache.
func NewExtractor(repo domain.Repository, cache domain.Cache) *Extractor {
	return &Extractor{
		repo:       repo,
		cache:      cache,
		ListingTTL: 5 * time.Minute,
	}
}

// Normalize assembles the Offer for a canonical event: loads the listing
// snapshot (cache first), resolves the listing's strategy, and merges in
// the event's competitive signal. Failures are per-event and non-fatal
// to the caller's batch.
func (e *Extractor) Normalize(ctx context.Context, event *domain.PriceEvent) (*domain.Offer, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: event is nil", domain.ErrInvalidInput)
	}
	if event.SellerID == "" || event.SKU == "" {
		return nil, fmt.Errorf("%w: event missing seller_id or sku", domain.ErrInvalidInput)
	}

	listing, err := e.fetchListing(ctx, event.SellerID, event.SKU)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing %s: %w", event.SKU, err)
	}

	offer := &domain.Offer{
		ASIN:            listing.ASIN,
		SKU:             listing.SKU,
		SellerID:        listing.SellerID,
		Market:          listing.Market,
		ListedPrice:     listing.ListedPrice,
		MinPrice:        listing.MinPrice,
		MaxPrice:        listing.MaxPrice,
		DefaultPrice:    listing.DefaultPrice,
		CompetitorPrice: event.CompetitorPrice,
		OfferCount:      event.OfferCount,
		IsBuyBoxWinner:  event.IsBuyBoxWinner,
		StrategyID:      listing.StrategyID,
		IsB2B:           listing.IsB2B,
	}
	if offer.ASIN == "" {
		offer.ASIN = event.ASIN
	}
	if offer.Market == "" {
		offer.Market = event.Market
	}

	if listing.StrategyID != "" {
		strategy, err := e.repo.GetStrategy(ctx, event.SellerID, listing.StrategyID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve strategy %s: %w", listing.StrategyID, err)
		}
		if err := strategy.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %s is invalid: %w", listing.StrategyID, err)
		}
		offer.Strategy = strategy
	}

	if listing.IsB2B && len(listing.Tiers) > 0 {
		offer.Tiers = make(map[string]*domain.TierOffer, len(listing.Tiers))
		for _, lt := range listing.Tiers {
			tier := &domain.TierOffer{
				Quantity:     lt.Quantity,
				ListedPrice:  lt.ListedPrice,
				MinPrice:     lt.MinPrice,
				MaxPrice:     lt.MaxPrice,
				DefaultPrice: lt.DefaultPrice,
			}
			if p, ok := event.TierPrices[lt.Quantity]; ok {
				cp := p
				tier.CompetitorPrice = &cp
			}
			offer.Tiers[strconv.Itoa(lt.Quantity)] = tier
		}
	}

	return offer, nil
}

// fetchListing reads the listing snapshot through the cache when one is
// configured, falling back to the repository on miss.
func (e *Extractor) fetchListing(ctx context.Context, sellerID, sku string) (*domain.Listing, error) {
	if e.cache != nil {
		listing, err := e.cache.GetListing(ctx, sellerID, sku)
		if err == nil && listing != nil {
			return listing, nil
		}
	}

	listing, err := e.repo.GetListing(ctx, sellerID, sku)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		_ = e.cache.SetListing(ctx, sellerID, sku, listing, e.ListingTTL)
	}

	return listing, nil
}
