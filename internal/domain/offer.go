// Package domain defines the core types and interfaces for Shrike.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Offer is the product listing record driving a single repricing decision.
// It is built fresh per inbound event from a stored listing snapshot plus
// the newly observed competitive signal, mutated by exactly one strategy
// policy, persisted, and discarded.
type Offer struct {
	// Identity
	ASIN     string `json:"asin"`
	SKU      string `json:"sku"`
	SellerID string `json:"sellerId"`
	Market   string `json:"market"`

	// Current listing state
	ListedPrice  decimal.Decimal  `json:"listedPrice"`
	MinPrice     *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice     *decimal.Decimal `json:"maxPrice,omitempty"`
	DefaultPrice *decimal.Decimal `json:"defaultPrice,omitempty"`

	// Live competitive signal
	CompetitorPrice *decimal.Decimal `json:"competitorPrice,omitempty"`
	OfferCount      int              `json:"offerCount"`
	IsBuyBoxWinner  bool             `json:"isBuyBoxWinner"`

	// Strategy reference, resolved once per decision
	StrategyID string    `json:"strategyId"`
	Strategy   *Strategy `json:"strategy,omitempty"`

	// B2B quantity breaks, keyed by tier (e.g. "5", "10")
	IsB2B bool                  `json:"isB2b"`
	Tiers map[string]*TierOffer `json:"tiers,omitempty"`

	// Decision output
	UpdatedPrice *decimal.Decimal `json:"updatedPrice,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// TierOffer is an independently priced B2B quantity-break sub-record.
// It carries its own bounds and competitive signal; its failure never
// aborts the parent offer or sibling tiers.
type TierOffer struct {
	Quantity        int              `json:"quantity"`
	CompetitorPrice *decimal.Decimal `json:"competitorPrice,omitempty"`
	ListedPrice     decimal.Decimal  `json:"listedPrice"`
	MinPrice        *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice        *decimal.Decimal `json:"maxPrice,omitempty"`
	DefaultPrice    *decimal.Decimal `json:"defaultPrice,omitempty"`
	UpdatedPrice    *decimal.Decimal `json:"updatedPrice,omitempty"`
	Message         string           `json:"message,omitempty"`
}

// PriceTarget is anything a strategy policy can price: the parent Offer
// or a single TierOffer. Tiers supply their own bounds and competitor
// data where the policy reads them.
type PriceTarget interface {
	Bounds() (min, max *decimal.Decimal)
	Competitor() *decimal.Decimal
	Default() *decimal.Decimal
	Current() decimal.Decimal
	SetResult(price *decimal.Decimal, message string)
}

// Bounds returns the offer-level min/max price constraints.
func (o *Offer) Bounds() (*decimal.Decimal, *decimal.Decimal) {
	return o.MinPrice, o.MaxPrice
}

// Competitor returns the observed competitor price, nil when unknown.
func (o *Offer) Competitor() *decimal.Decimal { return o.CompetitorPrice }

// Default returns the configured fallback price, nil when unset.
func (o *Offer) Default() *decimal.Decimal { return o.DefaultPrice }

// Current returns the currently listed price.
func (o *Offer) Current() decimal.Decimal { return o.ListedPrice }

// SetResult records the decision outcome on the offer.
func (o *Offer) SetResult(price *decimal.Decimal, message string) {
	o.UpdatedPrice = price
	o.Message = message
}

// Bounds returns the tier-local min/max price constraints.
func (t *TierOffer) Bounds() (*decimal.Decimal, *decimal.Decimal) {
	return t.MinPrice, t.MaxPrice
}

// Competitor returns the tier-local competitor price, nil when unknown.
func (t *TierOffer) Competitor() *decimal.Decimal { return t.CompetitorPrice }

// Default returns the tier-local fallback price, nil when unset.
func (t *TierOffer) Default() *decimal.Decimal { return t.DefaultPrice }

// Current returns the tier's currently listed price.
func (t *TierOffer) Current() decimal.Decimal { return t.ListedPrice }

// SetResult records the decision outcome on the tier.
func (t *TierOffer) SetResult(price *decimal.Decimal, message string) {
	t.UpdatedPrice = price
	t.Message = message
}

// ValidateBounds rejects offers whose configured bounds can never be
// satisfied. Absent bounds mean "no constraint" and always pass.
func (o *Offer) ValidateBounds() error {
	if o.MinPrice != nil && o.MaxPrice != nil && o.MinPrice.GreaterThan(*o.MaxPrice) {
		return fmt.Errorf("%w: min_price %s exceeds max_price %s for sku %s",
			ErrInvalidBounds, o.MinPrice, o.MaxPrice, o.SKU)
	}
	return nil
}

// Listing is the persisted snapshot of a seller's product listing.
// An Offer is assembled from a Listing plus the inbound event's
// competitive signal.
type Listing struct {
	SellerID     string           `json:"sellerId"`
	SKU          string           `json:"sku"`
	ASIN         string           `json:"asin"`
	Market       string           `json:"market"`
	ListedPrice  decimal.Decimal  `json:"listedPrice"`
	MinPrice     *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice     *decimal.Decimal `json:"maxPrice,omitempty"`
	DefaultPrice *decimal.Decimal `json:"defaultPrice,omitempty"`
	StrategyID   string           `json:"strategyId"`
	IsB2B        bool             `json:"isB2b"`
	Tiers        []ListingTier    `json:"tiers,omitempty"`
}

// ListingTier is a persisted B2B quantity-break definition.
type ListingTier struct {
	Quantity     int              `json:"quantity"`
	ListedPrice  decimal.Decimal  `json:"listedPrice"`
	MinPrice     *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice     *decimal.Decimal `json:"maxPrice,omitempty"`
	DefaultPrice *decimal.Decimal `json:"defaultPrice,omitempty"`
}
