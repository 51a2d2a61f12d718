package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEvent is the canonical form of an inbound price-change
// notification after field extraction. The extractor owns the mapping
// from raw webhook/queue payloads to this shape.
type PriceEvent struct {
	ID       string `json:"id"`
	SellerID string `json:"sellerId"`
	ASIN     string `json:"asin"`
	SKU      string `json:"sku"`
	Market   string `json:"market"`

	// Observed competitive landscape. A nil competitor price means no
	// competing offer was observed.
	CompetitorPrice *decimal.Decimal `json:"competitorPrice,omitempty"`
	OfferCount      int              `json:"offerCount"`
	IsBuyBoxWinner  bool             `json:"isBuyBoxWinner"`

	// Per-tier competitor observations for B2B listings, keyed by
	// quantity break.
	TierPrices map[int]decimal.Decimal `json:"tierPrices,omitempty"`

	ObservedAt time.Time `json:"observedAt"`
}

// ResetRule configures a per-seller, per-market time-of-day window during
// which repricing is globally suppressed. Hours are 0-23 in the market's
// local time; windows may wrap midnight.
type ResetRule struct {
	SellerID   string    `json:"sellerId"`
	Market     string    `json:"market"`
	Enabled    bool      `json:"enabled"`
	ResetHour  int       `json:"resetHour"`
	ResumeHour int       `json:"resumeHour"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}
