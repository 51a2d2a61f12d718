package pricing

import (
	"github.com/opensource-commerce/shrike/internal/domain"
)

// fanOutTiers applies a policy's per-target logic independently to every
// B2B quantity tier. A tier's Skip or BoundsViolation is captured as
// tier.UpdatedPrice = nil plus a diagnostic message; it never aborts
// sibling tiers or the parent offer.
func fanOutTiers(offer *domain.Offer, apply applyFunc) {
	if !offer.IsB2B || len(offer.Tiers) == 0 {
		return
	}

	for _, tier := range offer.Tiers {
		if err := apply(offer.Strategy, tier); err != nil {
			tier.SetResult(nil, err.Error())
		}
	}
}
