// Package velocity caps how often a single SKU may change price.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// Guard is a per-SKU churn limiter. Marketplace notifications can flap
// when two repricers chase each other; the guard bounds how many
// repricing attempts a SKU may make inside a rolling window.
type Guard struct {
	cache domain.Cache

	// Limit is the maximum attempts per SKU per window.
	Limit int64

	// Window is the rolling counting window.
	Window time.Duration
}

// NewGuard creates a churn guard. A limit of zero disables the guard;
// callers should not install it in that case.
func NewGuard(cache domain.Cache, limit int64, window time.Duration) *Guard {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Guard{
		cache:  cache,
		Limit:  limit,
		Window: window,
	}
}

// Allow counts one repricing attempt for the SKU and reports whether it
// is still within the churn limit. Counting happens at decision time,
// so rejected attempts also consume budget; that is intentional, a
// flapping SKU should stay quiet for the whole window.
func (g *Guard) Allow(ctx context.Context, sellerID, sku string) (bool, error) {
	if sellerID == "" || sku == "" {
		return false, fmt.Errorf("sellerID and sku are required")
	}

	n, err := g.cache.IncrementCounter(ctx, sellerID, "churn:"+sku, g.Window)
	if err != nil {
		return false, fmt.Errorf("failed to count repricing attempts: %w", err)
	}

	return n <= g.Limit, nil
}
