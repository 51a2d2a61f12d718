package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/shrike/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	sellerID := "seller-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, sellerID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, sellerID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, sellerID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, sellerID, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, sellerID, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, sellerID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, sellerID, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, sellerID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, sellerID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, sellerID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, sellerID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, sellerID, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, sellerID, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, sellerID, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, sellerID, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, sellerID, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("SellerIsolation", func(t *testing.T) {
		seller1 := "seller-001"
		seller2 := "seller-002"

		_ = cache.Set(ctx, seller1, "shared-key", []byte("seller1-value"), time.Minute)
		_ = cache.Set(ctx, seller2, "shared-key", []byte("seller2-value"), time.Minute)

		val1, _ := cache.Get(ctx, seller1, "shared-key")
		val2, _ := cache.Get(ctx, seller2, "shared-key")

		if string(val1) != "seller1-value" {
			t.Errorf("expected 'seller1-value', got '%s'", string(val1))
		}
		if string(val2) != "seller2-value" {
			t.Errorf("expected 'seller2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresSellerID", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if err == nil {
			t.Error("expected error for empty sellerID")
		}

		_, err = cache.Get(ctx, "", "key")
		if err == nil {
			t.Error("expected error for empty sellerID")
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := 100 * time.Millisecond

		count1, err := cache.IncrementCounter(ctx, sellerID, "events", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		count2, _ := cache.IncrementCounter(ctx, sellerID, "events", window)
		if count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		// Wait for window to expire
		time.Sleep(150 * time.Millisecond)

		count3, _ := cache.IncrementCounter(ctx, sellerID, "events", window)
		if count3 != 1 {
			t.Errorf("expected count 1 after window reset, got %d", count3)
		}
	})

	t.Run("ListingCache", func(t *testing.T) {
		min := decimal.RequireFromString("40.00")
		max := decimal.RequireFromString("60.00")
		listing := &domain.Listing{
			SellerID:    sellerID,
			SKU:         "SKU-001",
			ASIN:        "B00TEST001",
			Market:      "US",
			ListedPrice: decimal.RequireFromString("50.00"),
			MinPrice:    &min,
			MaxPrice:    &max,
			StrategyID:  "strat-001",
		}

		err := cache.SetListing(ctx, sellerID, "SKU-001", listing, time.Minute)
		if err != nil {
			t.Fatalf("SetListing failed: %v", err)
		}

		retrieved, err := cache.GetListing(ctx, sellerID, "SKU-001")
		if err != nil {
			t.Fatalf("GetListing failed: %v", err)
		}

		if retrieved.SKU != listing.SKU {
			t.Errorf("expected SKU %s, got %s", listing.SKU, retrieved.SKU)
		}
		if !retrieved.ListedPrice.Equal(listing.ListedPrice) {
			t.Errorf("expected listed price %s, got %s", listing.ListedPrice, retrieved.ListedPrice)
		}
		if retrieved.MinPrice == nil || !retrieved.MinPrice.Equal(min) {
			t.Errorf("expected min price %s, got %v", min, retrieved.MinPrice)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, sellerID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, sellerID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, sellerID, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, sellerID, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
