// Package schedule provides the reset-window gate: a per-seller
// time-of-day interval during which repricing is suppressed entirely.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/repository"
)

// IsSuppressed reports whether repricing is suppressed at currentHour
// for a window starting at resetHour and ending at resumeHour, both
// inclusive. Equal hours mean no window. A window with resetHour >
// resumeHour wraps midnight.
func IsSuppressed(currentHour, resetHour, resumeHour int) bool {
	if resetHour == resumeHour {
		return false
	}
	if resetHour < resumeHour {
		return currentHour >= resetHour && currentHour <= resumeHour
	}
	return currentHour >= resetHour || currentHour <= resumeHour
}

// Service resolves reset rules for sellers, caching lookups so the hot
// path does not hit the database per event.
type Service struct {
	repo  domain.Repository
	cache domain.Cache

	// CacheTTL bounds staleness of cached reset rules.
	CacheTTL time.Duration

	// now is replaceable for tests.
	now func() time.Time
}

// NewService creates a reset-window service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		CacheTTL: 5 * time.Minute,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FetchResetRule returns the seller's reset rule for a market, or nil
// when none is configured.
func (s *Service) FetchResetRule(ctx context.Context, sellerID, market string) (*domain.ResetRule, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("sellerID is required")
	}

	key := "reset:" + market

	if s.cache != nil {
		data, err := s.cache.Get(ctx, sellerID, key)
		if err == nil && data != nil {
			var rule domain.ResetRule
			if err := json.Unmarshal(data, &rule); err == nil {
				return &rule, nil
			}
		}
	}

	if s.repo == nil {
		return nil, nil
	}

	rule, err := s.repo.GetResetRule(ctx, sellerID, market)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reset rule: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(rule); err == nil {
			_ = s.cache.Set(ctx, sellerID, key, data, s.CacheTTL)
		}
	}

	return rule, nil
}

// Suppressed reports whether the seller's repricing is currently inside
// a configured reset window. Absent or disabled rules never suppress.
func (s *Service) Suppressed(ctx context.Context, sellerID, market string) (bool, error) {
	rule, err := s.FetchResetRule(ctx, sellerID, market)
	if err != nil {
		return false, err
	}
	if rule == nil || !rule.Enabled {
		return false, nil
	}
	return IsSuppressed(s.now().Hour(), rule.ResetHour, rule.ResumeHour), nil
}
