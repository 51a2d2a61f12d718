package orchestrator

import (
	"sync/atomic"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// Stats holds the orchestrator's process-wide counters. Many concurrent
// decisions report completion simultaneously, so every field is updated
// atomically; the counters are the only persistent state the
// orchestrator owns.
type Stats struct {
	messagesProcessed    atomic.Int64
	successfulRepricings atomic.Int64
	failedRepricings     atomic.Int64
	skipped              atomic.Int64
	violations           atomic.Int64
	pricesUpdated        atomic.Int64
	totalDurationMs      atomic.Int64
}

// record classifies one outcome into the counters.
func (s *Stats) record(outcome *domain.Outcome) {
	s.messagesProcessed.Add(1)
	s.totalDurationMs.Add(outcome.DurationMs)

	switch outcome.Kind {
	case domain.KindRepriced:
		s.successfulRepricings.Add(1)
		if outcome.PriceChanged {
			s.pricesUpdated.Add(1)
		}
	case domain.KindSkipped:
		s.skipped.Add(1)
	case domain.KindViolation:
		s.violations.Add(1)
		s.failedRepricings.Add(1)
	default:
		s.failedRepricings.Add(1)
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	MessagesProcessed    int64   `json:"messagesProcessed"`
	SuccessfulRepricings int64   `json:"successfulRepricings"`
	FailedRepricings     int64   `json:"failedRepricings"`
	Skipped              int64   `json:"skipped"`
	Violations           int64   `json:"violations"`
	PricesUpdated        int64   `json:"pricesUpdated"`
	TotalDurationMs      int64   `json:"totalDurationMs"`
	AvgDurationMs        float64 `json:"avgDurationMs"`
}

// Snapshot returns a consistent-enough copy of the counters for the
// stats surface.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		MessagesProcessed:    s.messagesProcessed.Load(),
		SuccessfulRepricings: s.successfulRepricings.Load(),
		FailedRepricings:     s.failedRepricings.Load(),
		Skipped:              s.skipped.Load(),
		Violations:           s.violations.Load(),
		PricesUpdated:        s.pricesUpdated.Load(),
		TotalDurationMs:      s.totalDurationMs.Load(),
	}
	if snap.MessagesProcessed > 0 {
		snap.AvgDurationMs = float64(snap.TotalDurationMs) / float64(snap.MessagesProcessed)
	}
	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.messagesProcessed.Store(0)
	s.successfulRepricings.Store(0)
	s.failedRepricings.Store(0)
	s.skipped.Store(0)
	s.violations.Store(0)
	s.pricesUpdated.Store(0)
	s.totalDurationMs.Store(0)
}
