package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require sellerID for strict per-seller isolation.
type Repository interface {
	// Listing snapshots
	SaveListing(ctx context.Context, sellerID string, listing *Listing) error
	GetListing(ctx context.Context, sellerID string, sku string) (*Listing, error)

	// Strategy configuration
	SaveStrategy(ctx context.Context, sellerID string, strategy *Strategy) error
	GetStrategy(ctx context.Context, sellerID string, strategyID string) (*Strategy, error)
	ListStrategies(ctx context.Context, sellerID string) ([]*Strategy, error)

	// Decision audit trail
	SaveDecision(ctx context.Context, sellerID string, decision *Decision) error
	GetDecision(ctx context.Context, sellerID string, decisionID string) (*Decision, error)
	ListDecisionsBySKU(ctx context.Context, sellerID string, sku string, since time.Time) ([]*Decision, error)

	// Reset windows
	SaveResetRule(ctx context.Context, sellerID string, rule *ResetRule) error
	GetResetRule(ctx context.Context, sellerID string, market string) (*ResetRule, error)

	// Eligibility filters
	SaveFilter(ctx context.Context, sellerID string, filter *Filter) error
	GetFilter(ctx context.Context, sellerID string, filterID string) (*Filter, error)
	ListFilters(ctx context.Context, sellerID string) ([]*Filter, error)
	DeleteFilter(ctx context.Context, sellerID string, filterID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
