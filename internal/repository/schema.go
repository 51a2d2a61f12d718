package repository

// Schema definitions for the Shrike database.
// Compatible with both SQLite and PostgreSQL. Prices are stored as TEXT
// so decimals round-trip exactly.

const schemaListings = `
CREATE TABLE IF NOT EXISTS listings (
    seller_id TEXT NOT NULL,
    sku TEXT NOT NULL,
    asin TEXT NOT NULL,
    market TEXT NOT NULL,
    listed_price TEXT NOT NULL,
    min_price TEXT,
    max_price TEXT,
    default_price TEXT,
    strategy_id TEXT,
    is_b2b INTEGER NOT NULL DEFAULT 0,
    tiers TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (seller_id, sku)
);

CREATE INDEX IF NOT EXISTS idx_listings_asin ON listings(seller_id, asin);
CREATE INDEX IF NOT EXISTS idx_listings_strategy ON listings(seller_id, strategy_id);
`

const schemaStrategies = `
CREATE TABLE IF NOT EXISTS strategies (
    id TEXT NOT NULL,
    seller_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    compete_with TEXT NOT NULL,
    beat_by TEXT NOT NULL,
    min_price_rule TEXT NOT NULL,
    max_price_rule TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, seller_id)
);

CREATE INDEX IF NOT EXISTS idx_strategies_seller ON strategies(seller_id);
CREATE INDEX IF NOT EXISTS idx_strategies_enabled ON strategies(seller_id, enabled);
`

const schemaPriceDecisions = `
CREATE TABLE IF NOT EXISTS price_decisions (
    id TEXT PRIMARY KEY,
    seller_id TEXT NOT NULL,
    asin TEXT NOT NULL,
    sku TEXT NOT NULL,
    kind TEXT NOT NULL,
    old_price TEXT NOT NULL,
    new_price TEXT,
    strategy_id TEXT,
    reason TEXT,
    tier_outcomes TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_seller ON price_decisions(seller_id);
CREATE INDEX IF NOT EXISTS idx_decisions_sku ON price_decisions(seller_id, sku);
CREATE INDEX IF NOT EXISTS idx_decisions_kind ON price_decisions(seller_id, kind);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON price_decisions(seller_id, timestamp);
`

const schemaResetRules = `
CREATE TABLE IF NOT EXISTS reset_rules (
    seller_id TEXT NOT NULL,
    market TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    reset_hour INTEGER NOT NULL,
    resume_hour INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (seller_id, market)
);
`

const schemaFilters = `
CREATE TABLE IF NOT EXISTS filters (
    id TEXT NOT NULL,
    seller_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, seller_id)
);

CREATE INDEX IF NOT EXISTS idx_filters_seller ON filters(seller_id);
CREATE INDEX IF NOT EXISTS idx_filters_enabled ON filters(seller_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaListings,
		schemaStrategies,
		schemaPriceDecisions,
		schemaResetRules,
		schemaFilters,
	}
}
