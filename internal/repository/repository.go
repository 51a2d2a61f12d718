// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/shrike/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveListing upserts a listing snapshot with seller isolation.
func (r *SQLRepository) SaveListing(ctx context.Context, sellerID string, listing *domain.Listing) error {
	if sellerID == "" {
		return fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}
	if listing.SKU == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}

	var tiers any
	if len(listing.Tiers) > 0 {
		data, err := json.Marshal(listing.Tiers)
		if err != nil {
			return fmt.Errorf("failed to encode tiers: %w", err)
		}
		tiers = string(data)
	}

	query := `
		INSERT INTO listings (
			seller_id, sku, asin, market, listed_price,
			min_price, max_price, default_price,
			strategy_id, is_b2b, tiers, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seller_id, sku) DO UPDATE SET
			asin = excluded.asin,
			market = excluded.market,
			listed_price = excluded.listed_price,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			default_price = excluded.default_price,
			strategy_id = excluded.strategy_id,
			is_b2b = excluded.is_b2b,
			tiers = excluded.tiers,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		sellerID, listing.SKU, listing.ASIN, listing.Market,
		listing.ListedPrice.String(),
		priceArg(listing.MinPrice), priceArg(listing.MaxPrice), priceArg(listing.DefaultPrice),
		listing.StrategyID, boolArg(listing.IsB2B), tiers,
		time.Now().UTC(),
	)
	return err
}

// GetListing retrieves a listing snapshot with seller isolation.
func (r *SQLRepository) GetListing(ctx context.Context, sellerID string, sku string) (*domain.Listing, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT seller_id, sku, asin, market, listed_price,
			   min_price, max_price, default_price,
			   strategy_id, is_b2b, tiers
		FROM listings
		WHERE seller_id = ? AND sku = ?
	`

	var listing domain.Listing
	var listedPrice string
	var minPrice, maxPrice, defaultPrice, strategyID, tiers sql.NullString
	var isB2B int

	err := r.db.QueryRowContext(ctx, r.rebind(query), sellerID, sku).Scan(
		&listing.SellerID, &listing.SKU, &listing.ASIN, &listing.Market,
		&listedPrice, &minPrice, &maxPrice, &defaultPrice,
		&strategyID, &isB2B, &tiers,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	listing.ListedPrice, err = decimal.NewFromString(listedPrice)
	if err != nil {
		return nil, fmt.Errorf("corrupt listed_price for %s: %w", sku, err)
	}
	if listing.MinPrice, err = scanPrice(minPrice); err != nil {
		return nil, fmt.Errorf("corrupt min_price for %s: %w", sku, err)
	}
	if listing.MaxPrice, err = scanPrice(maxPrice); err != nil {
		return nil, fmt.Errorf("corrupt max_price for %s: %w", sku, err)
	}
	if listing.DefaultPrice, err = scanPrice(defaultPrice); err != nil {
		return nil, fmt.Errorf("corrupt default_price for %s: %w", sku, err)
	}
	listing.StrategyID = strategyID.String
	listing.IsB2B = isB2B == 1
	if tiers.Valid && tiers.String != "" {
		if err := json.Unmarshal([]byte(tiers.String), &listing.Tiers); err != nil {
			return nil, fmt.Errorf("corrupt tiers for %s: %w", sku, err)
		}
	}

	return &listing, nil
}

// SaveStrategy upserts a strategy configuration with seller isolation.
func (r *SQLRepository) SaveStrategy(ctx context.Context, sellerID string, strategy *domain.Strategy) error {
	if sellerID == "" {
		return fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}
	if err := strategy.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO strategies (
			id, seller_id, name, description, compete_with, beat_by,
			min_price_rule, max_price_rule, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, seller_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			compete_with = excluded.compete_with,
			beat_by = excluded.beat_by,
			min_price_rule = excluded.min_price_rule,
			max_price_rule = excluded.max_price_rule,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		strategy.ID, sellerID, strategy.Name, strategy.Description,
		string(strategy.CompeteWith), strategy.BeatBy.String(),
		string(strategy.MinPriceRule), string(strategy.MaxPriceRule),
		boolArg(strategy.Enabled), now, now,
	)
	return err
}

// GetStrategy retrieves a strategy with seller isolation.
func (r *SQLRepository) GetStrategy(ctx context.Context, sellerID string, strategyID string) (*domain.Strategy, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, seller_id, name, description, compete_with, beat_by,
			   min_price_rule, max_price_rule, enabled, created_at, updated_at
		FROM strategies
		WHERE seller_id = ? AND id = ?
	`

	strategy, err := r.scanStrategy(r.db.QueryRowContext(ctx, r.rebind(query), sellerID, strategyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return strategy, err
}

// ListStrategies retrieves all enabled strategies for a seller.
func (r *SQLRepository) ListStrategies(ctx context.Context, sellerID string) ([]*domain.Strategy, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, seller_id, name, description, compete_with, beat_by,
			   min_price_rule, max_price_rule, enabled, created_at, updated_at
		FROM strategies
		WHERE seller_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strategies []*domain.Strategy
	for rows.Next() {
		strategy, err := r.scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strategy)
	}

	return strategies, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanStrategy(row rowScanner) (*domain.Strategy, error) {
	var strategy domain.Strategy
	var description sql.NullString
	var beatBy string
	var enabled int

	err := row.Scan(
		&strategy.ID, &strategy.SellerID, &strategy.Name, &description,
		(*string)(&strategy.CompeteWith), &beatBy,
		(*string)(&strategy.MinPriceRule), (*string)(&strategy.MaxPriceRule),
		&enabled, &strategy.CreatedAt, &strategy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	strategy.Description = description.String
	strategy.Enabled = enabled == 1
	strategy.BeatBy, err = decimal.NewFromString(beatBy)
	if err != nil {
		return nil, fmt.Errorf("corrupt beat_by for strategy %s: %w", strategy.ID, err)
	}

	return &strategy, nil
}

// SaveDecision stores a repricing decision audit record.
func (r *SQLRepository) SaveDecision(ctx context.Context, sellerID string, decision *domain.Decision) error {
	if sellerID == "" {
		return fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	var tierOutcomes any
	if len(decision.TierOutcomes) > 0 {
		data, err := json.Marshal(decision.TierOutcomes)
		if err != nil {
			return fmt.Errorf("failed to encode tier outcomes: %w", err)
		}
		tierOutcomes = string(data)
	}

	query := `
		INSERT INTO price_decisions (
			id, seller_id, asin, sku, kind, old_price, new_price,
			strategy_id, reason, tier_outcomes, duration_ms, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		decision.ID, sellerID, decision.ASIN, decision.SKU, decision.Kind,
		decision.OldPrice.String(), priceArg(decision.NewPrice),
		decision.StrategyID, decision.Reason, tierOutcomes,
		decision.DurationMs, decision.Timestamp,
	)
	return err
}

// GetDecision retrieves a decision by ID with seller isolation.
func (r *SQLRepository) GetDecision(ctx context.Context, sellerID string, decisionID string) (*domain.Decision, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, seller_id, asin, sku, kind, old_price, new_price,
			   strategy_id, reason, tier_outcomes, duration_ms, timestamp
		FROM price_decisions
		WHERE seller_id = ? AND id = ?
	`

	decision, err := r.scanDecision(r.db.QueryRowContext(ctx, r.rebind(query), sellerID, decisionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return decision, err
}

// ListDecisionsBySKU retrieves the decision history for a product.
func (r *SQLRepository) ListDecisionsBySKU(ctx context.Context, sellerID string, sku string, since time.Time) ([]*domain.Decision, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, seller_id, asin, sku, kind, old_price, new_price,
			   strategy_id, reason, tier_outcomes, duration_ms, timestamp
		FROM price_decisions
		WHERE seller_id = ? AND sku = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sellerID, sku, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		decision, err := r.scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}

	return decisions, rows.Err()
}

func (r *SQLRepository) scanDecision(row rowScanner) (*domain.Decision, error) {
	var decision domain.Decision
	var oldPrice string
	var newPrice, strategyID, reason, tierOutcomes sql.NullString

	err := row.Scan(
		&decision.ID, &decision.SellerID, &decision.ASIN, &decision.SKU,
		&decision.Kind, &oldPrice, &newPrice,
		&strategyID, &reason, &tierOutcomes,
		&decision.DurationMs, &decision.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	decision.OldPrice, err = decimal.NewFromString(oldPrice)
	if err != nil {
		return nil, fmt.Errorf("corrupt old_price for decision %s: %w", decision.ID, err)
	}
	if decision.NewPrice, err = scanPrice(newPrice); err != nil {
		return nil, fmt.Errorf("corrupt new_price for decision %s: %w", decision.ID, err)
	}
	decision.StrategyID = strategyID.String
	decision.Reason = reason.String
	if tierOutcomes.Valid && tierOutcomes.String != "" {
		if err := json.Unmarshal([]byte(tierOutcomes.String), &decision.TierOutcomes); err != nil {
			return nil, fmt.Errorf("corrupt tier_outcomes for decision %s: %w", decision.ID, err)
		}
	}

	return &decision, nil
}

// SaveResetRule upserts a reset window configuration.
func (r *SQLRepository) SaveResetRule(ctx context.Context, sellerID string, rule *domain.ResetRule) error {
	if sellerID == "" {
		return fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}
	if rule.Market == "" {
		return fmt.Errorf("%w: market is required", ErrInvalidInput)
	}
	if rule.ResetHour < 0 || rule.ResetHour > 23 || rule.ResumeHour < 0 || rule.ResumeHour > 23 {
		return fmt.Errorf("%w: hours must be 0-23", ErrInvalidInput)
	}

	query := `
		INSERT INTO reset_rules (
			seller_id, market, enabled, reset_hour, resume_hour, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seller_id, market) DO UPDATE SET
			enabled = excluded.enabled,
			reset_hour = excluded.reset_hour,
			resume_hour = excluded.resume_hour,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		sellerID, rule.Market, boolArg(rule.Enabled),
		rule.ResetHour, rule.ResumeHour, time.Now().UTC(),
	)
	return err
}

// GetResetRule retrieves the reset window for a seller's market.
func (r *SQLRepository) GetResetRule(ctx context.Context, sellerID string, market string) (*domain.ResetRule, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT seller_id, market, enabled, reset_hour, resume_hour, updated_at
		FROM reset_rules
		WHERE seller_id = ? AND market = ?
	`

	var rule domain.ResetRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), sellerID, market).Scan(
		&rule.SellerID, &rule.Market, &enabled,
		&rule.ResetHour, &rule.ResumeHour, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// SaveFilter upserts an eligibility filter with seller isolation.
func (r *SQLRepository) SaveFilter(ctx context.Context, sellerID string, filter *domain.Filter) error {
	if sellerID == "" {
		return fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}
	if filter.ID == "" || filter.Expression == "" {
		return fmt.Errorf("%w: filter id and expression are required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO filters (
			id, seller_id, name, description, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, seller_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		filter.ID, sellerID, filter.Name, filter.Description,
		filter.Expression, boolArg(filter.Enabled), now, now,
	)
	return err
}

// GetFilter retrieves a filter with seller isolation.
func (r *SQLRepository) GetFilter(ctx context.Context, sellerID string, filterID string) (*domain.Filter, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, seller_id, name, description, expression, enabled, created_at, updated_at
		FROM filters
		WHERE seller_id = ? AND id = ?
	`

	var filter domain.Filter
	var description sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), sellerID, filterID).Scan(
		&filter.ID, &filter.SellerID, &filter.Name, &description,
		&filter.Expression, &enabled, &filter.CreatedAt, &filter.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	filter.Description = description.String
	filter.Enabled = enabled == 1
	return &filter, nil
}

// ListFilters retrieves all enabled filters for a seller.
func (r *SQLRepository) ListFilters(ctx context.Context, sellerID string) ([]*domain.Filter, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, seller_id, name, description, expression, enabled, created_at, updated_at
		FROM filters
		WHERE seller_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []*domain.Filter
	for rows.Next() {
		var filter domain.Filter
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&filter.ID, &filter.SellerID, &filter.Name, &description,
			&filter.Expression, &enabled, &filter.CreatedAt, &filter.UpdatedAt,
		); err != nil {
			return nil, err
		}

		filter.Description = description.String
		filter.Enabled = enabled == 1
		filters = append(filters, &filter)
	}

	return filters, rows.Err()
}

// DeleteFilter soft-deletes a filter by setting enabled = 0.
func (r *SQLRepository) DeleteFilter(ctx context.Context, sellerID string, filterID string) error {
	if sellerID == "" {
		return fmt.Errorf("%w: sellerID is required", ErrInvalidInput)
	}

	query := `
		UPDATE filters
		SET enabled = 0, updated_at = ?
		WHERE seller_id = ? AND id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), sellerID, filterID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// priceArg converts an optional decimal into a SQL argument.
func priceArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// scanPrice converts a nullable TEXT column back into a decimal.
func scanPrice(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
