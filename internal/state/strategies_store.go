// ./internal/state/strategies_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/meridian-protocol/aco/internal/types"
)

var ErrStrategyNotFound = errors.New("strategy not found")

// SaveStrategy inserts or replaces the strategy for one owner. The caller is
// responsible for validating the strategy first; this function only persists.
func SaveStrategy(ctx context.Context, strategy types.Strategy) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO strategies (
            owner, target_ltv_bps, risk_tolerance, permitted_assets,
            yield_priority, rebalance_threshold_bps, enabled, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (owner) DO UPDATE SET
            target_ltv_bps = EXCLUDED.target_ltv_bps,
            risk_tolerance = EXCLUDED.risk_tolerance,
            permitted_assets = EXCLUDED.permitted_assets,
            yield_priority = EXCLUDED.yield_priority,
            rebalance_threshold_bps = EXCLUDED.rebalance_threshold_bps,
            enabled = EXCLUDED.enabled,
            updated_at = EXCLUDED.updated_at;`

	_, err := DB.ExecContext(ctx, stmt,
		strategy.Owner,
		strategy.TargetLTVBps,
		strategy.RiskTolerance,
		pq.Array(strategy.PermittedAssets),
		strategy.YieldPriority,
		strategy.RebalanceThresholdBps,
		strategy.Enabled,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save strategy for %s: %w", strategy.Owner, err)
	}

	log.Info().
		Str("owner", strategy.Owner).
		Uint64("targetLTVBps", strategy.TargetLTVBps).
		Uint64("riskTolerance", strategy.RiskTolerance).
		Bool("enabled", strategy.Enabled).
		Msg("Saved strategy")
	return nil
}

// LoadStrategy returns the strategy for one owner.
func LoadStrategy(ctx context.Context, owner string) (types.Strategy, error) {
	if DB == nil {
		return types.Strategy{}, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT owner, target_ltv_bps, risk_tolerance, permitted_assets,
               yield_priority, rebalance_threshold_bps, enabled, updated_at
        FROM strategies
        WHERE owner = $1;`

	var strategy types.Strategy
	err := DB.QueryRowContext(ctx, query, owner).Scan(
		&strategy.Owner,
		&strategy.TargetLTVBps,
		&strategy.RiskTolerance,
		pq.Array(&strategy.PermittedAssets),
		&strategy.YieldPriority,
		&strategy.RebalanceThresholdBps,
		&strategy.Enabled,
		&strategy.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.Strategy{}, fmt.Errorf("%w: %s", ErrStrategyNotFound, owner)
		}
		return types.Strategy{}, fmt.Errorf("failed to load strategy for %s: %w", owner, err)
	}

	return strategy, nil
}

// ListStrategies returns every stored strategy, enabled or not.
func ListStrategies(ctx context.Context) ([]types.Strategy, error) {
	return queryStrategies(ctx, `
        SELECT owner, target_ltv_bps, risk_tolerance, permitted_assets,
               yield_priority, rebalance_threshold_bps, enabled, updated_at
        FROM strategies
        ORDER BY owner;`)
}

// ListEnabledStrategies returns only the strategies the engine should act on,
// in deterministic owner order.
func ListEnabledStrategies(ctx context.Context) ([]types.Strategy, error) {
	return queryStrategies(ctx, `
        SELECT owner, target_ltv_bps, risk_tolerance, permitted_assets,
               yield_priority, rebalance_threshold_bps, enabled, updated_at
        FROM strategies
        WHERE enabled = TRUE
        ORDER BY owner;`)
}

func queryStrategies(ctx context.Context, query string) ([]types.Strategy, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	var strategies []types.Strategy
	for rows.Next() {
		var strategy types.Strategy
		err := rows.Scan(
			&strategy.Owner,
			&strategy.TargetLTVBps,
			&strategy.RiskTolerance,
			pq.Array(&strategy.PermittedAssets),
			&strategy.YieldPriority,
			&strategy.RebalanceThresholdBps,
			&strategy.Enabled,
			&strategy.UpdatedAt,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan strategy row")
			continue // Skip this row and continue with others
		}
		strategies = append(strategies, strategy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during strategy row iteration: %w", err)
	}

	return strategies, nil
}

// StrategyStore adapts the package-level strategy queries to the engine's
// StrategyProvider interface.
type StrategyStore struct{}

func (StrategyStore) ActiveStrategies(ctx context.Context) ([]types.Strategy, error) {
	return ListEnabledStrategies(ctx)
}
