// ./internal/state/parameters_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meridian-protocol/aco/internal/types"
)

var ErrNoActiveParameters = errors.New("no active engine parameters")

// SaveEngineParameters saves a new version of the engine parameters. Every
// save is a new immutable row; makeActive deactivates the previous active set
// in the same transaction so exactly one set is active at any time.
func SaveEngineParameters(ctx context.Context, params types.EngineParameters, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to persist invalid parameters: %w", err)
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE engine_parameters SET is_active = FALSE WHERE is_active = TRUE;`
		_, err = tx.ExecContext(ctx, stmtDeactivate)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters: %w", err)
		}
	}

	stmt := `
        INSERT INTO engine_parameters (
            version, is_active, activated_at, created_at,
            max_slippage_bps, max_positions_per_cycle, price_cache_ttl_seconds,
            gateway_rate_limit_per_second, gateway_burst
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRowContext(ctx, stmt,
		version, makeActive, currentTime, currentTime,
		params.MaxSlippageBps, params.MaxPositionsPerCycle, params.PriceCacheTTLSeconds,
		params.GatewayRateLimitPerSecond, params.GatewayBurst,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert engine parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved engine parameters")
	return paramsID, nil
}

// LoadActiveEngineParameters loads the currently active engine parameters.
// Rows that fail validation are rejected rather than returned: a corrupt
// parameter set must never reach the engine.
func LoadActiveEngineParameters(ctx context.Context) (*types.EngineParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT max_slippage_bps, max_positions_per_cycle, price_cache_ttl_seconds,
               gateway_rate_limit_per_second, gateway_burst
        FROM engine_parameters
        WHERE is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	p := &types.EngineParameters{}
	err := DB.QueryRowContext(ctx, query).Scan(
		&p.MaxSlippageBps, &p.MaxPositionsPerCycle, &p.PriceCacheTTLSeconds,
		&p.GatewayRateLimitPerSecond, &p.GatewayBurst,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoActiveParameters
		}
		return nil, fmt.Errorf("failed to scan active engine parameters: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("active engine parameters are invalid: %w", err)
	}

	log.Info().Msg("Loaded active engine parameters")
	return p, nil
}

// GetActiveEngineParametersID returns the params_id of the currently active
// parameter set, or nil when none is active.
func GetActiveEngineParametersID(ctx context.Context) (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM engine_parameters
        WHERE is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	err := DB.QueryRowContext(ctx, query).Scan(&paramsID)
	if err != nil {
		if err == sql.ErrNoRows {
			// No active parameters found - this is valid, return nil
			log.Debug().Msg("No active engine parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active engine parameters ID: %w", err)
	}

	return &paramsID, nil
}
