/*

This file contains the default engine parameters for the ACO.

These defaults are designed for an unattended keeper managing other people's
positions in production. Each value has been chosen to keep the engine
conservative by default; operators can publish a new parameter version
through the database when a deployment needs different behavior.

*/

package config

import (
	"github.com/meridian-protocol/aco/internal/types"
)

// DefaultEngineParameters provides the baseline operational parameters for
// the optimization engine. These values are used if no active parameters are
// found in the database during initialization.
//
// Note that the scoring and decision constants are NOT here: they are fixed
// in the analyzer so that every deployment makes bit-identical decisions on
// identical inputs. Only operational plumbing is tunable.
var DefaultEngineParameters = types.EngineParameters{
	MaxSlippageBps: 100, // Reject fills more than 1% below the quoted amount.
	// Rationale: a collateral switch that loses more than 1% to slippage has
	// eaten several months of the yield improvement that justified it.
	// Better to let the intent fail and retry in a later cycle.

	MaxPositionsPerCycle: 50, // Evaluate at most 50 positions per cycle.
	// Rationale: keeps a single cycle's gateway load and wall-clock time
	// bounded. A backlog beyond the cap is picked up by subsequent cycles
	// rather than stretching one cycle indefinitely.

	PriceCacheTTLSeconds: 900, // Last-good prices stay usable for 15 minutes.
	// Rationale: long enough to ride out a short oracle outage, short enough
	// that the engine stops making decisions on prices that no longer
	// reflect the market. Past the TTL an asset simply drops out of the
	// cycle's market view.

	GatewayRateLimitPerSecond: 10, // Token bucket refill rate for gateway calls.
	// Rationale: a full cycle touches prices, yields, positions and the
	// executor. 10 req/s keeps the keeper well inside the gateway's public
	// limits while still finishing a 50-position cycle in seconds.

	GatewayBurst: 20, // Token bucket depth for gateway calls.
	// Rationale: the start of a cycle front-loads requests when the market
	// view is built. A 20-deep bucket absorbs that burst without tripping
	// the limiter for the rest of the cycle.
}
