/*

This file contains the engine-level tunable parameters. Unlike Strategy,
which is per-owner, exactly one EngineParameters set is active at a time and
every parameter change is persisted as a new immutable version in Postgres.

The scoring math itself is deliberately not tunable: its constants are fixed
by the protocol so that any two deployments reach identical decisions on
identical inputs.

*/

package types

import (
	"errors"
	"fmt"
)

// EngineParameters holds the operational knobs of the optimization engine.
type EngineParameters struct {
	// MaxSlippageBps bounds how far below the quoted amount a swap fill may
	// land before the executor must reject it.
	MaxSlippageBps uint64 `json:"max_slippage_bps"`

	// MaxPositionsPerCycle caps the work done in a single cycle so one
	// enormous backlog cannot starve the loop.
	MaxPositionsPerCycle uint64 `json:"max_positions_per_cycle"`

	// PriceCacheTTLSeconds is how long a last-good price stays usable in
	// Redis after the oracle stops answering.
	PriceCacheTTLSeconds uint64 `json:"price_cache_ttl_seconds"`

	// GatewayRateLimitPerSecond and GatewayBurst configure the client-side
	// token bucket in front of the Meridian gateway.
	GatewayRateLimitPerSecond uint64 `json:"gateway_rate_limit_per_second"`
	GatewayBurst              uint64 `json:"gateway_burst"`
}

var (
	ErrInvalidSlippage      = errors.New("max slippage must be between 1 and 1000 bps")
	ErrInvalidPositionCap   = errors.New("max positions per cycle must be between 1 and 10000")
	ErrInvalidPriceCacheTTL = errors.New("price cache TTL must be between 60 and 86400 seconds")
	ErrInvalidRateLimit     = errors.New("gateway rate limit must be between 1 and 1000 requests per second")
	ErrInvalidBurst         = errors.New("gateway burst must be at least the rate limit and at most 10000")
)

// Validate checks every field against its allowed range.
func (p EngineParameters) Validate() error {
	if p.MaxSlippageBps < 1 || p.MaxSlippageBps > 1_000 {
		return fmt.Errorf("%w: got %d", ErrInvalidSlippage, p.MaxSlippageBps)
	}
	if p.MaxPositionsPerCycle < 1 || p.MaxPositionsPerCycle > 10_000 {
		return fmt.Errorf("%w: got %d", ErrInvalidPositionCap, p.MaxPositionsPerCycle)
	}
	if p.PriceCacheTTLSeconds < 60 || p.PriceCacheTTLSeconds > 86_400 {
		return fmt.Errorf("%w: got %d", ErrInvalidPriceCacheTTL, p.PriceCacheTTLSeconds)
	}
	if p.GatewayRateLimitPerSecond < 1 || p.GatewayRateLimitPerSecond > 1_000 {
		return fmt.Errorf("%w: got %d", ErrInvalidRateLimit, p.GatewayRateLimitPerSecond)
	}
	if p.GatewayBurst < p.GatewayRateLimitPerSecond || p.GatewayBurst > 10_000 {
		return fmt.Errorf("%w: got %d", ErrInvalidBurst, p.GatewayBurst)
	}
	return nil
}
