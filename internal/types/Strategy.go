/*

This file contains the per-owner optimization strategy. A strategy is written
through the web API, stored wholesale in Postgres, and read once per cycle by
the engine. All ratio-like fields are integer basis points on a 10,000 scale.

*/

package types

import (
	"time"
)

// Strategy describes how a position owner wants their collateral managed.
type Strategy struct {
	// Owner is the position owner's address. One strategy per owner.
	Owner string `json:"owner"`

	// TargetLTVBps is the desired loan-to-value in basis points. Zero means
	// the owner has not set a target and the engine holds the position near
	// its current collateral ratio instead.
	TargetLTVBps uint64 `json:"target_ltv_bps"`

	// RiskTolerance runs from 1 (most conservative) to 10 (most aggressive)
	// and shapes how yield is traded off against volatility when scoring.
	RiskTolerance uint64 `json:"risk_tolerance"`

	// PermittedAssets is the ordered whitelist of collateral symbols the
	// engine may move this position into. Order breaks score ties: earlier
	// entries win.
	PermittedAssets []string `json:"permitted_assets"`

	// YieldPriority selects the yield-seeking scoring profile when true and
	// the conservative profile when false.
	YieldPriority bool `json:"yield_priority"`

	// RebalanceThresholdBps is the minimum relative yield improvement, in
	// basis points, before a collateral switch is worth its costs.
	RebalanceThresholdBps uint64 `json:"rebalance_threshold_bps"`

	// Enabled gates the whole strategy. Disabled strategies are kept in
	// storage but never acted on.
	Enabled bool `json:"enabled"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
