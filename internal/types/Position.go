/*

This file contains the position snapshot consumed by the optimization engine.
Snapshots are fetched from the Meridian gateway at the start of a cycle and
are never mutated by the engine.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PositionSnapshot is a point-in-time view of one collateralized debt
// position. Monetary fields are fixed-point integers with 18 decimals of USD
// precision; CollateralAmount is denominated in the asset's own base units.
type PositionSnapshot struct {
	ID                 uint64      `json:"id"`
	Owner              string      `json:"owner"`
	CollateralAsset    string      `json:"collateral_asset"`
	CollateralAmount   sdkmath.Int `json:"collateral_amount"`
	CollateralValueUSD sdkmath.Int `json:"collateral_value_usd"`
	DebtUSD            sdkmath.Int `json:"debt_usd"`

	// RatioBps is the collateral ratio reported by the gateway. The engine
	// re-derives the ratio from value and debt and cross-checks this field
	// on ingestion; decisions always use the derived value.
	RatioBps uint64 `json:"ratio_bps"`

	ObservedAt time.Time `json:"observed_at"`
}
