/*

This file contains the execution hand-off types. The engine never signs or
submits transactions itself: it emits a SwapIntent to the Meridian executor
and receives an ExecutionReceipt back.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// SwapIntent asks the executor to move a position's entire collateral from
// one asset to another. MinAmountOut is the slippage guard: fills below it
// must be rejected by the executor.
type SwapIntent struct {
	IntentID       string      `json:"intent_id"`
	PositionID     uint64      `json:"position_id"`
	Owner          string      `json:"owner"`
	FromAsset      string      `json:"from_asset"`
	ToAsset        string      `json:"to_asset"`
	FromAmount     sdkmath.Int `json:"from_amount"`
	MinAmountOut   sdkmath.Int `json:"min_amount_out"`
	TargetRatioBps uint64      `json:"target_ratio_bps"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ExecutionReceipt is the executor's answer to a SwapIntent. Executed is
// false when the intent was recorded but deliberately not submitted, which is
// what the observe-mode executor does.
type ExecutionReceipt struct {
	IntentID  string      `json:"intent_id"`
	Executed  bool        `json:"executed"`
	TxHash    string      `json:"tx_hash,omitempty"`
	AmountOut sdkmath.Int `json:"amount_out"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
