/*

This file contains the observe-mode executor. It satisfies SwapExecutor but
never submits anything: every intent comes back as a not-executed receipt.
Running the engine against production data with this executor is how a new
deployment is validated before it is allowed to move real collateral.

*/

package position

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/types"
)

var observeLogger = logger.GetForComponent("observe_executor")

// NoopExecutor records swap intents without submitting them.
type NoopExecutor struct{}

func (NoopExecutor) ExecuteSwap(_ context.Context, intent types.SwapIntent) (types.ExecutionReceipt, error) {
	observeLogger.Info().
		Str("intentID", intent.IntentID).
		Uint64("positionID", intent.PositionID).
		Str("fromAsset", intent.FromAsset).
		Str("toAsset", intent.ToAsset).
		Str("fromAmount", intent.FromAmount.String()).
		Str("minAmountOut", intent.MinAmountOut.String()).
		Uint64("targetRatioBps", intent.TargetRatioBps).
		Msg("Observe mode: swap intent recorded, not submitted")

	return types.ExecutionReceipt{
		IntentID:  intent.IntentID,
		Executed:  false,
		AmountOut: sdkmath.ZeroInt(),
		Message:   "observe mode: intent not submitted",
		Timestamp: time.Now().UTC(),
	}, nil
}
