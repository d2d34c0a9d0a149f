/*

This file contains the per-position optimization pipeline: the liquidation
safety gate, candidate selection, the rebalance decision, and the hand-off of
a swap intent to the executor. Every failure mode folds into a NO_ACTION
outcome so a single bad position can never abort the cycle it rides in.

*/

package aco

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridian-protocol/aco/internal/analyzer"
	"github.com/meridian-protocol/aco/internal/types"
	"github.com/meridian-protocol/aco/internal/utils"
)

// safetyGateBps is the liquidation floor plus a 10% margin. Positions whose
// derived collateral ratio sits below this line are never rebalanced, no
// matter how attractive a candidate looks.
const safetyGateBps = types.MinCollateralRatioBps * 110 / 100

// OptimizePosition runs one position through the full decision pipeline.
//
// Inputs:
//   - snapshot: the position as read from the gateway this cycle
//   - strategy: the owner's enabled strategy
//   - view: the cycle's frozen market view
//
// Output: the outcome for the cycle report. OptimizePosition never returns
// an error; selection and execution failures become NO_ACTION outcomes with
// the failure recorded in Reason.
func (a *ACO) OptimizePosition(ctx context.Context, log zerolog.Logger, snapshot types.PositionSnapshot, strategy types.Strategy, view types.MarketView) types.OptimizeOutcome {
	outcome := types.OptimizeOutcome{
		PositionID:   snapshot.ID,
		Owner:        snapshot.Owner,
		Action:       types.OutcomeNoAction,
		CurrentAsset: snapshot.CollateralAsset,
	}

	if err := analyzer.ValidatePositionSnapshot(snapshot); err != nil {
		outcome.Reason = fmt.Sprintf("invalid snapshot: %v", err)
		log.Warn().Err(err).Uint64("positionID", snapshot.ID).Msg("Skipping position with invalid snapshot")
		return outcome
	}

	// The gate reads the ratio re-derived from value and debt, never the
	// gateway-reported one.
	ratioBps, err := utils.RatioBps(snapshot.CollateralValueUSD, snapshot.DebtUSD)
	if err != nil {
		outcome.Reason = fmt.Sprintf("cannot derive collateral ratio: %v", err)
		log.Warn().Err(err).Uint64("positionID", snapshot.ID).Msg("Skipping position without a derivable ratio")
		return outcome
	}
	if ratioBps < safetyGateBps {
		outcome.Action = types.OutcomeGateRejected
		outcome.Reason = fmt.Sprintf("collateral ratio %d bps is below the safety gate %d bps", ratioBps, safetyGateBps)
		log.Warn().
			Uint64("positionID", snapshot.ID).
			Uint64("ratioBps", ratioBps).
			Uint64("gateBps", safetyGateBps).
			Msg("Position too close to liquidation, refusing to rebalance")
		return outcome
	}

	result, err := analyzer.SelectOptimalCollateral(snapshot, strategy, view)
	if err != nil {
		outcome.Reason = fmt.Sprintf("selection failed: %v", err)
		log.Warn().Err(err).Uint64("positionID", snapshot.ID).Msg("Skipping position after selection failure")
		return outcome
	}

	outcome.CurrentScore = result.Current.Score
	outcome.BestScore = result.Best.Score
	outcome.BestAsset = result.Best.Candidate.Asset

	decision, err := analyzer.ShouldRebalance(result.Current.Candidate, result.Best.Candidate, strategy.RebalanceThresholdBps)
	if err != nil {
		outcome.Reason = fmt.Sprintf("rebalance decision failed: %v", err)
		log.Warn().Err(err).Uint64("positionID", snapshot.ID).Msg("Skipping position after decision failure")
		return outcome
	}
	outcome.Decision = decision

	if !decision.Rebalance {
		outcome.Reason = decision.Reason
		log.Debug().
			Uint64("positionID", snapshot.ID).
			Str("currentAsset", snapshot.CollateralAsset).
			Str("bestAsset", result.Best.Candidate.Asset).
			Str("reason", decision.Reason).
			Msg("Holding position")
		return outcome
	}

	intent := a.buildSwapIntent(snapshot, result)
	outcome.Intent = &intent

	log.Info().
		Str("intentID", intent.IntentID).
		Uint64("positionID", snapshot.ID).
		Str("fromAsset", intent.FromAsset).
		Str("toAsset", intent.ToAsset).
		Str("fromAmount", intent.FromAmount.String()).
		Str("minAmountOut", intent.MinAmountOut.String()).
		Uint64("improvementBps", decision.ImprovementBps).
		Uint64("thresholdBps", decision.ThresholdBps).
		Msg("Submitting collateral switch intent")

	receipt, err := a.executor.ExecuteSwap(ctx, intent)
	if err != nil {
		outcome.Reason = fmt.Sprintf("swap execution failed: %v", err)
		if receipt.IntentID != "" {
			outcome.Receipt = &receipt
		}
		log.Error().Err(err).Str("intentID", intent.IntentID).Msg("Collateral switch failed")
		return outcome
	}

	outcome.Action = types.OutcomeSwitch
	outcome.Receipt = &receipt
	log.Info().
		Str("intentID", intent.IntentID).
		Bool("executed", receipt.Executed).
		Str("txHash", receipt.TxHash).
		Msg("Collateral switch intent accepted")
	return outcome
}

// buildSwapIntent turns a selection result into the executor hand-off. The
// slippage guard comes from the active engine parameters: fills below
// Amount x (10000 - MaxSlippageBps) / 10000 must be rejected downstream.
func (a *ACO) buildSwapIntent(snapshot types.PositionSnapshot, result types.SelectionResult) types.SwapIntent {
	best := result.Best.Candidate
	keepBps := sdkmath.NewIntFromUint64(types.RatioScale - a.params.MaxSlippageBps)
	minAmountOut := best.Amount.Mul(keepBps).Quo(sdkmath.NewIntFromUint64(types.RatioScale))

	return types.SwapIntent{
		IntentID:       uuid.New().String(),
		PositionID:     snapshot.ID,
		Owner:          snapshot.Owner,
		FromAsset:      snapshot.CollateralAsset,
		ToAsset:        best.Asset,
		FromAmount:     snapshot.CollateralAmount,
		MinAmountOut:   minAmountOut,
		TargetRatioBps: result.TargetRatioBps,
		CreatedAt:      time.Now().UTC(),
	}
}
