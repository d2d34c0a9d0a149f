/*

This file contains the optimal-candidate selector. For one position it scores
the current holding as the baseline, evaluates every permitted alternative
against the same target ratio, and keeps the best under a strictly-greater
comparison, so ties always favor the current asset and, among candidates, the
earlier entry in the owner's permitted list.

*/

package analyzer

import (
	"errors"
	"fmt"

	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/types"
	"github.com/meridian-protocol/aco/internal/utils"
)

var selectorLogger = logger.GetForComponent("collateral_selector")

var (
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrInvalidSnapshot = errors.New("invalid position snapshot")
)

// ValidateStrategy checks a strategy against the ranges the protocol allows.
// It is used both by the selector and by the web API before a strategy is
// accepted into storage.
func ValidateStrategy(strategy types.Strategy) error {
	if strategy.Owner == "" {
		return fmt.Errorf("%w: owner is empty", ErrInvalidStrategy)
	}
	if strategy.TargetLTVBps != 0 && (strategy.TargetLTVBps < minTargetLTVBps || strategy.TargetLTVBps > maxTargetLTVBps) {
		return fmt.Errorf("%w: target LTV %d bps must be 0 or within [%d, %d]",
			ErrInvalidStrategy, strategy.TargetLTVBps, minTargetLTVBps, maxTargetLTVBps)
	}
	if strategy.RiskTolerance < minRiskTolerance || strategy.RiskTolerance > maxRiskTolerance {
		return fmt.Errorf("%w: risk tolerance %d must be within [%d, %d]",
			ErrInvalidStrategy, strategy.RiskTolerance, minRiskTolerance, maxRiskTolerance)
	}
	if len(strategy.PermittedAssets) == 0 {
		return fmt.Errorf("%w: permitted assets list is empty", ErrInvalidStrategy)
	}
	for i, asset := range strategy.PermittedAssets {
		if asset == "" {
			return fmt.Errorf("%w: permitted asset at index %d is empty", ErrInvalidStrategy, i)
		}
	}
	if strategy.RebalanceThresholdBps < minRebalanceThresholdBps || strategy.RebalanceThresholdBps > types.RatioScale {
		return fmt.Errorf("%w: rebalance threshold %d bps must be within [%d, %d]",
			ErrInvalidStrategy, strategy.RebalanceThresholdBps, minRebalanceThresholdBps, types.RatioScale)
	}
	return nil
}

// ValidatePositionSnapshot checks that a snapshot carries everything the
// pipeline needs before any math runs on it.
func ValidatePositionSnapshot(snapshot types.PositionSnapshot) error {
	if snapshot.ID == 0 {
		return fmt.Errorf("%w: position ID is zero", ErrInvalidSnapshot)
	}
	if snapshot.Owner == "" {
		return fmt.Errorf("%w: owner is empty", ErrInvalidSnapshot)
	}
	if snapshot.CollateralAsset == "" {
		return fmt.Errorf("%w: collateral asset is empty", ErrInvalidSnapshot)
	}
	if snapshot.CollateralAmount.IsNil() || !snapshot.CollateralAmount.IsPositive() {
		return fmt.Errorf("%w: collateral amount must be positive", ErrInvalidSnapshot)
	}
	if snapshot.CollateralValueUSD.IsNil() || !snapshot.CollateralValueUSD.IsPositive() {
		return fmt.Errorf("%w: collateral value must be positive", ErrInvalidSnapshot)
	}
	if snapshot.DebtUSD.IsNil() || !snapshot.DebtUSD.IsPositive() {
		return fmt.Errorf("%w: debt must be positive", ErrInvalidSnapshot)
	}
	return nil
}

// deriveTargetRatio turns the owner's strategy into the concrete collateral
// ratio this selection pass steers toward. The strategy must already be
// validated.
func deriveTargetRatio(strategy types.Strategy, currentRatioBps uint64) uint64 {
	var target uint64
	if strategy.TargetLTVBps != 0 {
		target = types.RatioScale*types.RatioScale/strategy.TargetLTVBps + safetyMarginBps
	} else {
		target = currentRatioBps + noTargetBufferBps
	}

	// A position already running well above both the target and the floor
	// keeps its altitude. The engine never steers a comfortable position
	// down toward liquidation territory.
	if currentRatioBps > target && currentRatioBps > types.MinCollateralRatioBps+raiseHeadroomBps {
		target = currentRatioBps
	}

	return target
}

// SelectOptimalCollateral finds the best collateral allocation for one
// position under one strategy and one market view.
//
// Inputs:
//   - snapshot: the position as fetched this cycle.
//   - strategy: the owner's strategy; validated here.
//   - view: the cycle's frozen market view.
//
// Output:
//   - A SelectionResult whose Best is either a strictly better candidate or
//     the current holding itself. Candidates that fail evaluation are
//     skipped and counted, never fatal: the baseline survives even when
//     every alternative is unpriceable.
//   - An error only for invalid inputs or a current asset missing from the
//     market view, since without it there is no baseline to compare against.
func SelectOptimalCollateral(snapshot types.PositionSnapshot, strategy types.Strategy, view types.MarketView) (types.SelectionResult, error) {
	if err := ValidatePositionSnapshot(snapshot); err != nil {
		return types.SelectionResult{}, err
	}
	if err := ValidateStrategy(strategy); err != nil {
		return types.SelectionResult{}, err
	}

	currentData, ok := view.Assets[snapshot.CollateralAsset]
	if !ok {
		return types.SelectionResult{}, fmt.Errorf("%w: current asset %s", ErrUnknownAsset, snapshot.CollateralAsset)
	}

	currentRatio, err := utils.RatioBps(snapshot.CollateralValueUSD, snapshot.DebtUSD)
	if err != nil {
		return types.SelectionResult{}, fmt.Errorf("position %d: %w", snapshot.ID, err)
	}

	targetRatio := deriveTargetRatio(strategy, currentRatio)

	// The current holding is the baseline. It is scored at the ratio the
	// position actually has, not a re-derived one.
	current := types.ScoredCandidate{
		Candidate: types.CandidateAllocation{
			Asset:           snapshot.CollateralAsset,
			Amount:          snapshot.CollateralAmount,
			ValueUSD:        snapshot.CollateralValueUSD,
			RatioBps:        currentRatio,
			YieldBps:        currentData.YieldBps,
			VolatilityScore: currentData.VolatilityScore,
		},
	}
	current.Score = ScoreCollateral(
		currentData.YieldBps,
		currentData.VolatilityScore,
		strategy.RiskTolerance,
		strategy.YieldPriority,
		currentRatio,
		targetRatio,
	)

	result := types.SelectionResult{
		Current:        current,
		Best:           current,
		TargetRatioBps: targetRatio,
	}

	for _, asset := range strategy.PermittedAssets {
		if asset == snapshot.CollateralAsset {
			continue
		}
		result.CandidatesTried++

		candidate, evalErr := EvaluateCandidate(asset, snapshot.CollateralValueUSD, snapshot.DebtUSD, targetRatio, view)
		if evalErr != nil {
			result.CandidatesSkipped++
			selectorLogger.Debug().
				Err(evalErr).
				Uint64("positionID", snapshot.ID).
				Str("asset", asset).
				Msg("Skipping candidate: evaluation failed")
			continue
		}

		score := ScoreCollateral(
			candidate.YieldBps,
			candidate.VolatilityScore,
			strategy.RiskTolerance,
			strategy.YieldPriority,
			candidate.RatioBps,
			targetRatio,
		)

		selectorLogger.Debug().
			Uint64("positionID", snapshot.ID).
			Str("asset", asset).
			Uint64("score", score).
			Uint64("bestScore", result.Best.Score).
			Msg("Candidate scored")

		// Strictly greater: a tie keeps the incumbent.
		if score > result.Best.Score {
			result.Best = types.ScoredCandidate{Candidate: candidate, Score: score}
		}
	}

	selectorLogger.Debug().
		Uint64("positionID", snapshot.ID).
		Str("currentAsset", snapshot.CollateralAsset).
		Uint64("currentScore", result.Current.Score).
		Str("bestAsset", result.Best.Candidate.Asset).
		Uint64("bestScore", result.Best.Score).
		Uint64("targetRatioBps", targetRatio).
		Int("tried", result.CandidatesTried).
		Int("skipped", result.CandidatesSkipped).
		Msg("Selection complete")

	return result, nil
}
