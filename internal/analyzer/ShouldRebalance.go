/*

This file contains the rebalance-worthiness decision. A candidate that scored
higher than the current asset still has to clear a yield-improvement
threshold before a switch is worth its execution costs, and that threshold
adapts to how the candidate's volatility compares to the incumbent's: moving
into a more volatile asset demands a bigger improvement, moving into a more
stable one is allowed on a smaller edge.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/types"
)

var decisionLogger = logger.GetForComponent("rebalance_decision")

var ErrInvalidThreshold = errors.New("rebalance threshold out of range")

// ShouldRebalance decides whether switching from the current allocation to
// the candidate is worth doing.
//
// Inputs:
//   - current: the position's current allocation as scored this cycle.
//   - candidate: the selector's best alternative.
//   - userThresholdBps: the owner's rebalance threshold in basis points.
//     Must be positive; ValidateStrategy enforces tighter bounds when the
//     strategy is written.
//
// Output:
//   - A RebalanceDecision carrying the verdict, the relative yield
//     improvement, the volatility-adjusted threshold it was compared
//     against, and a human-readable reason.
//   - An error only when the threshold is zero.
func ShouldRebalance(current, candidate types.CandidateAllocation, userThresholdBps uint64) (types.RebalanceDecision, error) {
	if userThresholdBps == 0 {
		return types.RebalanceDecision{}, fmt.Errorf("%w: threshold must be positive", ErrInvalidThreshold)
	}

	decision := types.RebalanceDecision{ThresholdBps: userThresholdBps}

	if current.Asset == candidate.Asset {
		decision.Reason = "candidate is the current asset"
		return decision, nil
	}

	if candidate.YieldBps <= current.YieldBps {
		decision.Reason = "candidate yield does not exceed current yield"
		return decision, nil
	}

	improvement := yieldImprovementBps(current.YieldBps, candidate.YieldBps)
	decision.ImprovementBps = improvement

	if improvement < minImprovementFloorBps {
		decision.Reason = fmt.Sprintf("improvement %d bps is below the %d bps floor", improvement, minImprovementFloorBps)
		return decision, nil
	}

	threshold := adaptiveThreshold(userThresholdBps, current.VolatilityScore, candidate.VolatilityScore)
	decision.ThresholdBps = threshold

	if improvement < threshold {
		decision.Reason = fmt.Sprintf("improvement %d bps is below the adaptive threshold %d bps", improvement, threshold)
		return decision, nil
	}

	decision.Rebalance = true
	decision.Reason = fmt.Sprintf("improvement %d bps meets the adaptive threshold %d bps", improvement, threshold)

	decisionLogger.Debug().
		Str("currentAsset", current.Asset).
		Str("candidateAsset", candidate.Asset).
		Uint64("improvementBps", improvement).
		Uint64("thresholdBps", threshold).
		Msg("Rebalance justified")

	return decision, nil
}

// yieldImprovementBps computes the candidate's yield improvement relative to
// the current yield, in basis points. A candidate improving on a zero yield
// is an unbounded improvement and saturates to MaxUint64.
func yieldImprovementBps(currentYieldBps, candidateYieldBps uint64) uint64 {
	if candidateYieldBps <= currentYieldBps {
		return 0
	}
	if currentYieldBps == 0 {
		return math.MaxUint64
	}
	diff := candidateYieldBps - currentYieldBps
	if diff > math.MaxUint64/types.RatioScale {
		return math.MaxUint64
	}
	return diff * types.RatioScale / currentYieldBps
}

// adaptiveThreshold scales the owner's threshold by the volatility delta
// between the candidate and the current asset.
//
// Moving up in volatility raises the bar: +25% for one point, +50% for two,
// +50% per point from three up, capped at adaptiveThresholdCapBps. Moving
// down lowers it by 10% per point, at most 50%, floored at the global
// minimum improvement. Equal volatility leaves the threshold untouched.
func adaptiveThreshold(userThresholdBps, currentVol, candidateVol uint64) uint64 {
	threshold := userThresholdBps

	switch {
	case candidateVol > currentVol:
		delta := candidateVol - currentVol
		switch delta {
		case 1:
			threshold = threshold * 125 / 100
		case 2:
			threshold = threshold * 150 / 100
		default:
			threshold = threshold * (100 + 50*delta) / 100
		}
		if threshold > adaptiveThresholdCapBps {
			threshold = adaptiveThresholdCapBps
		}

	case currentVol > candidateVol:
		delta := currentVol - candidateVol
		reduction := 10 * delta
		if reduction > 50 {
			reduction = 50
		}
		threshold = threshold * (100 - reduction) / 100
		if threshold < minImprovementFloorBps {
			threshold = minImprovementFloorBps
		}
	}

	return threshold
}
