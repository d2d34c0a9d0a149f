/*

This file contains the collateral scoring function, the mathematical heart of
the ACO, along with the fixed protocol constants the whole decision pipeline
is built on.

All arithmetic here is integer-only with truncating division. That is a hard
requirement: any two deployments evaluating the same position against the
same market view must produce bit-identical scores.

*/

package analyzer

import (
	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/types"
)

var scoreLogger = logger.GetForComponent("collateral_scorer")

// Fixed constants of the scoring and decision pipeline. These are protocol
// behavior, not tunables, so they live here instead of EngineParameters.
const (
	// safetyMarginBps is added on top of the ratio implied by the owner's
	// target LTV when deriving the target collateral ratio.
	safetyMarginBps uint64 = 500

	// noTargetBufferBps is the headroom added to the current ratio when the
	// owner has not set a target LTV.
	noTargetBufferBps uint64 = 200

	// raiseHeadroomBps: a position sitting more than this far above the
	// liquidation floor keeps its current ratio as the target rather than
	// being steered down to the derived one.
	raiseHeadroomBps uint64 = 1_000

	// ratioBonusCapBps caps the score bonus for exceeding the target ratio.
	ratioBonusCapBps uint64 = 2_000

	// ratioPenaltyCapBps caps the score penalty for falling short of it.
	ratioPenaltyCapBps uint64 = 3_000

	// proximityWindowBps is the band above the liquidation floor inside
	// which scores decay linearly to zero.
	proximityWindowBps uint64 = 1_000

	// discountPerVolPointBps is the haircut applied to an asset's last-good
	// price per point of volatility when evaluating candidates.
	discountPerVolPointBps uint64 = 100

	// minImprovementFloorBps is the absolute floor under every rebalance
	// threshold. A yield improvement under 0.2% never justifies a switch.
	minImprovementFloorBps uint64 = 20

	// adaptiveThresholdCapBps caps the scaled-up threshold applied when a
	// candidate is more volatile than the current asset.
	adaptiveThresholdCapBps uint64 = 1_000

	// maxYieldBps bounds the yield fed into the scoring formula. Anything
	// above 10,000% APY is treated as exactly the bound, which keeps every
	// intermediate product inside uint64.
	maxYieldBps uint64 = 1_000_000

	minRiskTolerance uint64 = 1
	maxRiskTolerance uint64 = 10

	minRebalanceThresholdBps uint64 = 50

	minTargetLTVBps uint64 = 5_000
	maxTargetLTVBps uint64 = 9_000
)

// ScoreCollateral rates one candidate allocation for one position.
//
// Inputs:
//   - yieldBps: the candidate asset's current yield in basis points.
//   - volatilityScore: the candidate's volatility classification (1-10).
//   - riskTolerance: the owner's risk appetite (1-10). Out-of-range values
//     are clamped, never rejected.
//   - yieldPriority: true selects the yield-seeking profile, false the
//     conservative one.
//   - resultingRatioBps: the collateral ratio the position would have after
//     switching into the candidate.
//   - targetRatioBps: the ratio the position is being steered toward.
//
// Output:
//   - The candidate's score. Higher is better; scores are only comparable
//     within a single selection pass. Zero means unscoreable or unsafe:
//     zero yield, zero volatility, a zero target, or a resulting ratio
//     below the liquidation floor all score zero.
func ScoreCollateral(yieldBps, volatilityScore, riskTolerance uint64, yieldPriority bool, resultingRatioBps, targetRatioBps uint64) uint64 {
	// Unscoreable inputs yield a zero score rather than an error; the
	// selector treats zero-scored candidates as never preferable.
	if yieldBps == 0 || volatilityScore == 0 || resultingRatioBps == 0 || targetRatioBps == 0 {
		return 0
	}
	if resultingRatioBps < types.MinCollateralRatioBps {
		return 0
	}

	if yieldBps > maxYieldBps {
		yieldBps = maxYieldBps
	}
	risk := clampRiskTolerance(riskTolerance)

	var score uint64
	if yieldPriority {
		score = yieldBps * risk / (11 - risk + volatilityScore)
	} else {
		score = yieldBps * (11 - risk) / (risk + volatilityScore)
	}

	score = applyRatioAdjustment(score, resultingRatioBps, targetRatioBps)
	score = applyProximityPenalty(score, resultingRatioBps)

	scoreLogger.Debug().
		Uint64("yieldBps", yieldBps).
		Uint64("volatility", volatilityScore).
		Uint64("riskTolerance", risk).
		Bool("yieldPriority", yieldPriority).
		Uint64("resultingRatioBps", resultingRatioBps).
		Uint64("targetRatioBps", targetRatioBps).
		Uint64("score", score).
		Msg("Scored candidate collateral")

	return score
}

// clampRiskTolerance forces the owner-supplied risk tolerance into [1, 10].
func clampRiskTolerance(riskTolerance uint64) uint64 {
	if riskTolerance < minRiskTolerance {
		return minRiskTolerance
	}
	if riskTolerance > maxRiskTolerance {
		return maxRiskTolerance
	}
	return riskTolerance
}

// applyRatioAdjustment rewards overshooting the target ratio and penalizes
// undershooting it. The bonus is proportional to the overshoot relative to
// the target and capped; the penalty mirrors it with its own cap. The caller
// guarantees resultingRatioBps is at or above the liquidation floor.
func applyRatioAdjustment(score, resultingRatioBps, targetRatioBps uint64) uint64 {
	if resultingRatioBps > targetRatioBps {
		diff := resultingRatioBps - targetRatioBps
		var bonus uint64
		if diff >= targetRatioBps {
			bonus = ratioBonusCapBps
		} else {
			bonus = ratioBonusCapBps * diff / targetRatioBps
		}
		return score * (types.RatioScale + bonus) / types.RatioScale
	}

	gap := targetRatioBps - resultingRatioBps
	penalty := ratioPenaltyCapBps * gap / targetRatioBps
	return score * (types.RatioScale - penalty) / types.RatioScale
}

// applyProximityPenalty decays the score linearly to zero as the resulting
// ratio approaches the liquidation floor. A ratio exactly at the floor
// scores zero no matter how attractive the yield is.
func applyProximityPenalty(score, resultingRatioBps uint64) uint64 {
	margin := resultingRatioBps - types.MinCollateralRatioBps
	if margin >= proximityWindowBps {
		return score
	}
	penaltyPercent := (proximityWindowBps - margin) / 10
	return score * (100 - penaltyPercent) / 100
}
