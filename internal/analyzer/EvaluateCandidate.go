/*

This file contains the candidate evaluator. Given a collateral asset and the
USD budget a position could redeploy, it derives the token amount the
position would hold and the collateral ratio that amount produces.

Pricing is deliberately pessimistic for everything except the base asset:
non-base assets are valued at their last-good price minus a volatility
haircut, so a candidate has to look good even under a conservative price
before it can win a selection.

*/

package analyzer

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/types"
	"github.com/meridian-protocol/aco/internal/utils"
)

var evaluatorLogger = logger.GetForComponent("candidate_evaluator")

// Error definitions for evaluation failures. Each precondition violation has
// its own error so callers can tell why a candidate was skipped.
var (
	ErrNonPositiveValue   = errors.New("collateral value must be positive")
	ErrNonPositiveDebt    = errors.New("debt must be positive")
	ErrTargetBelowMinimum = errors.New("target ratio is below the minimum collateral ratio")
	ErrUnknownAsset       = errors.New("asset is not present in the market view")
	ErrInvalidVolatility  = errors.New("asset volatility score is out of range")
	ErrStalePrice         = errors.New("no usable price for asset")
	ErrDerivedAmountZero  = errors.New("derived collateral amount is zero")
)

// EvaluateCandidate derives the allocation a position would hold if its
// collateral were switched into the given asset.
//
// Inputs:
//   - asset: the candidate collateral symbol.
//   - collateralValueUSD: the USD budget being redeployed (fixed-point, 18
//     decimals). In practice this is the current collateral's value.
//   - debtUSD: the position's debt (same fixed-point scale).
//   - targetRatioBps: the collateral ratio the position is steered toward.
//     Must be at or above the protocol's minimum collateral ratio.
//   - view: the cycle's frozen market view.
//
// Output:
//   - A CandidateAllocation whose RatioBps is always at least
//     targetRatioBps: when the budget-derived amount truncates to a ratio
//     below target, the amount is recomputed as the amount required to hit
//     the target exactly.
//   - An error naming the violated precondition; the candidate should then
//     be skipped, never treated as zero.
func EvaluateCandidate(asset string, collateralValueUSD, debtUSD sdkmath.Int, targetRatioBps uint64, view types.MarketView) (types.CandidateAllocation, error) {
	if collateralValueUSD.IsNil() || !collateralValueUSD.IsPositive() {
		return types.CandidateAllocation{}, fmt.Errorf("%s: %w", asset, ErrNonPositiveValue)
	}
	if debtUSD.IsNil() || !debtUSD.IsPositive() {
		return types.CandidateAllocation{}, fmt.Errorf("%s: %w", asset, ErrNonPositiveDebt)
	}
	if targetRatioBps < types.MinCollateralRatioBps {
		return types.CandidateAllocation{}, fmt.Errorf("%w: %d < %d", ErrTargetBelowMinimum, targetRatioBps, types.MinCollateralRatioBps)
	}

	data, ok := view.Assets[asset]
	if !ok {
		return types.CandidateAllocation{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if data.VolatilityScore < minVolatilityScore || data.VolatilityScore > maxVolatilityScore {
		return types.CandidateAllocation{}, fmt.Errorf("%w: %s has score %d", ErrInvalidVolatility, asset, data.VolatilityScore)
	}

	price, err := effectivePrice(asset, data, view)
	if err != nil {
		return types.CandidateAllocation{}, err
	}

	pow, err := utils.Pow10(data.Decimals)
	if err != nil {
		return types.CandidateAllocation{}, fmt.Errorf("%s: %w", asset, err)
	}

	// Amount the budget buys at the effective price, in base units.
	amount := collateralValueUSD.Mul(pow).Quo(price)

	var ratio uint64
	if amount.IsPositive() {
		held := amount.Mul(price).Quo(pow)
		ratio, err = utils.RatioBps(held, debtUSD)
		if err != nil {
			return types.CandidateAllocation{}, fmt.Errorf("%s: %w", asset, err)
		}
	}

	// Truncation can land the derived amount just under the target. The
	// reported allocation must never sit below target, so recompute the
	// amount as the amount required to reach it.
	if ratio < targetRatioBps {
		amount = debtUSD.MulRaw(int64(targetRatioBps)).QuoRaw(int64(types.RatioScale)).Mul(pow).Quo(price)
		if !amount.IsPositive() {
			return types.CandidateAllocation{}, fmt.Errorf("%w: %s", ErrDerivedAmountZero, asset)
		}
		ratio = targetRatioBps
	}

	valueHeld := amount.Mul(price).Quo(pow)

	candidate := types.CandidateAllocation{
		Asset:           asset,
		Amount:          amount,
		ValueUSD:        valueHeld,
		RatioBps:        ratio,
		YieldBps:        data.YieldBps,
		VolatilityScore: data.VolatilityScore,
	}

	evaluatorLogger.Debug().
		Str("asset", asset).
		Str("amount", amount.String()).
		Str("valueUSD", valueHeld.String()).
		Uint64("ratioBps", ratio).
		Uint64("targetRatioBps", targetRatioBps).
		Msg("Evaluated candidate allocation")

	return candidate, nil
}

// effectivePrice returns the price the evaluator values an asset at. The
// base asset trades at its live oracle quote; every other asset is valued at
// its last-good price discounted by 1% per volatility point.
func effectivePrice(asset string, data types.AssetMarketData, view types.MarketView) (sdkmath.Int, error) {
	if asset == view.BaseAsset {
		if view.BasePriceUSD.IsNil() || !view.BasePriceUSD.IsPositive() {
			return sdkmath.Int{}, fmt.Errorf("%w: base asset %s", ErrStalePrice, asset)
		}
		return view.BasePriceUSD, nil
	}

	if data.LastGoodPriceUSD.IsNil() || !data.LastGoodPriceUSD.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrStalePrice, asset)
	}

	discount := types.RatioScale - data.VolatilityScore*discountPerVolPointBps
	return data.LastGoodPriceUSD.MulRaw(int64(discount)).QuoRaw(int64(types.RatioScale)), nil
}
