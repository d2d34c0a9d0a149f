/*

This file contains the fixed-point helpers shared by the analyzer and the
engine. All ratio math in the system is integer-only; these helpers are where
sdkmath.Int values get reduced to basis-point uint64s, with a single clamp
bound so degenerate positions cannot overflow downstream arithmetic.

*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-protocol/aco/internal/types"
)

var (
	ErrNilAmount        = errors.New("amount is nil")
	ErrNegativeAmount   = errors.New("amount is negative")
	ErrNonPositiveDebt  = errors.New("debt must be positive")
	ErrDecimalsTooLarge = errors.New("token decimals out of supported range")
)

// MaxRatioBps is the ceiling for any ratio expressed in basis points.
// 100,000,000 bps is a 10,000x collateralization; anything above it is
// indistinguishable from "effectively unlevered" and is clamped so ratios
// always fit comfortably in uint64 arithmetic.
const MaxRatioBps uint64 = 100_000_000

// maxTokenDecimals bounds Pow10. 24 covers every ERC-20 in the registry with
// headroom; a registry entry above this is a data error, not a real token.
const maxTokenDecimals uint32 = 24

// Pow10 returns 10^decimals as an sdkmath.Int.
func Pow10(decimals uint32) (sdkmath.Int, error) {
	if decimals > maxTokenDecimals {
		return sdkmath.Int{}, fmt.Errorf("%w: %d > %d", ErrDecimalsTooLarge, decimals, maxTokenDecimals)
	}
	return sdkmath.NewIntWithDecimal(1, int(decimals)), nil
}

// RatioBps computes valueUSD / debtUSD in basis points, truncating toward
// zero and clamping to MaxRatioBps. Both inputs must share the same
// fixed-point USD scale.
func RatioBps(valueUSD, debtUSD sdkmath.Int) (uint64, error) {
	if valueUSD.IsNil() {
		return 0, fmt.Errorf("value: %w", ErrNilAmount)
	}
	if valueUSD.IsNegative() {
		return 0, fmt.Errorf("value: %w", ErrNegativeAmount)
	}
	if debtUSD.IsNil() || !debtUSD.IsPositive() {
		return 0, ErrNonPositiveDebt
	}
	return BpsFromInt(valueUSD.MulRaw(int64(types.RatioScale)).Quo(debtUSD)), nil
}

// BpsFromInt reduces an sdkmath.Int that already represents basis points to a
// uint64, clamping negatives to zero and anything above MaxRatioBps to the
// ceiling.
func BpsFromInt(v sdkmath.Int) uint64 {
	if v.IsNil() || v.IsNegative() {
		return 0
	}
	if !v.IsUint64() {
		return MaxRatioBps
	}
	u := v.Uint64()
	if u > MaxRatioBps {
		return MaxRatioBps
	}
	return u
}
