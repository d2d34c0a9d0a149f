/*

This file contains the immutable market view built once per cycle. Every
position evaluated in a cycle reads the same view, which is what makes a
cycle's decisions reproducible.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// AssetMarketData is everything the evaluator needs to know about one
// collateral asset: token precision, its volatility classification, the
// current yield it pays, and the freshest usable USD price.
type AssetMarketData struct {
	Decimals        uint32 `json:"decimals"`
	VolatilityScore uint64 `json:"volatility_score"`
	YieldBps        uint64 `json:"yield_bps"`

	// LastGoodPriceUSD is the most recent price the market layer could
	// obtain, either a live oracle quote or the cached last-good value.
	// Fixed-point, 18 decimals, USD per whole token.
	LastGoodPriceUSD sdkmath.Int `json:"last_good_price_usd"`
}

// MarketView is the frozen market state for one optimization cycle. Assets
// without a usable price are absent from the map; the evaluator treats absent
// assets as unpriceable and skips them.
type MarketView struct {
	BaseAsset    string                     `json:"base_asset"`
	BasePriceUSD sdkmath.Int                `json:"base_price_usd"`
	Assets       map[string]AssetMarketData `json:"assets"`
	Timestamp    time.Time                  `json:"timestamp"`
}
