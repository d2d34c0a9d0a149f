package market

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-protocol/aco/internal/analyzer"
	"github.com/meridian-protocol/aco/internal/config"
)

type fakeQuotes struct {
	prices    map[string]sdkmath.Int
	yields    map[string]uint64
	priceErrs map[string]error
	yieldErrs map[string]error
}

func (f *fakeQuotes) SpotPrice(_ context.Context, asset string) (sdkmath.Int, error) {
	if err, ok := f.priceErrs[asset]; ok {
		return sdkmath.Int{}, err
	}
	price, ok := f.prices[asset]
	if !ok {
		return sdkmath.Int{}, errors.New("no price configured")
	}
	return price, nil
}

func (f *fakeQuotes) YieldRate(_ context.Context, asset string) (uint64, error) {
	if err, ok := f.yieldErrs[asset]; ok {
		return 0, err
	}
	return f.yields[asset], nil
}

type fakeCache struct {
	entries  map[string]sdkmath.Int
	stored   map[string]sdkmath.Int
	storeErr error
}

func (f *fakeCache) Store(_ context.Context, asset string, priceUSD sdkmath.Int) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	if f.stored == nil {
		f.stored = make(map[string]sdkmath.Int)
	}
	f.stored[asset] = priceUSD
	return nil
}

func (f *fakeCache) Load(_ context.Context, asset string) (sdkmath.Int, error) {
	price, ok := f.entries[asset]
	if !ok {
		return sdkmath.Int{}, ErrNoLastGoodPrice
	}
	return price, nil
}

func testRegistry(t *testing.T) *config.AssetRegistry {
	t.Helper()
	registry := &config.AssetRegistry{
		BaseAsset:         "WETH",
		DefaultVolatility: 7,
		Assets: []config.AssetSpec{
			{Symbol: "WETH", Decimals: 18, Volatility: 3},
			{Symbol: "wstETH", Decimals: 18, Volatility: 2, StakingDerivative: true},
			{Symbol: "WBTC", Decimals: 8, Volatility: 5},
		},
	}
	require.NoError(t, registry.Validate())
	return registry
}

func newTestService(t *testing.T, quotes *fakeQuotes, cache *fakeCache) *Service {
	t.Helper()
	registry := testRegistry(t)
	classifier, err := analyzer.NewVolatilityClassifier(registry.VolatilityScores(), registry.DefaultVolatility)
	require.NoError(t, err)

	service, err := NewService(ServiceConfig{
		Quotes:     quotes,
		Cache:      cache,
		Registry:   registry,
		Classifier: classifier,
	})
	require.NoError(t, err)
	return service
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)

	_, err = NewService(ServiceConfig{Quotes: &fakeQuotes{}, Cache: &fakeCache{}})
	require.Error(t, err)
}

func TestBuildView(t *testing.T) {
	quotes := &fakeQuotes{
		prices: map[string]sdkmath.Int{
			"WETH":   sdkmath.NewIntWithDecimal(2000, 18),
			"wstETH": sdkmath.NewIntWithDecimal(2400, 18),
			"WBTC":   sdkmath.NewIntWithDecimal(60000, 18),
		},
		yields: map[string]uint64{"WETH": 300, "wstETH": 450, "WBTC": 200},
	}
	cache := &fakeCache{}

	view, err := newTestService(t, quotes, cache).BuildView(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "WETH", view.BaseAsset)
	assert.Equal(t, sdkmath.NewIntWithDecimal(2000, 18), view.BasePriceUSD)
	assert.False(t, view.Timestamp.IsZero())
	require.Len(t, view.Assets, 3)

	wsteth := view.Assets["wstETH"]
	assert.Equal(t, uint32(18), wsteth.Decimals)
	assert.Equal(t, uint64(2), wsteth.VolatilityScore)
	assert.Equal(t, uint64(450), wsteth.YieldBps)
	assert.Equal(t, sdkmath.NewIntWithDecimal(2400, 18), wsteth.LastGoodPriceUSD)

	wbtc := view.Assets["WBTC"]
	assert.Equal(t, uint32(8), wbtc.Decimals)
	assert.Equal(t, uint64(5), wbtc.VolatilityScore)

	// Every successfully fetched price refreshes the last-good cache.
	assert.Len(t, cache.stored, 3)
	assert.Equal(t, sdkmath.NewIntWithDecimal(2400, 18), cache.stored["wstETH"])
}

func TestBuildViewFallsBackToCachedPrice(t *testing.T) {
	quotes := &fakeQuotes{
		prices:    map[string]sdkmath.Int{"WETH": sdkmath.NewIntWithDecimal(2000, 18), "WBTC": sdkmath.NewIntWithDecimal(60000, 18)},
		yields:    map[string]uint64{"WETH": 300, "wstETH": 450, "WBTC": 200},
		priceErrs: map[string]error{"wstETH": errors.New("gateway timeout")},
	}
	cache := &fakeCache{
		entries: map[string]sdkmath.Int{"wstETH": sdkmath.NewIntWithDecimal(2390, 18)},
	}

	view, err := newTestService(t, quotes, cache).BuildView(context.Background())
	require.NoError(t, err)

	require.Contains(t, view.Assets, "wstETH")
	assert.Equal(t, sdkmath.NewIntWithDecimal(2390, 18), view.Assets["wstETH"].LastGoodPriceUSD)
}

func TestBuildViewDropsUnpriceableAsset(t *testing.T) {
	quotes := &fakeQuotes{
		prices:    map[string]sdkmath.Int{"WETH": sdkmath.NewIntWithDecimal(2000, 18), "WBTC": sdkmath.NewIntWithDecimal(60000, 18)},
		yields:    map[string]uint64{"WETH": 300, "WBTC": 200},
		priceErrs: map[string]error{"wstETH": errors.New("gateway timeout")},
	}
	cache := &fakeCache{}

	view, err := newTestService(t, quotes, cache).BuildView(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, view.Assets, "wstETH")
	assert.Contains(t, view.Assets, "WETH")
	assert.Contains(t, view.Assets, "WBTC")
}

func TestBuildViewTreatsYieldFailureAsZero(t *testing.T) {
	quotes := &fakeQuotes{
		prices: map[string]sdkmath.Int{
			"WETH":   sdkmath.NewIntWithDecimal(2000, 18),
			"wstETH": sdkmath.NewIntWithDecimal(2400, 18),
			"WBTC":   sdkmath.NewIntWithDecimal(60000, 18),
		},
		yields:    map[string]uint64{"WETH": 300, "WBTC": 200},
		yieldErrs: map[string]error{"wstETH": errors.New("yield feed down")},
	}

	view, err := newTestService(t, quotes, &fakeCache{}).BuildView(context.Background())
	require.NoError(t, err)

	require.Contains(t, view.Assets, "wstETH")
	assert.Equal(t, uint64(0), view.Assets["wstETH"].YieldBps)
}

func TestBuildViewRequiresBasePrice(t *testing.T) {
	quotes := &fakeQuotes{
		priceErrs: map[string]error{"WETH": errors.New("gateway down")},
	}

	_, err := newTestService(t, quotes, &fakeCache{}).BuildView(context.Background())
	require.ErrorIs(t, err, ErrBasePriceUnavailable)
}

func TestBuildViewBasePriceFallsBackToCache(t *testing.T) {
	quotes := &fakeQuotes{
		prices:    map[string]sdkmath.Int{"wstETH": sdkmath.NewIntWithDecimal(2400, 18), "WBTC": sdkmath.NewIntWithDecimal(60000, 18)},
		yields:    map[string]uint64{"WETH": 300, "wstETH": 450, "WBTC": 200},
		priceErrs: map[string]error{"WETH": errors.New("gateway down")},
	}
	cache := &fakeCache{
		entries: map[string]sdkmath.Int{"WETH": sdkmath.NewIntWithDecimal(1990, 18)},
	}

	view, err := newTestService(t, quotes, cache).BuildView(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewIntWithDecimal(1990, 18), view.BasePriceUSD)
	assert.Equal(t, sdkmath.NewIntWithDecimal(1990, 18), view.Assets["WETH"].LastGoodPriceUSD)
}

func TestBuildViewSurvivesCacheStoreFailure(t *testing.T) {
	quotes := &fakeQuotes{
		prices: map[string]sdkmath.Int{
			"WETH":   sdkmath.NewIntWithDecimal(2000, 18),
			"wstETH": sdkmath.NewIntWithDecimal(2400, 18),
			"WBTC":   sdkmath.NewIntWithDecimal(60000, 18),
		},
		yields: map[string]uint64{"WETH": 300, "wstETH": 450, "WBTC": 200},
	}
	cache := &fakeCache{storeErr: errors.New("redis down")}

	view, err := newTestService(t, quotes, cache).BuildView(context.Background())
	require.NoError(t, err)
	assert.Len(t, view.Assets, 3)
}
