/*

This file contains the market view builder. Once per cycle it assembles the
frozen MarketView every decision in that cycle shares: the base asset's live
price, and per-asset price, yield, precision, and volatility for the whole
registry. Degradation is per asset. A quote failure falls back to the cached
last-good price, a missing fallback drops the asset from the view, and a
yield failure prices the asset as yielding nothing. Only a missing base
price fails the whole build, because without it positions cannot be valued
at all.

*/

package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-protocol/aco/internal/analyzer"
	"github.com/meridian-protocol/aco/internal/config"
	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/types"
)

var marketLogger = logger.GetForComponent("market_service")

var ErrBasePriceUnavailable = errors.New("base asset price unavailable")

// QuoteProvider serves live market data. GatewayClient is the production
// implementation.
type QuoteProvider interface {
	SpotPrice(ctx context.Context, asset string) (sdkmath.Int, error)
	YieldRate(ctx context.Context, asset string) (uint64, error)
}

// PriceCache stores last-good prices for degraded cycles. LastGoodCache is
// the production implementation.
type PriceCache interface {
	Store(ctx context.Context, asset string, priceUSD sdkmath.Int) error
	Load(ctx context.Context, asset string) (sdkmath.Int, error)
}

// ServiceConfig carries the dependencies for NewService.
type ServiceConfig struct {
	Quotes     QuoteProvider
	Cache      PriceCache
	Registry   *config.AssetRegistry
	Classifier *analyzer.VolatilityClassifier
}

func (c ServiceConfig) validate() error {
	if c.Quotes == nil {
		return errors.New("quote provider is required")
	}
	if c.Cache == nil {
		return errors.New("price cache is required")
	}
	if c.Registry == nil {
		return errors.New("asset registry is required")
	}
	if c.Classifier == nil {
		return errors.New("volatility classifier is required")
	}
	return nil
}

// Service builds the per-cycle market view.
type Service struct {
	quotes     QuoteProvider
	cache      PriceCache
	registry   *config.AssetRegistry
	classifier *analyzer.VolatilityClassifier
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid market service config: %w", err)
	}
	return &Service{
		quotes:     cfg.Quotes,
		cache:      cfg.Cache,
		registry:   cfg.Registry,
		classifier: cfg.Classifier,
	}, nil
}

// BuildView assembles the market view for one cycle.
//
// Output:
//   - A MarketView containing every registry asset that could be priced,
//     live or from the last-good cache. Assets that could not be priced at
//     all are absent, which downstream code treats as unpriceable.
//   - ErrBasePriceUnavailable if neither a live nor a cached price exists
//     for the base asset.
func (s *Service) BuildView(ctx context.Context) (types.MarketView, error) {
	basePrice, err := s.resolvePrice(ctx, s.registry.BaseAsset)
	if err != nil {
		marketLogger.Error().
			Err(err).
			Str("baseAsset", s.registry.BaseAsset).
			Msg("Cannot build market view without a base price")
		return types.MarketView{}, fmt.Errorf("%w: %s", ErrBasePriceUnavailable, s.registry.BaseAsset)
	}

	view := types.MarketView{
		BaseAsset:    s.registry.BaseAsset,
		BasePriceUSD: basePrice,
		Assets:       make(map[string]types.AssetMarketData, len(s.registry.Assets)),
		Timestamp:    time.Now().UTC(),
	}

	skipped := 0
	for _, spec := range s.registry.Assets {
		price := basePrice
		if spec.Symbol != s.registry.BaseAsset {
			price, err = s.resolvePrice(ctx, spec.Symbol)
			if err != nil {
				skipped++
				marketLogger.Warn().
					Err(err).
					Str("asset", spec.Symbol).
					Msg("Dropping asset from market view: no usable price")
				continue
			}
		}

		yieldBps, yieldErr := s.quotes.YieldRate(ctx, spec.Symbol)
		if yieldErr != nil {
			// An asset with an unknown yield is still a valid holding, it
			// just cannot win a rebalance this cycle.
			yieldBps = 0
			marketLogger.Warn().
				Err(yieldErr).
				Str("asset", spec.Symbol).
				Msg("Yield unavailable, treating asset as zero-yield")
		}

		view.Assets[spec.Symbol] = types.AssetMarketData{
			Decimals:         spec.Decimals,
			VolatilityScore:  s.classifier.Score(spec.Symbol),
			YieldBps:         yieldBps,
			LastGoodPriceUSD: price,
		}
	}

	marketLogger.Info().
		Str("baseAsset", view.BaseAsset).
		Str("basePriceUSD", basePrice.String()).
		Int("assetsPriced", len(view.Assets)).
		Int("assetsSkipped", skipped).
		Msg("Market view assembled")

	return view, nil
}

// resolvePrice fetches a live price and refreshes the cache, falling back to
// the cached last-good price when the gateway cannot serve one.
func (s *Service) resolvePrice(ctx context.Context, asset string) (sdkmath.Int, error) {
	price, err := s.quotes.SpotPrice(ctx, asset)
	if err == nil {
		if storeErr := s.cache.Store(ctx, asset, price); storeErr != nil {
			marketLogger.Warn().
				Err(storeErr).
				Str("asset", asset).
				Msg("Failed to refresh last-good price cache")
		}
		return price, nil
	}

	marketLogger.Warn().
		Err(err).
		Str("asset", asset).
		Msg("Spot price unavailable, trying last-good cache")

	cached, cacheErr := s.cache.Load(ctx, asset)
	if cacheErr != nil {
		return sdkmath.Int{}, fmt.Errorf("no live or cached price for %s: %w", asset, errors.Join(err, cacheErr))
	}

	marketLogger.Info().
		Str("asset", asset).
		Str("priceUSD", cached.String()).
		Msg("Using cached last-good price")

	return cached, nil
}
