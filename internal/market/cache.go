/*

This file contains the Redis-backed last-good price cache. Whenever the
gateway serves a valid spot price it is written here, and when the gateway
degrades the engine falls back to the cached value with the volatility
discount doing the safety work. Entries expire so a long outage starves the
engine of prices instead of feeding it ancient ones.

*/

package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-protocol/aco/internal/logger"
)

var cacheLogger = logger.GetForComponent("price_cache")

var ErrNoLastGoodPrice = errors.New("no last-good price cached")

const lastGoodKeyPrefix = "aco:lastgood:"

// LastGoodCache stores the most recent valid price per asset.
type LastGoodCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLastGoodCache(client *redis.Client, ttl time.Duration) (*LastGoodCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		return nil, errors.New("cache TTL must be positive")
	}
	return &LastGoodCache{client: client, ttl: ttl}, nil
}

// Store records a valid price for an asset, overwriting any previous entry.
func (c *LastGoodCache) Store(ctx context.Context, asset string, priceUSD sdkmath.Int) error {
	asset = strings.TrimSpace(strings.ToUpper(asset))
	if asset == "" {
		return errors.New("asset symbol is required")
	}
	if priceUSD.IsNil() || !priceUSD.IsPositive() {
		return fmt.Errorf("refusing to cache non-positive price for %s", asset)
	}

	key := lastGoodKeyPrefix + asset
	if err := c.client.Set(ctx, key, priceUSD.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache price for %s: %w", asset, err)
	}

	cacheLogger.Debug().
		Str("asset", asset).
		Str("priceUSD", priceUSD.String()).
		Dur("ttl", c.ttl).
		Msg("Stored last-good price")

	return nil
}

// Load returns the cached price for an asset. A missing or expired entry
// returns ErrNoLastGoodPrice.
func (c *LastGoodCache) Load(ctx context.Context, asset string) (sdkmath.Int, error) {
	asset = strings.TrimSpace(strings.ToUpper(asset))
	if asset == "" {
		return sdkmath.Int{}, errors.New("asset symbol is required")
	}

	key := lastGoodKeyPrefix + asset
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrNoLastGoodPrice, asset)
	}
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to load cached price for %s: %w", asset, err)
	}

	price, ok := sdkmath.NewIntFromString(raw)
	if !ok || !price.IsPositive() {
		// A corrupt entry is as useless as a missing one, but it should
		// never happen and deserves a louder signal.
		cacheLogger.Error().
			Str("asset", asset).
			Str("raw", raw).
			Msg("Cached price is corrupt")
		return sdkmath.Int{}, fmt.Errorf("cached price for %s is corrupt: %q", asset, raw)
	}

	return price, nil
}
