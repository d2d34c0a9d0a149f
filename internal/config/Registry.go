/*

This file contains the collateral asset registry. The registry is the single
source of truth for which assets exist, their on-chain precision, and their
volatility classification. A deployment can point ACO_ASSET_REGISTRY at its
own YAML file; otherwise the registry embedded in the binary is used.

Keep the embedded registry up to date when Meridian governance lists or
delists collateral assets.

*/

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_registry.yaml
var defaultRegistryYAML []byte

var (
	ErrRegistryEmpty      = errors.New("asset registry has no assets")
	ErrRegistryBaseAsset  = errors.New("asset registry base asset is missing or not listed")
	ErrRegistryVolatility = errors.New("asset registry volatility score out of range")
	ErrRegistryDecimals   = errors.New("asset registry decimals out of range")
	ErrRegistryDuplicate  = errors.New("asset registry lists a symbol twice")
	ErrRegistrySymbol     = errors.New("asset registry entry has an empty symbol")
)

// AssetSpec describes one collateral asset accepted by the Meridian protocol.
type AssetSpec struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address"`

	// Decimals is the token's on-chain precision. Collateral amounts are
	// always expressed in these base units.
	Decimals uint32 `yaml:"decimals"`

	// Volatility is the asset's classification from 1 (most stable) to 10
	// (most volatile). It drives both the price discount applied to
	// candidates and the risk side of the scoring formula.
	Volatility uint64 `yaml:"volatility"`

	// StakingDerivative marks liquid staking tokens, which track their
	// underlying closely and therefore carry the lowest volatility scores.
	StakingDerivative bool `yaml:"staking_derivative,omitempty"`
}

// AssetRegistry is the full collateral universe for one deployment.
type AssetRegistry struct {
	// BaseAsset is the reference asset whose live oracle quote anchors the
	// market view. It must also appear in Assets.
	BaseAsset string `yaml:"base_asset"`

	// DefaultVolatility is assigned to any asset the classifier is asked
	// about that the registry does not list.
	DefaultVolatility uint64 `yaml:"default_volatility"`

	Assets []AssetSpec `yaml:"assets"`
}

// LoadAssetRegistry reads and validates a registry. An empty path selects
// the registry embedded in the binary.
func LoadAssetRegistry(path string) (*AssetRegistry, error) {
	raw := defaultRegistryYAML
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read asset registry %s: %w", path, err)
		}
	}

	var registry AssetRegistry
	if err := yaml.Unmarshal(raw, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse asset registry: %w", err)
	}

	if err := registry.Validate(); err != nil {
		return nil, err
	}

	return &registry, nil
}

// Validate checks the registry for internal consistency.
func (r *AssetRegistry) Validate() error {
	if len(r.Assets) == 0 {
		return ErrRegistryEmpty
	}
	if r.DefaultVolatility < 1 || r.DefaultVolatility > 10 {
		return fmt.Errorf("%w: default_volatility %d", ErrRegistryVolatility, r.DefaultVolatility)
	}

	seen := make(map[string]bool, len(r.Assets))
	for _, asset := range r.Assets {
		if asset.Symbol == "" {
			return ErrRegistrySymbol
		}
		if seen[asset.Symbol] {
			return fmt.Errorf("%w: %s", ErrRegistryDuplicate, asset.Symbol)
		}
		seen[asset.Symbol] = true

		if asset.Volatility < 1 || asset.Volatility > 10 {
			return fmt.Errorf("%w: %s has volatility %d", ErrRegistryVolatility, asset.Symbol, asset.Volatility)
		}
		if asset.Decimals > 24 {
			return fmt.Errorf("%w: %s has %d decimals", ErrRegistryDecimals, asset.Symbol, asset.Decimals)
		}
	}

	if r.BaseAsset == "" || !seen[r.BaseAsset] {
		return fmt.Errorf("%w: %q", ErrRegistryBaseAsset, r.BaseAsset)
	}

	return nil
}

// Lookup returns the spec for a symbol.
func (r *AssetRegistry) Lookup(symbol string) (AssetSpec, bool) {
	for _, asset := range r.Assets {
		if asset.Symbol == symbol {
			return asset, true
		}
	}
	return AssetSpec{}, false
}

// Symbols returns the registry's symbols in listing order.
func (r *AssetRegistry) Symbols() []string {
	symbols := make([]string, 0, len(r.Assets))
	for _, asset := range r.Assets {
		symbols = append(symbols, asset.Symbol)
	}
	return symbols
}

// VolatilityScores returns the per-symbol volatility map the classifier is
// built from.
func (r *AssetRegistry) VolatilityScores() map[string]uint64 {
	scores := make(map[string]uint64, len(r.Assets))
	for _, asset := range r.Assets {
		scores[asset.Symbol] = asset.Volatility
	}
	return scores
}
