package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAssetRegistryEmbeddedDefault(t *testing.T) {
	registry, err := LoadAssetRegistry("")
	require.NoError(t, err)

	assert.Equal(t, "WETH", registry.BaseAsset)
	assert.Equal(t, uint64(7), registry.DefaultVolatility)
	assert.Len(t, registry.Assets, 5)

	wbtc, ok := registry.Lookup("WBTC")
	require.True(t, ok)
	assert.Equal(t, uint32(8), wbtc.Decimals)
	assert.Equal(t, uint64(5), wbtc.Volatility)

	wsteth, ok := registry.Lookup("wstETH")
	require.True(t, ok)
	assert.True(t, wsteth.StakingDerivative)
	assert.Equal(t, uint64(2), wsteth.Volatility)

	_, ok = registry.Lookup("DOGE")
	assert.False(t, ok)
}

func TestLoadAssetRegistryFromFile(t *testing.T) {
	raw := `
base_asset: WETH
default_volatility: 6
assets:
  - symbol: WETH
    address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    decimals: 18
    volatility: 3
  - symbol: ARB
    address: "0x912CE59144191C1204E64559FE8253a0e49E6548"
    decimals: 18
    volatility: 8
`
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	registry, err := LoadAssetRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"WETH", "ARB"}, registry.Symbols())
	assert.Equal(t, map[string]uint64{"WETH": 3, "ARB": 8}, registry.VolatilityScores())
}

func TestLoadAssetRegistryMissingFile(t *testing.T) {
	_, err := LoadAssetRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestAssetRegistryValidate(t *testing.T) {
	valid := func() AssetRegistry {
		return AssetRegistry{
			BaseAsset:         "WETH",
			DefaultVolatility: 7,
			Assets: []AssetSpec{
				{Symbol: "WETH", Decimals: 18, Volatility: 3},
				{Symbol: "WBTC", Decimals: 8, Volatility: 5},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*AssetRegistry)
		wantErr error
	}{
		{
			name:   "valid registry",
			mutate: func(r *AssetRegistry) {},
		},
		{
			name:    "no assets",
			mutate:  func(r *AssetRegistry) { r.Assets = nil },
			wantErr: ErrRegistryEmpty,
		},
		{
			name:    "base asset not listed",
			mutate:  func(r *AssetRegistry) { r.BaseAsset = "USDC" },
			wantErr: ErrRegistryBaseAsset,
		},
		{
			name:    "base asset empty",
			mutate:  func(r *AssetRegistry) { r.BaseAsset = "" },
			wantErr: ErrRegistryBaseAsset,
		},
		{
			name:    "duplicate symbol",
			mutate:  func(r *AssetRegistry) { r.Assets = append(r.Assets, AssetSpec{Symbol: "WETH", Decimals: 18, Volatility: 3}) },
			wantErr: ErrRegistryDuplicate,
		},
		{
			name:    "empty symbol",
			mutate:  func(r *AssetRegistry) { r.Assets[0].Symbol = "" },
			wantErr: ErrRegistrySymbol,
		},
		{
			name:    "volatility zero",
			mutate:  func(r *AssetRegistry) { r.Assets[1].Volatility = 0 },
			wantErr: ErrRegistryVolatility,
		},
		{
			name:    "volatility above ten",
			mutate:  func(r *AssetRegistry) { r.Assets[1].Volatility = 11 },
			wantErr: ErrRegistryVolatility,
		},
		{
			name:    "default volatility out of range",
			mutate:  func(r *AssetRegistry) { r.DefaultVolatility = 0 },
			wantErr: ErrRegistryVolatility,
		},
		{
			name:    "decimals too large",
			mutate:  func(r *AssetRegistry) { r.Assets[0].Decimals = 25 },
			wantErr: ErrRegistryDecimals,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := valid()
			tt.mutate(&registry)
			err := registry.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
