package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryScores() map[string]uint64 {
	return map[string]uint64{
		"WETH":   3,
		"wstETH": 2,
		"rETH":   3,
		"cbETH":  3,
		"WBTC":   5,
	}
}

func TestNewVolatilityClassifierValidation(t *testing.T) {
	tests := []struct {
		name     string
		scores   map[string]uint64
		fallback uint64
		wantErr  bool
	}{
		{name: "valid", scores: registryScores(), fallback: 7},
		{name: "empty scores is fine", scores: nil, fallback: 7},
		{name: "fallback zero", scores: registryScores(), fallback: 0, wantErr: true},
		{name: "fallback eleven", scores: registryScores(), fallback: 11, wantErr: true},
		{name: "score zero", scores: map[string]uint64{"BAD": 0}, fallback: 7, wantErr: true},
		{name: "score eleven", scores: map[string]uint64{"BAD": 11}, fallback: 7, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier, err := NewVolatilityClassifier(tt.scores, tt.fallback)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidVolatilityScore)
				assert.Nil(t, classifier)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, classifier)
		})
	}
}

func TestVolatilityClassifierScore(t *testing.T) {
	classifier, err := NewVolatilityClassifier(registryScores(), 7)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), classifier.Score("WETH"))
	assert.Equal(t, uint64(2), classifier.Score("wstETH"))
	assert.Equal(t, uint64(5), classifier.Score("WBTC"))

	// Lookups are case-insensitive.
	assert.Equal(t, uint64(3), classifier.Score("weth"))
	assert.Equal(t, uint64(2), classifier.Score("WSTETH"))

	// Unknown symbols get the fallback, never an error.
	assert.Equal(t, uint64(7), classifier.Score("PEPE"))
	assert.Equal(t, uint64(7), classifier.Score(""))
}
