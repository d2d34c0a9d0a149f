/*

This file contains the volatility classifier. Classification is a lookup, not
a calculation: the scores come from the collateral registry, which encodes
what governance already knows about each asset. The classifier's job is to be
total over arbitrary symbols so the rest of the pipeline never has to handle
a missing score.

*/

package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meridian-protocol/aco/internal/logger"
)

var classifierLogger = logger.GetForComponent("volatility_classifier")

var ErrInvalidVolatilityScore = errors.New("volatility score must be between 1 and 10")

const (
	minVolatilityScore uint64 = 1
	maxVolatilityScore uint64 = 10
)

// VolatilityClassifier assigns every asset symbol a volatility score from 1
// (most stable) to 10 (most volatile). Symbols it has never seen get the
// fallback score, so Score is a total function.
type VolatilityClassifier struct {
	scores   map[string]uint64
	fallback uint64
}

// NewVolatilityClassifier builds a classifier from per-symbol scores,
// normally registry.VolatilityScores(), plus a fallback for unknown symbols.
//
// Inputs:
//   - scores: symbol to volatility score, each score in [1, 10].
//   - fallback: the score for symbols absent from the map, also in [1, 10].
//
// Output:
//   - A ready classifier, or an error naming the first out-of-range score.
func NewVolatilityClassifier(scores map[string]uint64, fallback uint64) (*VolatilityClassifier, error) {
	if fallback < minVolatilityScore || fallback > maxVolatilityScore {
		return nil, fmt.Errorf("%w: fallback score is %d", ErrInvalidVolatilityScore, fallback)
	}

	normalized := make(map[string]uint64, len(scores))
	for symbol, score := range scores {
		if score < minVolatilityScore || score > maxVolatilityScore {
			return nil, fmt.Errorf("%w: %s has score %d", ErrInvalidVolatilityScore, symbol, score)
		}
		normalized[strings.ToUpper(symbol)] = score
	}

	return &VolatilityClassifier{scores: normalized, fallback: fallback}, nil
}

// Score returns the volatility score for a symbol. Lookups are
// case-insensitive.
func (c *VolatilityClassifier) Score(symbol string) uint64 {
	if score, ok := c.scores[strings.ToUpper(symbol)]; ok {
		return score
	}
	classifierLogger.Debug().
		Str("asset", symbol).
		Uint64("fallbackScore", c.fallback).
		Msg("Asset not in registry, using fallback volatility score")
	return c.fallback
}
