/*

This file contains the types produced by the analyzer pipeline: candidate
allocations from the evaluator, scored candidates from the selector, and the
rebalance decision. It also fixes the two protocol-level ratio constants the
whole system is built around.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

const (
	// RatioScale is the fixed-point scale for all ratio arithmetic.
	// 10,000 basis points == 100%.
	RatioScale uint64 = 10_000

	// MinCollateralRatioBps is the Meridian protocol's liquidation floor.
	// Positions whose collateral ratio falls below 110% are liquidatable,
	// so no candidate allocation at or below this line is ever acceptable.
	MinCollateralRatioBps uint64 = 11_000
)

// CandidateAllocation is the evaluator's answer to "what would this position
// hold if it switched to this asset". Amount is in the asset's base units,
// ValueUSD is the fixed-point USD value that amount is actually worth after
// integer truncation.
type CandidateAllocation struct {
	Asset           string      `json:"asset"`
	Amount          sdkmath.Int `json:"amount"`
	ValueUSD        sdkmath.Int `json:"value_usd"`
	RatioBps        uint64      `json:"ratio_bps"`
	YieldBps        uint64      `json:"yield_bps"`
	VolatilityScore uint64      `json:"volatility_score"`
}

// ScoredCandidate pairs a candidate allocation with its collateral score.
type ScoredCandidate struct {
	Candidate CandidateAllocation `json:"candidate"`
	Score     uint64              `json:"score"`
}

// SelectionResult is the selector's output for one position: the position's
// current holding scored as the baseline, the best alternative found, and the
// target ratio both were measured against.
type SelectionResult struct {
	Current           ScoredCandidate `json:"current"`
	Best              ScoredCandidate `json:"best"`
	TargetRatioBps    uint64          `json:"target_ratio_bps"`
	CandidatesTried   int             `json:"candidates_tried"`
	CandidatesSkipped int             `json:"candidates_skipped"`
}

// RebalanceDecision records whether a switch is worth making and the numbers
// that led there. ImprovementBps is the relative yield improvement of the
// candidate over the current asset; ThresholdBps is the volatility-adjusted
// threshold the improvement was compared against.
type RebalanceDecision struct {
	Rebalance      bool   `json:"rebalance"`
	ImprovementBps uint64 `json:"improvement_bps"`
	ThresholdBps   uint64 `json:"threshold_bps"`
	Reason         string `json:"reason"`
}
