/*

This file contains the per-cycle journal types. One CycleReport is written to
Postgres per optimization cycle and is the audit trail for every decision the
engine made in that cycle.

*/

package types

import (
	"time"
)

// OutcomeAction classifies what the engine did with one position.
type OutcomeAction string

const (
	// OutcomeNoAction means the position was evaluated and left alone.
	OutcomeNoAction OutcomeAction = "NO_ACTION"

	// OutcomeSwitch means a collateral switch intent was emitted.
	OutcomeSwitch OutcomeAction = "SWITCH"

	// OutcomeGateRejected means the position was too close to liquidation
	// for the engine to touch it.
	OutcomeGateRejected OutcomeAction = "GATE_REJECTED"
)

// OptimizeOutcome is the full record of one position's trip through the
// optimization pipeline.
type OptimizeOutcome struct {
	PositionID   uint64            `json:"position_id"`
	Owner        string            `json:"owner"`
	Action       OutcomeAction     `json:"action"`
	CurrentAsset string            `json:"current_asset"`
	BestAsset    string            `json:"best_asset,omitempty"`
	CurrentScore uint64            `json:"current_score"`
	BestScore    uint64            `json:"best_score"`
	Decision     RebalanceDecision `json:"decision"`
	Intent       *SwapIntent       `json:"intent,omitempty"`
	Receipt      *ExecutionReceipt `json:"receipt,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}

// CycleReport aggregates one optimization cycle for the journal and the web
// API. Outcomes holds the per-position detail; the counters are denormalized
// so they can be queried without unpacking the JSONB blob.
type CycleReport struct {
	ReportID           int64             `json:"report_id,omitempty"`
	CycleNumber        int               `json:"cycle_number"`
	Timestamp          time.Time         `json:"timestamp"`
	ParamsID           *int64            `json:"params_id,omitempty"`
	PositionsProcessed int               `json:"positions_processed"`
	PositionsActed     int               `json:"positions_acted"`
	PositionsSkipped   int               `json:"positions_skipped"`
	GateRejections     int               `json:"gate_rejections"`
	Outcomes           []OptimizeOutcome `json:"outcomes"`
	IntentIDs          []string          `json:"intent_ids"`
	DurationMS         int64             `json:"duration_ms"`
}
