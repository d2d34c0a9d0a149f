package aco

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/position"
	"github.com/meridian-protocol/aco/internal/telemetry"
	"github.com/meridian-protocol/aco/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MarketSource builds the frozen market view every position in a cycle is
// evaluated against.
type MarketSource interface {
	BuildView(ctx context.Context) (types.MarketView, error)
}

// StrategyProvider lists the enabled owner strategies.
type StrategyProvider interface {
	ActiveStrategies(ctx context.Context) ([]types.Strategy, error)
}

// CycleJournal hands out persistent cycle numbers and stores cycle reports.
type CycleJournal interface {
	NextCycleNumber(ctx context.Context) (int, error)
	ActiveParametersID(ctx context.Context) (*int64, error)
	SaveReport(ctx context.Context, report types.CycleReport) (int64, error)
}

// ACO represents the Autonomous Collateral Optimizer with all its dependencies
type ACO struct {
	logger zerolog.Logger

	// Core dependencies
	positions  position.Source
	executor   position.SwapExecutor
	market     MarketSource
	strategies StrategyProvider
	journal    CycleJournal
	metrics    *telemetry.Metrics

	// Configuration
	params types.EngineParameters

	// Runtime state
	cycleCount int
}

// Config holds the configuration for creating a new ACO instance
type Config struct {
	Positions  position.Source
	Executor   position.SwapExecutor
	Market     MarketSource
	Strategies StrategyProvider
	Journal    CycleJournal
	Metrics    *telemetry.Metrics
	Params     types.EngineParameters
}

// NewACO creates a new ACO instance with dependency injection
func NewACO(cfg Config) (*ACO, error) {
	// Validate required dependencies
	if err := validateACOConfig(cfg); err != nil {
		return nil, fmt.Errorf("ACO configuration validation failed: %w", err)
	}

	engine := &ACO{
		logger:     logger.GetForComponent("aco_core"),
		positions:  cfg.Positions,
		executor:   cfg.Executor,
		market:     cfg.Market,
		strategies: cfg.Strategies,
		journal:    cfg.Journal,
		metrics:    cfg.Metrics,
		params:     cfg.Params,
		cycleCount: 0,
	}

	engine.logger.Info().
		Uint64("maxSlippageBps", engine.params.MaxSlippageBps).
		Uint64("maxPositionsPerCycle", engine.params.MaxPositionsPerCycle).
		Msg("ACO instance created successfully with dependency injection")

	return engine, nil
}

// validateACOConfig validates the ACO configuration
func validateACOConfig(cfg Config) error {
	if cfg.Positions == nil {
		return fmt.Errorf("position source cannot be nil")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("swap executor cannot be nil")
	}
	if cfg.Market == nil {
		return fmt.Errorf("market source cannot be nil")
	}
	if cfg.Strategies == nil {
		return fmt.Errorf("strategy provider cannot be nil")
	}
	if cfg.Journal == nil {
		return fmt.Errorf("cycle journal cannot be nil")
	}
	if cfg.Metrics == nil {
		return fmt.Errorf("metrics cannot be nil")
	}
	if err := cfg.Params.Validate(); err != nil {
		return fmt.Errorf("engine parameters are invalid: %w", err)
	}
	return nil
}

// RunLoop starts the main optimization loop with the specified interval
func (a *ACO) RunLoop(ctx context.Context, interval time.Duration) {
	a.logger.Info().
		Dur("interval", interval).
		Msg("Starting ACO main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	a.cycleCount++
	a.logger.Info().Int("cycle", a.cycleCount).Msg("Initiating optimization cycle")
	a.RunCycle(ctx)
	a.logger.Info().Int("cycle", a.cycleCount).Msg("Optimization cycle completed")

	// Continue with ticker
	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("ACO loop stopped due to context cancellation")
			return
		case <-ticker.C:
			a.cycleCount++
			a.logger.Info().Int("cycle", a.cycleCount).Msg("Initiating optimization cycle")
			a.RunCycle(ctx)
			a.logger.Info().Int("cycle", a.cycleCount).Msg("Optimization cycle completed")
		}
	}
}

// RunCycle executes a complete optimization cycle: one market view, every
// active position evaluated against it, one cycle report journaled.
func (a *ACO) RunCycle(ctx context.Context) {
	cycleStartTime := time.Now()

	// Generate unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := a.logger.With().Str("cycle_id", cycleID).Logger()

	cycleLogger.Info().Msg("--- Starting Optimization Cycle ---")

	report := types.CycleReport{
		CycleNumber: a.nextCycleNumber(ctx),
		Timestamp:   cycleStartTime,
		ParamsID:    a.activeParametersID(ctx),
		Outcomes:    make([]types.OptimizeOutcome, 0),
		IntentIDs:   make([]string, 0),
	}

	cycleLogger.Info().
		Int("cycleNumber", report.CycleNumber).
		Time("timestamp", cycleStartTime).
		Msg("Cycle report initialized")

	// --- Step 1: Market View ---
	cycleLogger.Info().Msg("Step 1: Building market view...")
	view, err := a.market.BuildView(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: Failed to build market view.")
		a.metrics.RecordCycleError()
		return
	}
	cycleLogger.Info().
		Int("assets", len(view.Assets)).
		Str("baseAsset", view.BaseAsset).
		Msg("Step 1: Market view complete.")

	// --- Step 2: Strategies ---
	cycleLogger.Info().Msg("Step 2: Loading enabled strategies...")
	strategies, err := a.strategies.ActiveStrategies(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: Failed to load strategies.")
		a.metrics.RecordCycleError()
		return
	}
	strategyByOwner := make(map[string]types.Strategy, len(strategies))
	for _, strategy := range strategies {
		strategyByOwner[strategy.Owner] = strategy
	}
	cycleLogger.Info().Int("strategies", len(strategyByOwner)).Msg("Step 2: Strategies loaded.")

	// --- Step 3: Positions ---
	cycleLogger.Info().Msg("Step 3: Fetching active positions...")
	snapshots, err := a.positions.ActivePositions(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: Failed to fetch positions.")
		a.metrics.RecordCycleError()
		return
	}
	if uint64(len(snapshots)) > a.params.MaxPositionsPerCycle {
		cycleLogger.Warn().
			Int("positions", len(snapshots)).
			Uint64("cap", a.params.MaxPositionsPerCycle).
			Msg("Position backlog exceeds per-cycle cap, excess positions wait for the next cycle")
		snapshots = snapshots[:a.params.MaxPositionsPerCycle]
	}
	cycleLogger.Info().Int("positions", len(snapshots)).Msg("Step 3: Positions fetched.")

	// --- Step 4: Per-Position Optimization ---
	cycleLogger.Info().Msg("Step 4: Optimizing positions...")
	for _, snapshot := range snapshots {
		var outcome types.OptimizeOutcome
		strategy, ok := strategyByOwner[snapshot.Owner]
		if !ok {
			outcome = noStrategyOutcome(snapshot)
			cycleLogger.Debug().
				Uint64("positionID", snapshot.ID).
				Str("owner", snapshot.Owner).
				Msg("Skipping position without an enabled strategy")
		} else {
			outcome = a.OptimizePosition(ctx, cycleLogger, snapshot, strategy, view)
		}

		report.Outcomes = append(report.Outcomes, outcome)
		report.PositionsProcessed++
		switch outcome.Action {
		case types.OutcomeSwitch:
			report.PositionsActed++
		case types.OutcomeGateRejected:
			report.GateRejections++
		default:
			report.PositionsSkipped++
		}
		if outcome.Intent != nil {
			report.IntentIDs = append(report.IntentIDs, outcome.Intent.IntentID)
		}
	}
	cycleLogger.Info().
		Int("processed", report.PositionsProcessed).
		Int("acted", report.PositionsActed).
		Int("skipped", report.PositionsSkipped).
		Int("gateRejections", report.GateRejections).
		Msg("Step 4: Optimization complete.")

	// --- Step 5: Journal & Metrics ---
	cycleLogger.Info().Msg("Step 5: Saving cycle report...")
	duration := time.Since(cycleStartTime)
	report.DurationMS = duration.Milliseconds()
	a.saveReport(ctx, report, cycleLogger)
	a.metrics.ObserveCycle(report, duration)

	cycleLogger.Info().Str("cycleDuration", duration.String()).Msg("Optimization Cycle Duration")
	cycleLogger.Info().Msg("--- Optimization Cycle Completed Successfully ---")
}

// nextCycleNumber increments and returns the persistent cycle counter
func (a *ACO) nextCycleNumber(ctx context.Context) int {
	cycleNumber, err := a.journal.NextCycleNumber(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to increment cycle number, using fallback")
		// Fallback to a timestamp-derived counter if the journal fails
		return int(time.Now().Unix() % 1000000)
	}
	return cycleNumber
}

// activeParametersID retrieves the current active engine parameters ID
func (a *ACO) activeParametersID(ctx context.Context) *int64 {
	paramsID, err := a.journal.ActiveParametersID(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to get active engine parameters ID")
		return nil
	}
	return paramsID
}

// saveReport journals the cycle report. A journaling failure is logged and
// swallowed so the loop keeps running.
func (a *ACO) saveReport(ctx context.Context, report types.CycleReport, cycleLogger zerolog.Logger) {
	reportID, err := a.journal.SaveReport(ctx, report)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save cycle report to database")
		return
	}
	cycleLogger.Info().Int64("report_id", reportID).Msg("Cycle report saved successfully")
}

// noStrategyOutcome records a position whose owner has no enabled strategy.
func noStrategyOutcome(snapshot types.PositionSnapshot) types.OptimizeOutcome {
	return types.OptimizeOutcome{
		PositionID:   snapshot.ID,
		Owner:        snapshot.Owner,
		Action:       types.OutcomeNoAction,
		CurrentAsset: snapshot.CollateralAsset,
		Reason:       "no enabled strategy for owner",
	}
}
