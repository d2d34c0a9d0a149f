package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/meridian-protocol/aco/internal/types"
)

var ErrCycleNotFound = errors.New("cycle report not found")

// SaveCycleReport writes one cycle's journal entry to the database.
func SaveCycleReport(ctx context.Context, report types.CycleReport) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	outcomesJSON, err := json.Marshal(report.Outcomes)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal outcomes: %w", err)
	}

	query := `
		INSERT INTO cycle_reports (
			cycle_number, report_timestamp, params_id,
			positions_processed, positions_acted, positions_skipped, gate_rejections,
			outcomes, intent_ids, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING report_id;
	`

	var reportID int64
	err = DB.QueryRowContext(ctx, query,
		report.CycleNumber, report.Timestamp, report.ParamsID,
		report.PositionsProcessed, report.PositionsActed, report.PositionsSkipped, report.GateRejections,
		outcomesJSON, pq.Array(report.IntentIDs), report.DurationMS,
	).Scan(&reportID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle report: %w", err)
	}

	log.Info().
		Int64("report_id", reportID).
		Int("cycle_number", report.CycleNumber).
		Int("positions_processed", report.PositionsProcessed).
		Int("positions_acted", report.PositionsActed).
		Msg("Cycle report saved to database")

	return reportID, nil
}

// GetRecentCycles retrieves recent cycle reports, newest first.
func GetRecentCycles(ctx context.Context, limit int) ([]types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT report_id, cycle_number, report_timestamp, params_id,
		       positions_processed, positions_acted, positions_skipped, gate_rejections,
		       outcomes, intent_ids, duration_ms
		FROM cycle_reports
		ORDER BY report_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.QueryContext(ctx, query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent cycles")
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	var reports []types.CycleReport
	for rows.Next() {
		report, err := scanCycleReport(rows.Scan)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle report row")
			continue // Skip this row and continue with others
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return reports, nil
}

// GetCycleByID retrieves a specific cycle report by its ID.
func GetCycleByID(ctx context.Context, reportID int64) (*types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT report_id, cycle_number, report_timestamp, params_id,
		       positions_processed, positions_acted, positions_skipped, gate_rejections,
		       outcomes, intent_ids, duration_ms
		FROM cycle_reports
		WHERE report_id = $1;
	`

	report, err := scanCycleReport(DB.QueryRowContext(ctx, query, reportID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %d", ErrCycleNotFound, reportID)
		}
		return nil, fmt.Errorf("failed to query cycle %d: %w", reportID, err)
	}

	return &report, nil
}

// GetLatestCycle retrieves the most recent cycle report.
func GetLatestCycle(ctx context.Context) (*types.CycleReport, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT report_id, cycle_number, report_timestamp, params_id,
		       positions_processed, positions_acted, positions_skipped, gate_rejections,
		       outcomes, intent_ids, duration_ms
		FROM cycle_reports
		ORDER BY report_timestamp DESC
		LIMIT 1;
	`

	report, err := scanCycleReport(DB.QueryRowContext(ctx, query).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: no cycles recorded yet", ErrCycleNotFound)
		}
		return nil, fmt.Errorf("failed to query latest cycle: %w", err)
	}

	return &report, nil
}

// scanCycleReport scans one cycle_reports row and unpacks its JSONB outcomes.
func scanCycleReport(scan func(dest ...any) error) (types.CycleReport, error) {
	var report types.CycleReport
	var outcomesJSON []byte

	err := scan(
		&report.ReportID, &report.CycleNumber, &report.Timestamp, &report.ParamsID,
		&report.PositionsProcessed, &report.PositionsActed, &report.PositionsSkipped, &report.GateRejections,
		&outcomesJSON, pq.Array(&report.IntentIDs), &report.DurationMS,
	)
	if err != nil {
		return types.CycleReport{}, err
	}

	if len(outcomesJSON) > 0 {
		if err := json.Unmarshal(outcomesJSON, &report.Outcomes); err != nil {
			return types.CycleReport{}, fmt.Errorf("failed to unmarshal outcomes for report %d: %w", report.ReportID, err)
		}
	}

	return report, nil
}

// Journal adapts the package-level persistence functions to the engine's
// CycleJournal interface.
type Journal struct{}

func (Journal) NextCycleNumber(ctx context.Context) (int, error) {
	return IncrementCycleNumber(ctx)
}

func (Journal) ActiveParametersID(ctx context.Context) (*int64, error) {
	return GetActiveEngineParametersID(ctx)
}

func (Journal) SaveReport(ctx context.Context, report types.CycleReport) (int64, error) {
	return SaveCycleReport(ctx, report)
}
