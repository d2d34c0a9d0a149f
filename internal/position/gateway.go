/*

This file contains the HTTP client for the collateral gateway's position and
executor endpoints. Reads are retried and every snapshot is validated and
cross-checked before the engine sees it. Swap submission is deliberately
single-shot: the executor endpoint is not idempotent, so a timed-out POST is
reported as an error and never resent.

*/

package position

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-protocol/aco/internal/analyzer"
	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/types"
	"github.com/meridian-protocol/aco/internal/utils"
)

var positionLogger = logger.GetForComponent("position_gateway")

var (
	ErrPositionNotFound     = errors.New("position not found")
	ErrInconsistentSnapshot = errors.New("snapshot ratio does not match value and debt")
	ErrExecutionRejected    = errors.New("executor rejected the swap intent")
	ErrInvalidReceipt       = errors.New("invalid execution receipt")
)

const (
	MAX_READ_RETRIES = 3
	TIMEOUT_SECONDS  = 30

	// RATIO_TOLERANCE_BPS bounds the rounding drift allowed between the
	// gateway-reported collateral ratio and the one derived from value and
	// debt. Anything larger means the snapshot is internally inconsistent.
	RATIO_TOLERANCE_BPS = 1
)

type positionsResponse struct {
	Positions []types.PositionSnapshot `json:"positions"`
}

// Client talks to the collateral gateway's position and executor endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client

	retryBaseDelay time.Duration
}

func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: TIMEOUT_SECONDS * time.Second},
		retryBaseDelay: time.Second,
	}, nil
}

// ActivePositions fetches every position currently enrolled for
// optimization. Snapshots that fail validation are dropped and logged, never
// returned: one corrupt position must not stall the rest of the cycle.
func (c *Client) ActivePositions(ctx context.Context) ([]types.PositionSnapshot, error) {
	var resp positionsResponse
	if err := c.getJSON(ctx, "/api/v1/positions/active", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch active positions: %w", err)
	}

	snapshots := make([]types.PositionSnapshot, 0, len(resp.Positions))
	for _, snapshot := range resp.Positions {
		if err := validateSnapshot(snapshot); err != nil {
			positionLogger.Warn().
				Err(err).
				Uint64("positionID", snapshot.ID).
				Str("owner", snapshot.Owner).
				Msg("Dropping invalid position snapshot")
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	positionLogger.Debug().
		Int("received", len(resp.Positions)).
		Int("valid", len(snapshots)).
		Msg("Fetched active positions")

	return snapshots, nil
}

// GetSnapshot fetches one position by ID.
func (c *Client) GetSnapshot(ctx context.Context, id uint64) (types.PositionSnapshot, error) {
	var snapshot types.PositionSnapshot
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/positions/%d", id), &snapshot); err != nil {
		return types.PositionSnapshot{}, fmt.Errorf("failed to fetch position %d: %w", id, err)
	}
	if err := validateSnapshot(snapshot); err != nil {
		return types.PositionSnapshot{}, fmt.Errorf("position %d: %w", id, err)
	}
	return snapshot, nil
}

// ExecuteSwap submits one swap intent to the protocol executor. The call is
// made exactly once. An executed receipt whose fill is below the intent's
// MinAmountOut is returned together with an error, because the executor has
// violated the one guarantee the engine relies on.
func (c *Client) ExecuteSwap(ctx context.Context, intent types.SwapIntent) (types.ExecutionReceipt, error) {
	if intent.IntentID == "" {
		return types.ExecutionReceipt{}, fmt.Errorf("%w: intent ID is empty", ErrExecutionRejected)
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return types.ExecutionReceipt{}, fmt.Errorf("failed to encode swap intent %s: %w", intent.IntentID, err)
	}

	url := c.baseURL + "/api/v1/executor/swaps"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.ExecutionReceipt{}, fmt.Errorf("failed to build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	positionLogger.Info().
		Str("intentID", intent.IntentID).
		Uint64("positionID", intent.PositionID).
		Str("fromAsset", intent.FromAsset).
		Str("toAsset", intent.ToAsset).
		Str("fromAmount", intent.FromAmount.String()).
		Str("minAmountOut", intent.MinAmountOut.String()).
		Msg("Submitting swap intent")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.ExecutionReceipt{}, fmt.Errorf("swap submission for intent %s failed: %w", intent.IntentID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ExecutionReceipt{}, fmt.Errorf("failed to read executor response for intent %s: %w", intent.IntentID, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		statusErr := fmt.Errorf("executor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return types.ExecutionReceipt{}, errors.Join(ErrExecutionRejected, statusErr)
		}
		return types.ExecutionReceipt{}, statusErr
	}

	var receipt types.ExecutionReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return types.ExecutionReceipt{}, fmt.Errorf("failed to parse execution receipt for intent %s: %w", intent.IntentID, err)
	}

	if receipt.IntentID != intent.IntentID {
		return types.ExecutionReceipt{}, fmt.Errorf("%w: receipt is for intent %q, submitted %q",
			ErrInvalidReceipt, receipt.IntentID, intent.IntentID)
	}

	if receipt.Executed {
		if receipt.AmountOut.IsNil() || receipt.AmountOut.LT(intent.MinAmountOut) {
			positionLogger.Error().
				Str("intentID", intent.IntentID).
				Str("minAmountOut", intent.MinAmountOut.String()).
				Str("amountOut", receipt.AmountOut.String()).
				Msg("Executor filled below the slippage guard")
			return receipt, fmt.Errorf("%w: fill %s is below minimum %s",
				ErrInvalidReceipt, receipt.AmountOut.String(), intent.MinAmountOut.String())
		}
		positionLogger.Info().
			Str("intentID", intent.IntentID).
			Str("txHash", receipt.TxHash).
			Str("amountOut", receipt.AmountOut.String()).
			Msg("Swap executed")
	}

	return receipt, nil
}

// validateSnapshot runs the pipeline's snapshot validation and then
// cross-checks the gateway-reported ratio against the derived one.
func validateSnapshot(snapshot types.PositionSnapshot) error {
	if err := analyzer.ValidatePositionSnapshot(snapshot); err != nil {
		return err
	}

	derived, err := utils.RatioBps(snapshot.CollateralValueUSD, snapshot.DebtUSD)
	if err != nil {
		return err
	}

	var drift uint64
	if derived > snapshot.RatioBps {
		drift = derived - snapshot.RatioBps
	} else {
		drift = snapshot.RatioBps - derived
	}
	if drift > RATIO_TOLERANCE_BPS {
		return fmt.Errorf("%w: reported %d bps, derived %d bps",
			ErrInconsistentSnapshot, snapshot.RatioBps, derived)
	}

	return nil
}

// getJSON performs a GET with retries. Client errors are terminal, with 404
// translated to ErrPositionNotFound so callers can branch on it.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= MAX_READ_RETRIES; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed on attempt %d: %w", attempt, err)
			positionLogger.Warn().
				Err(err).
				Str("url", url).
				Int("attempt", attempt).
				Msg("Gateway request failed, will retry if attempts remain")
			if attempt < MAX_READ_RETRIES {
				time.Sleep(time.Duration(attempt) * c.retryBaseDelay)
				continue
			}
			break
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body on attempt %d: %w", attempt, readErr)
			if attempt < MAX_READ_RETRIES {
				time.Sleep(time.Duration(attempt) * c.retryBaseDelay)
				continue
			}
			break
		}

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrPositionNotFound, path)
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("gateway returned status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return statusErr
			}
			lastErr = statusErr
			if attempt < MAX_READ_RETRIES {
				time.Sleep(time.Duration(attempt) * c.retryBaseDelay)
				continue
			}
			break
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = fmt.Errorf("failed to parse response for %s: %w", path, err)
			if attempt < MAX_READ_RETRIES {
				time.Sleep(time.Duration(attempt) * c.retryBaseDelay)
				continue
			}
			break
		}

		return nil
	}

	return fmt.Errorf("gateway request for %s failed after %d attempts: %w", path, MAX_READ_RETRIES, lastErr)
}
