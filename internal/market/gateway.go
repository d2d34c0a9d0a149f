/*

This file contains the HTTP client for the collateral gateway's market-data
endpoints. Every request passes a shared rate limiter and a circuit breaker
before it reaches the wire, transient failures are retried with a linear
backoff, and every quote is validated before it is allowed to influence a
decision.

*/

package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/meridian-protocol/aco/internal/logger"
)

var gatewayLogger = logger.GetForComponent("market_gateway")

var (
	ErrGatewayUnavailable = errors.New("gateway circuit is open")
	ErrGatewayRejected    = errors.New("gateway rejected the request")
	ErrInvalidQuote       = errors.New("invalid quote received")
	ErrStaleQuote         = errors.New("quote is too old to act on")
)

const (
	MAX_RETRIES           = 3
	TIMEOUT_SECONDS       = 15
	MAX_QUOTE_AGE_SECONDS = 300 // Quotes older than 5 minutes are worthless for rebalancing
	BREAKER_FAILURES      = 5
)

type priceResponse struct {
	Asset     string    `json:"asset"`
	PriceUSD  string    `json:"price_usd"`
	UpdatedAt time.Time `json:"updated_at"`
}

type yieldResponse struct {
	Asset     string    `json:"asset"`
	YieldBps  uint64    `json:"yield_bps"`
	UpdatedAt time.Time `json:"updated_at"`
}

type assetsResponse struct {
	Assets []string `json:"assets"`
}

// GatewayClient talks to the collateral gateway's read-only market endpoints.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	// retryBaseDelay scales the backoff between attempts. Tests shrink it.
	retryBaseDelay time.Duration
}

// NewGatewayClient builds a gateway client.
//
// Inputs:
//   - baseURL: the gateway's base URL without a trailing slash.
//   - ratePerSecond and burst: the request budget this deployment is allowed
//     to spend against the gateway.
//
// Output:
//   - A ready client, or an error if any input is unusable.
func NewGatewayClient(baseURL string, ratePerSecond, burst uint64) (*GatewayClient, error) {
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if ratePerSecond == 0 {
		return nil, errors.New("gateway rate limit must be positive")
	}
	if burst == 0 {
		return nil, errors.New("gateway burst must be positive")
	}

	settings := gobreaker.Settings{
		Name:        "collateral-gateway",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
	}
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= BREAKER_FAILURES
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		gatewayLogger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Gateway circuit breaker changed state")
	}

	return &GatewayClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: TIMEOUT_SECONDS * time.Second},
		limiter:        rate.NewLimiter(rate.Limit(ratePerSecond), int(burst)),
		breaker:        gobreaker.NewCircuitBreaker(settings),
		retryBaseDelay: time.Second,
	}, nil
}

// SpotPrice fetches the live USD price of one asset, scaled to 18 decimals.
// A quote that is malformed, non-positive, or older than MAX_QUOTE_AGE_SECONDS
// is rejected rather than returned.
func (g *GatewayClient) SpotPrice(ctx context.Context, asset string) (sdkmath.Int, error) {
	asset = strings.TrimSpace(strings.ToUpper(asset))
	if asset == "" {
		return sdkmath.Int{}, fmt.Errorf("%w: empty asset symbol", ErrInvalidQuote)
	}

	var resp priceResponse
	if err := g.getJSON(ctx, "/api/v1/prices/"+asset, &resp); err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to fetch price for %s: %w", asset, err)
	}

	if !strings.EqualFold(resp.Asset, asset) {
		return sdkmath.Int{}, fmt.Errorf("%w: requested %s but response is for %q", ErrInvalidQuote, asset, resp.Asset)
	}

	price, ok := sdkmath.NewIntFromString(resp.PriceUSD)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: unparseable price %q for %s", ErrInvalidQuote, resp.PriceUSD, asset)
	}
	if !price.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: non-positive price %s for %s", ErrInvalidQuote, price.String(), asset)
	}

	if resp.UpdatedAt.IsZero() {
		return sdkmath.Int{}, fmt.Errorf("%w: missing timestamp for %s", ErrInvalidQuote, asset)
	}
	age := time.Since(resp.UpdatedAt)
	if age > MAX_QUOTE_AGE_SECONDS*time.Second {
		gatewayLogger.Warn().
			Str("asset", asset).
			Dur("age", age).
			Msg("Rejecting stale price quote")
		return sdkmath.Int{}, fmt.Errorf("%w: price for %s is %s old", ErrStaleQuote, asset, age.Round(time.Second))
	}

	gatewayLogger.Debug().
		Str("asset", asset).
		Str("priceUSD", price.String()).
		Time("updatedAt", resp.UpdatedAt).
		Msg("Fetched spot price")

	return price, nil
}

// YieldRate fetches the current supply yield of one asset in basis points.
func (g *GatewayClient) YieldRate(ctx context.Context, asset string) (uint64, error) {
	asset = strings.TrimSpace(strings.ToUpper(asset))
	if asset == "" {
		return 0, fmt.Errorf("%w: empty asset symbol", ErrInvalidQuote)
	}

	var resp yieldResponse
	if err := g.getJSON(ctx, "/api/v1/yields/"+asset, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch yield for %s: %w", asset, err)
	}

	if !strings.EqualFold(resp.Asset, asset) {
		return 0, fmt.Errorf("%w: requested %s but response is for %q", ErrInvalidQuote, asset, resp.Asset)
	}

	gatewayLogger.Debug().
		Str("asset", asset).
		Uint64("yieldBps", resp.YieldBps).
		Msg("Fetched yield rate")

	return resp.YieldBps, nil
}

// SupportedAssets fetches the symbols the gateway can currently quote.
func (g *GatewayClient) SupportedAssets(ctx context.Context) ([]string, error) {
	var resp assetsResponse
	if err := g.getJSON(ctx, "/api/v1/assets", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch supported assets: %w", err)
	}
	if len(resp.Assets) == 0 {
		return nil, fmt.Errorf("%w: gateway reports no supported assets", ErrInvalidQuote)
	}

	assets := make([]string, 0, len(resp.Assets))
	for _, asset := range resp.Assets {
		assets = append(assets, strings.TrimSpace(strings.ToUpper(asset)))
	}
	return assets, nil
}

// getJSON runs one rate-limited, breaker-guarded GET and decodes the body.
func (g *GatewayClient) getJSON(ctx context.Context, path string, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.fetchWithRetries(ctx, path, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrGatewayUnavailable, err)
	}
	return err
}

// fetchWithRetries performs the GET with up to MAX_RETRIES attempts. Client
// errors other than 429 are terminal immediately, since resending the same
// request cannot fix them.
func (g *GatewayClient) fetchWithRetries(ctx context.Context, path string, out any) error {
	url := g.baseURL + path

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed on attempt %d: %w", attempt, err)
			gatewayLogger.Warn().
				Err(err).
				Str("url", url).
				Int("attempt", attempt).
				Msg("Gateway request failed, will retry if attempts remain")
			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * g.retryBaseDelay)
				continue
			}
			break
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response body on attempt %d: %w", attempt, readErr)
			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * g.retryBaseDelay)
				continue
			}
			break
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("gateway returned status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return errors.Join(ErrGatewayRejected, statusErr)
			}
			lastErr = statusErr
			gatewayLogger.Warn().
				Str("url", url).
				Int("attempt", attempt).
				Int("statusCode", resp.StatusCode).
				Msg("Gateway returned retryable error status")
			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * g.retryBaseDelay)
				continue
			}
			break
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = fmt.Errorf("failed to parse response for %s: %w", path, err)
			if attempt < MAX_RETRIES {
				time.Sleep(time.Duration(attempt) * g.retryBaseDelay)
				continue
			}
			break
		}

		return nil
	}

	return fmt.Errorf("gateway request for %s failed after %d attempts: %w", path, MAX_RETRIES, lastErr)
}
