package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-protocol/aco/internal/telemetry"
)

func newTestServer() *WebServer {
	return NewWebServer("8080", telemetry.NewMetrics(prometheus.NewRegistry()).Handler())
}

func doRequest(t *testing.T, ws *WebServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rr, req)
	return rr
}

func TestMetricsEndpoint(t *testing.T) {
	rr := doRequest(t, newTestServer(), http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "aco_cycles_total")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestPutStrategyRejectsBadPayloads(t *testing.T) {
	owner := "0xA11ce00000000000000000000000000000000001"
	path := "/api/strategies/" + owner

	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{
			name:        "malformed json",
			body:        "{not json",
			wantMessage: "Invalid strategy payload",
		},
		{
			name:        "owner mismatch",
			body:        `{"owner":"0xB0b0000000000000000000000000000000000002","risk_tolerance":5,"permitted_assets":["WETH"],"rebalance_threshold_bps":100}`,
			wantMessage: "Owner in body does not match owner in path",
		},
		{
			name:        "risk tolerance out of range",
			body:        `{"risk_tolerance":11,"permitted_assets":["WETH"],"rebalance_threshold_bps":100}`,
			wantMessage: "risk tolerance 11 must be within",
		},
		{
			name:        "threshold below minimum",
			body:        `{"risk_tolerance":5,"permitted_assets":["WETH"],"rebalance_threshold_bps":10}`,
			wantMessage: "rebalance threshold 10 bps must be within",
		},
		{
			name:        "empty permitted assets",
			body:        `{"risk_tolerance":5,"permitted_assets":[],"rebalance_threshold_bps":100}`,
			wantMessage: "permitted assets list is empty",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, newTestServer(), http.MethodPut, path, tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantMessage)
		})
	}
}

func TestPutStrategyValidPayloadReachesStore(t *testing.T) {
	// No database behind the handler here, so a payload that clears
	// validation must surface as a storage failure rather than a 400.
	owner := "0xA11ce00000000000000000000000000000000001"
	body := `{"target_ltv_bps":8000,"risk_tolerance":5,"permitted_assets":["WETH","wstETH"],"yield_priority":true,"rebalance_threshold_bps":100,"enabled":true}`

	rr := doRequest(t, newTestServer(), http.MethodPut, "/api/strategies/"+owner, body)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to save strategy")
}

func TestCycleRouteRequiresNumericID(t *testing.T) {
	rr := doRequest(t, newTestServer(), http.MethodGet, "/api/cycles/abc", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLatestCycleRouteIsNotShadowed(t *testing.T) {
	// "latest" must reach its own handler, not the numeric-ID route. With
	// no database the handler reports a retrieval failure, which is enough
	// to prove the routing.
	rr := doRequest(t, newTestServer(), http.MethodGet, "/api/cycles/latest", "")

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to retrieve latest cycle")
}
