package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/meridian-protocol/aco/internal/analyzer"
	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/state"
	"github.com/meridian-protocol/aco/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the engine's read API, strategy management, and the
// Prometheus metrics endpoint.
type WebServer struct {
	router  *mux.Router
	port    string
	metrics http.Handler
	server  *http.Server
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, metricsHandler http.Handler) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		metrics: metricsHandler,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health and metrics endpoints (direct routes)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.metrics != nil {
		ws.router.Handle("/metrics", ws.metrics).Methods("GET")
	}

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/strategies/{owner}", ws.handleGetStrategy).Methods("GET")
	api.HandleFunc("/strategies/{owner}", ws.handlePutStrategy).Methods("PUT")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id:[0-9]+}", ws.handleGetCycle).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the configured router.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server and blocks until it is shut down
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (ws *WebServer) Stop(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	webLogger.Info().Msg("Stopping web server")
	return ws.server.Shutdown(ctx)
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Get latest cycle information
	var cycleInfo map[string]interface{}
	latest, cycleErr := state.GetLatestCycle(r.Context())
	if cycleErr == nil {
		cycleInfo = map[string]interface{}{
			"current_cycle":       latest.CycleNumber,
			"last_cycle_time":     latest.Timestamp,
			"positions_processed": latest.PositionsProcessed,
			"positions_acted":     latest.PositionsActed,
			"gate_rejections":     latest.GateRejections,
			"intents_emitted":     len(latest.IntentIDs),
		}
	} else {
		cycleInfo = map[string]interface{}{
			"current_cycle":   0,
			"last_cycle_time": nil,
			"status":          "no cycles recorded yet",
		}
	}

	// Get database connection status
	dbHealthy := true
	if dbErr := state.TestDBConnection(); dbErr != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":           runtime.Version(),
			"goroutines_count":  runtime.NumGoroutine(),
			"total_alloc_bytes": memStats.TotalAlloc,
			"alloc_bytes":       memStats.Alloc,
			"sys_bytes":         memStats.Sys,
			"gc_cycles":         memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "aco-autonomous-collateral-optimizer",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"cycle_info":       cycleInfo,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetStrategies returns every stored strategy, enabled or not
func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := state.ListStrategies(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list strategies")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve strategies")
		return
	}

	response := map[string]interface{}{
		"strategies": strategies,
		"count":      len(strategies),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStrategy returns one owner's strategy
func (ws *WebServer) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	strategy, err := state.LoadStrategy(r.Context(), owner)
	if err != nil {
		if errors.Is(err, state.ErrStrategyNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No strategy for owner")
			return
		}
		webLogger.Error().Err(err).Str("owner", owner).Msg("Failed to load strategy")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve strategy")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, strategy)
}

// handlePutStrategy validates and upserts one owner's strategy. The owner in
// the path wins; a different owner in the body is rejected rather than
// silently overwritten.
func (ws *WebServer) handlePutStrategy(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	var strategy types.Strategy
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid strategy payload")
		return
	}
	if strategy.Owner != "" && strategy.Owner != owner {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Owner in body does not match owner in path")
		return
	}
	strategy.Owner = owner

	if err := analyzer.ValidateStrategy(strategy); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := state.SaveStrategy(r.Context(), strategy); err != nil {
		webLogger.Error().Err(err).Str("owner", owner).Msg("Failed to save strategy")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to save strategy")
		return
	}

	webLogger.Info().
		Str("owner", owner).
		Bool("enabled", strategy.Enabled).
		Msg("Strategy saved via API")

	ws.writeJSONResponse(w, http.StatusOK, strategy)
}

// handleGetCycles returns paginated cycle reports
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	cycles, err := state.GetRecentCycles(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCycle returns a specific cycle report by ID
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}

	cycle, err := state.GetCycleByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrCycleNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
			return
		}
		webLogger.Error().Err(err).Int64("cycleId", id).Msg("Failed to get cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycle")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle report
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := state.GetLatestCycle(r.Context())
	if err != nil {
		if errors.Is(err, state.ErrCycleNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
			return
		}
		webLogger.Error().Err(err).Msg("Failed to get latest cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest cycle")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetParameters returns the active engine parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	params, err := state.LoadActiveEngineParameters(r.Context())
	if err != nil {
		if errors.Is(err, state.ErrNoActiveParameters) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No active engine parameters")
			return
		}
		webLogger.Error().Err(err).Msg("Failed to get engine parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve engine parameters")
		return
	}

	response := map[string]interface{}{
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
