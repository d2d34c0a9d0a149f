package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/meridian-protocol/aco/internal/aco"
	"github.com/meridian-protocol/aco/internal/analyzer"
	"github.com/meridian-protocol/aco/internal/config"
	"github.com/meridian-protocol/aco/internal/logger"
	"github.com/meridian-protocol/aco/internal/market"
	"github.com/meridian-protocol/aco/internal/position"
	"github.com/meridian-protocol/aco/internal/state"
	"github.com/meridian-protocol/aco/internal/telemetry"
	"github.com/meridian-protocol/aco/internal/web"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_PARAMS_VERSION = 1
)

// main is the entry point for the ACO system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("ACO Core Logic Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Shutdown context: SIGINT/SIGTERM stop the loop and drain the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load Engine Parameters
	params, err := state.LoadActiveEngineParameters(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active engine parameters, using defaults and saving.")
		defaults := config.DefaultEngineParameters
		if _, err := state.SaveEngineParameters(ctx, defaults, DEFAULT_PARAMS_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default engine parameters.")
		}
		params = &defaults
	}
	log.Info().Msg("Engine parameters loaded successfully.")

	// Load the collateral asset registry and build the classifier from it
	registry, err := config.LoadAssetRegistry(config.AssetRegistryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load asset registry")
	}
	classifier, err := analyzer.NewVolatilityClassifier(registry.VolatilityScores(), registry.DefaultVolatility)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build volatility classifier")
	}
	log.Info().Int("assets", len(registry.Assets)).Str("baseAsset", registry.BaseAsset).Msg("Asset registry loaded")

	// --- Telemetry & Web Server ---
	metrics := telemetry.NewProductionMetrics()

	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, metrics.Handler())
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting ACO web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	// --- Market Data Plumbing ---
	redisClient := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", config.RedisAddr).Msg("Redis connection error")
	}
	defer redisClient.Close()
	log.Info().Str("addr", config.RedisAddr).Msg("Redis connected")

	priceCache, err := market.NewLastGoodCache(redisClient, time.Duration(params.PriceCacheTTLSeconds)*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize last-good price cache")
	}

	gateway, err := market.NewGatewayClient(config.GatewayURL, params.GatewayRateLimitPerSecond, params.GatewayBurst)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize gateway client")
	}

	marketService, err := market.NewService(market.ServiceConfig{
		Quotes:     gateway,
		Cache:      priceCache,
		Registry:   registry,
		Classifier: classifier,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market service")
	}

	// Cross-check the registry against what the gateway can actually quote.
	// A registry asset the gateway does not quote is not fatal, it just gets
	// dropped from every market view until the gateway lists it.
	if supported, err := gateway.SupportedAssets(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not fetch gateway asset list, skipping registry cross-check")
	} else {
		quotable := make(map[string]bool, len(supported))
		for _, symbol := range supported {
			quotable[strings.ToUpper(symbol)] = true
		}
		for _, symbol := range registry.Symbols() {
			if !quotable[strings.ToUpper(symbol)] {
				log.Warn().Str("asset", symbol).Msg("Registry asset is not quoted by the gateway")
			}
		}
	}

	positionClient, err := position.NewClient(config.GatewayURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize position client")
	}

	// --- 2. Executor Initialization (with Safety Switch) ---
	var executor position.SwapExecutor
	acoMode := os.Getenv("ACO_MODE")

	switch acoMode {
	case "live":
		log.Warn().Msg("Initializing ACO in LIVE mode. Swap intents will be submitted for execution.")
		executor = positionClient
	case "observe":
		log.Info().Msg("Initializing ACO in OBSERVE mode. Intents are journaled but never submitted.")
		executor = position.NoopExecutor{}
	default:
		log.Fatal().Msg("ACO_MODE must be set to 'live' or 'observe'. Halting to prevent accidental execution.")
	}

	// --- 3. Create ACO Instance with Dependency Injection ---
	log.Info().Msg("Creating ACO instance with dependency injection...")

	engine, err := aco.NewACO(aco.Config{
		Positions:  positionClient,
		Executor:   executor,
		Market:     marketService,
		Strategies: state.StrategyStore{},
		Journal:    state.Journal{},
		Metrics:    metrics,
		Params:     *params,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ACO instance")
	}

	log.Info().Msg("ACO instance created successfully")

	// --- 4. Start Main Loop ---
	interval := time.Duration(config.LoopIntervalMinutes) * time.Minute
	log.Info().Str("interval", interval.String()).Msg("Starting ACO main loop")

	engine.RunLoop(ctx, interval)

	// --- 5. Graceful Shutdown ---
	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	log.Info().Msg("ACO stopped.")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
