package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LoopIntervalMinutes is how often the optimization loop runs.
	LoopIntervalMinutes uint64

	// AssetRegistryPath points at a YAML collateral registry. Empty means
	// the registry embedded in the binary is used.
	AssetRegistryPath string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Except where noted, all environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	LoopIntervalMinutes, err = getEnvAsUint64("ACO_LOOP_INTERVAL_MINUTES")
	if err != nil {
		return err
	}
	if LoopIntervalMinutes == 0 {
		return errors.New("ACO_LOOP_INTERVAL_MINUTES must be greater than zero")
	}

	// Optional: falls back to the embedded registry when unset.
	AssetRegistryPath = os.Getenv("ACO_ASSET_REGISTRY")

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Uint64("LoopIntervalMinutes", LoopIntervalMinutes).
		Str("AssetRegistryPath", AssetRegistryPath).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
