package config

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// GatewayURL is the base URL of the Meridian protocol gateway, which
	// serves oracle prices, yield rates, position state and the executor.
	GatewayURL string

	// RedisAddr is the host:port of the Redis instance backing the
	// last-good price cache.
	RedisAddr string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	GatewayURL, err = getEnv("GATEWAY_URL")
	if err != nil {
		return err
	}
	GatewayURL = strings.TrimRight(GatewayURL, "/")

	RedisAddr, err = getEnv("REDIS_ADDR")
	if err != nil {
		return err
	}

	log.Debug().
		Str("GatewayURL", GatewayURL).
		Str("RedisAddr", RedisAddr).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
