package main

import (
	"os"
)

// Environment variables read at startup.
const (
	envConfigFile = "REBOUND_CONF_FILE"
	envLogDir     = "REBOUND_LOG_DIR"
	envLogLevel   = "REBOUND_LOG_LEVEL"
	envLogFormat  = "REBOUND_LOG_FORMAT"
)

const defaultConfigPath = "configs/rebound.yaml"

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
