package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// parseEnv loads .env when present and overlays set environment variables.
// Unset variables leave the current values alone.
func parseEnv(config *Config) error {
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
