package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/photogate/internal/flagx"
	"github.com/dmitrijs2005/photogate/internal/timex"
)

// JSONConfig is the on-disk shape of the optional config file. Durations use
// timex.Duration so both "1h" and integer nanoseconds are accepted. Fields
// left out of the file keep their previous values.
type JSONConfig struct {
	HTTPAddr                    *string         `json:"http_addr"`
	PublicBaseURL               *string         `json:"public_base_url"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	CredentialsKey              *string         `json:"credentials_key"`
	S3RootUser                  *string         `json:"s3_root_user"`
	S3RootPassword              *string         `json:"s3_root_password"`
	S3PublicBucket              *string         `json:"s3_public_bucket"`
	S3Region                    *string         `json:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint"`
	RedisAddr                   *string         `json:"redis_addr"`
	SetupPath                   *string         `json:"setup_path"`
	CORSOrigins                 *string         `json:"cors_origins"`
	LogLevel                    *string         `json:"log_level"`
	ReadTimeout                 *timex.Duration `json:"read_timeout"`
	WriteTimeout                *timex.Duration `json:"write_timeout"`
	RegistryLegacyWrites        *bool           `json:"registry_legacy_writes"`
}

// parseJSON overlays values from the file named by -c/-config. Without the
// flag nothing is loaded.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JSONConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.CredentialsKey, c.CredentialsKey)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3PublicBucket, c.S3PublicBucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SetupPath, c.SetupPath)
	setString(&config.CORSOrigins, c.CORSOrigins)
	setString(&config.LogLevel, c.LogLevel)
	setDuration(&config.ReadTimeout, c.ReadTimeout)
	setDuration(&config.WriteTimeout, c.WriteTimeout)
	if c.RegistryLegacyWrites != nil {
		config.RegistryLegacyWrites = *c.RegistryLegacyWrites
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
