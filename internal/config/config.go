// Package config reads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the gateway and the audit worker.
// Per-tenant settings (institution, capture page URL, form timeout) are not
// here; they travel inside each gateway request.
type Config struct {
	// Address is the HTTP listen address.
	Address string `envconfig:"GATEWAY_ADDRESS" default:":8080"`

	// SecretPath points at the file holding the raw binary web form MAC key.
	SecretPath string `envconfig:"WEBFORMMAC_SECRET" default:"/run/secrets/turnstile-audirectdebit-gw_webformmac_secret"`

	// MacAlgorithm names the MAC construction used for web form tokens.
	MacAlgorithm string `envconfig:"WEBFORMMAC_ALGORITHM" default:"HmacSHA256"`

	// AuthSecret verifies the HS256 service-to-service bearer tokens.
	AuthSecret string `envconfig:"GATEWAY_AUTH_SECRET" required:"true"`

	// RedisAddr is the task queue backend. Empty disables event production.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	// DatabaseURL is the audit store DSN; used by the worker only.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// WorkerConcurrency bounds parallel audit event handling.
	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"4"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load populates Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
