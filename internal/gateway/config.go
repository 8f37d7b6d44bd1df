package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// defaultWebFormTimeout bounds how long an issued capture form stays valid.
const defaultWebFormTimeout = 15 * time.Minute

// Config is the per-tenant gateway configuration carried inside each request.
// Unknown fields are ignored so tenants can share one document across gateway
// implementations.
type Config struct {
	// Institution is the Petal institution ID the captured account is keyed to.
	Institution int `json:"institution"`
	// TokenCaptureURL is the template for the self-hosted capture page;
	// supports the {gw} placeholder.
	TokenCaptureURL string `json:"tokenCaptureUrl"`
	// WebFormTimeoutSec overrides the form entry timeout, in seconds.
	WebFormTimeoutSec int `json:"webFormTimeoutSec,omitempty"`
}

// unmarshalConfig parses and validates the tenant configuration document.
// Required fields fail loudly here rather than surfacing later as a broken
// redirect or an unverifiable callback.
func unmarshalConfig(raw json.RawMessage) (Config, error) {
	if len(raw) == 0 {
		return Config{}, fmt.Errorf("%w: gateway config document missing", ErrInvalidRequest)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: malformed gateway config: %v", ErrInvalidRequest, err)
	}
	if cfg.Institution == 0 {
		return Config{}, fmt.Errorf("%w: gateway config is missing institution", ErrInvalidRequest)
	}
	if cfg.TokenCaptureURL == "" {
		return Config{}, fmt.Errorf("%w: gateway config is missing tokenCaptureUrl", ErrInvalidRequest)
	}
	return cfg, nil
}

// webFormTimeout returns the configured form timeout, falling back to the
// default when unset.
func (c Config) webFormTimeout() time.Duration {
	if c.WebFormTimeoutSec > 0 {
		return time.Duration(c.WebFormTimeoutSec) * time.Second
	}
	return defaultWebFormTimeout
}
