// Package config loads the sync engine's settings from environment
// variables.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/KirkDiggler/roll-sync/internal/errors"
)

// Config holds everything the sync command needs to run
type Config struct {
	// GameLogURL is the WebSocket endpoint of the remote game log feed
	GameLogURL string `env:"ROLLSYNC_GAMELOG_URL"`

	// CampaignID scopes the feed subscription
	CampaignID string `env:"ROLLSYNC_CAMPAIGN_ID"`

	// Token is the short-lived credential for the handshake
	Token string `env:"ROLLSYNC_TOKEN"`

	// RedisAddress enables the Redis-backed roll cache; empty keeps the
	// in-memory cache
	RedisAddress string `env:"ROLLSYNC_REDIS_ADDRESS"`

	// ReconnectBase is the linear backoff unit between reconnect
	// attempts
	ReconnectBase time.Duration `env:"ROLLSYNC_RECONNECT_BASE" envDefault:"5s"`

	// MaxReconnects caps reconnect attempts before the session is
	// declared lost
	MaxReconnects int `env:"ROLLSYNC_MAX_RECONNECTS" envDefault:"10"`

	// GuardGrace is how long a handled roll stays protected from
	// re-delivery
	GuardGrace time.Duration `env:"ROLLSYNC_GUARD_GRACE" envDefault:"5s"`
}

// Load parses the environment and validates the result
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all required settings are present and sane
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateRequired("GameLogURL", c.GameLogURL, vb)
	errors.ValidateRequired("CampaignID", c.CampaignID, vb)
	errors.ValidateRequired("Token", c.Token, vb)

	if c.ReconnectBase <= 0 {
		vb.Fieldf("ReconnectBase", "must be positive, got %s", c.ReconnectBase)
	}
	if c.MaxReconnects <= 0 {
		vb.Fieldf("MaxReconnects", "must be positive, got %d", c.MaxReconnects)
	}
	if c.GuardGrace <= 0 {
		vb.Fieldf("GuardGrace", "must be positive, got %s", c.GuardGrace)
	}

	return vb.Build()
}
