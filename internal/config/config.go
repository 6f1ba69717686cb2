// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `env:"ADDR" envDefault:":8080"`

	// DBPath is the SQLite database file; parent directories are
	// created on startup.
	DBPath string `env:"DB_PATH" envDefault:"./data/planora.db"`

	// JWTSecret signs session tokens. No default: the server refuses to
	// start without one.
	JWTSecret string `env:"JWT_SECRET,required"`

	// TokenTTL is how long session tokens stay valid.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// RedisAddr enables the Redis-backed pending-invite store. Empty
	// keeps slots in process memory.
	RedisAddr string `env:"REDIS_ADDR"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
