package server

import (
	"os"
	"strconv"
	"time"
)

// Defaults for Config
const (
	DefaultDatabaseURL     = "postgres://localhost:5432/taskdeck?sslmode=disable"
	DefaultJanitorSchedule = "@every 1h"
	DefaultSessionTTL      = 30 * 24 * time.Hour
	DefaultMagicLinkTTL    = 15 * time.Minute
)

// Config holds server settings
type Config struct {
	// DatabaseURL selects the driver: postgres:// or postgresql:// use
	// Postgres, anything else is a SQLite path (":memory:" for tests).
	DatabaseURL string

	// JanitorSchedule is a cron spec for purging expired sessions and magic
	// links. Empty disables the janitor.
	JanitorSchedule string

	SessionTTL   time.Duration
	MagicLinkTTL time.Duration

	// ExposeMagicTokens returns magic link tokens in the API response
	// instead of only logging them. For development without a mailer.
	ExposeMagicTokens bool
}

// ConfigFromEnv reads the server configuration from the environment
func ConfigFromEnv() Config {
	cfg := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JanitorSchedule: DefaultJanitorSchedule,
		SessionTTL:      DefaultSessionTTL,
		MagicLinkTTL:    DefaultMagicLinkTTL,
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDatabaseURL
	}
	if v, ok := os.LookupEnv("JANITOR_SCHEDULE"); ok {
		cfg.JanitorSchedule = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("MAGIC_LINK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MagicLinkTTL = d
		}
	}
	if v := os.Getenv("EXPOSE_MAGIC_TOKENS"); v != "" {
		cfg.ExposeMagicTokens, _ = strconv.ParseBool(v)
	}
	return cfg
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.MagicLinkTTL <= 0 {
		c.MagicLinkTTL = DefaultMagicLinkTTL
	}
	return c
}
