// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// devSecret signs tokens when JWT_SECRET is unset outside production.
const devSecret = "homequest-dev-secret-change-me"

// Config holds all runtime settings.
type Config struct {
	Port     int
	AppEnv   string
	DBDriver string
	DBPath   string
	// DatabaseURL is the PostgreSQL DSN used when DBDriver is postgres.
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr     string
	RedisPassword string

	// Location interprets date-only filter bounds.
	Location *time.Location

	// RecordCreateHistory appends a CREATED history entry for new buyers.
	RecordCreateHistory bool
	MaxUploadBytes      int64

	LogLevel  string
	LogFormat string
}

// Production reports whether the server runs in production mode.
func (c *Config) Production() bool {
	return c.AppEnv == EnvProduction
}

// Load reads .env (if present) and then the process environment. Values
// already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
		return fallback
	}

	cfg := &Config{
		AppEnv:        strings.ToLower(get("APP_ENV", EnvDevelopment)),
		DBDriver:      strings.ToLower(get("DB_DRIVER", "sqlite")),
		DBPath:        get("DB_PATH", "./data/homequest.db"),
		DatabaseURL:   get("DATABASE_URL", ""),
		JWTSecret:     get("JWT_SECRET", ""),
		RedisAddr:     get("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD", ""),
		LogLevel:      get("LOG_LEVEL", "info"),
		LogFormat:     strings.ToLower(get("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(get("PORT", "8080")); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", getenv("PORT"))
	}
	if cfg.TokenTTL, err = time.ParseDuration(get("TOKEN_TTL", "24h")); err != nil || cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("invalid TOKEN_TTL %q", getenv("TOKEN_TTL"))
	}
	if cfg.RecordCreateHistory, err = strconv.ParseBool(get("RECORD_CREATE_HISTORY", "false")); err != nil {
		return nil, fmt.Errorf("invalid RECORD_CREATE_HISTORY %q", getenv("RECORD_CREATE_HISTORY"))
	}
	if cfg.MaxUploadBytes, err = strconv.ParseInt(get("MAX_UPLOAD_BYTES", "5242880"), 10, 64); err != nil || cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", getenv("MAX_UPLOAD_BYTES"))
	}

	cfg.Location = time.Local
	if tz := get("TIMEZONE", ""); tz != "" {
		if cfg.Location, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = devSecret
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}
