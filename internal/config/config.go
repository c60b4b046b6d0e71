package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "AgentCoin"
	defaultAppEnv           = "development"
	defaultPort             = "3141"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultDirectoryTimeout = 5 * time.Second
	defaultRateLimit        = 10
	defaultRateWindow       = time.Minute

	shutdownSecondsEnvVar = "SHUTDOWN_TIMEOUT_SECONDS"
	rateLimitEnvVar       = "RATE_LIMIT_PER_MINUTE"
	directoryTimeoutVar   = "DIRECTORY_TIMEOUT_SECONDS"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName          string
	AppEnv           string
	Port             string
	LogLevel         string
	DatabaseURL      string
	RedisURL         string
	DirectoryURL     string
	DirectoryTimeout time.Duration
	RateLimit        int64
	RateWindow       time.Duration
	ShutdownPeriod   time.Duration
	IdempotencyTTL   time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		DirectoryURL:     os.Getenv("AGENT_DIRECTORY_URL"),
		DirectoryTimeout: defaultDirectoryTimeout,
		RateLimit:        defaultRateLimit,
		RateWindow:       defaultRateWindow,
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv(directoryTimeoutVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", directoryTimeoutVar, err)
		}
		cfg.DirectoryTimeout = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv(rateLimitEnvVar); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", rateLimitEnvVar, err)
		}
		cfg.RateLimit = limit
	}

	if cfg.DatabaseURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.DirectoryURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("AGENT_DIRECTORY_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment, where the
// in-memory store and static resolver substitute for Postgres and the agent
// directory.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
