package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultAppName       = "SangoPay"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultLockTTL       = 30 * time.Second
	defaultCommitTimeout = 10 * time.Second
	defaultSweepInterval = time.Minute
	defaultSweepGrace    = 5 * time.Minute
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration

	// LockTTL bounds how long a crashed holder can wedge an idempotency key;
	// it must exceed the worst-case commit duration.
	LockTTL time.Duration
	// CommitTimeout bounds the atomic commit; past it the attempt is treated
	// as an internal failure and left to reconciliation.
	CommitTimeout time.Duration
	SweepInterval time.Duration
	SweepGrace    time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		LockTTL:        defaultLockTTL,
		CommitTimeout:  defaultCommitTimeout,
		SweepInterval:  defaultSweepInterval,
		SweepGrace:     defaultSweepGrace,
	}

	for _, d := range []struct {
		env  string
		dest *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownPeriod},
		{"LOCK_TTL", &cfg.LockTTL},
		{"COMMIT_TIMEOUT", &cfg.CommitTimeout},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"SWEEP_GRACE", &cfg.SweepGrace},
	} {
		if v := os.Getenv(d.env); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", d.env, err)
			}
			*d.dest = parsed
		}
	}

	if cfg.LockTTL <= cfg.CommitTimeout {
		return Config{}, fmt.Errorf("LOCK_TTL (%s) must exceed COMMIT_TIMEOUT (%s)", cfg.LockTTL, cfg.CommitTimeout)
	}

	// Outside development the external collaborators are mandatory; dev mode
	// falls back to in-memory implementations.
	if !IsDev(cfg.AppEnv) {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
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

// IsDev reports whether the environment name denotes local development.
func IsDev(env string) bool {
	switch strings.ToLower(env) {
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
