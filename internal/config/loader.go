// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinSessionSecretLength is the shortest accepted session secret in bytes.
const MinSessionSecretLength = 32

// Supported values of SCHEDULER_DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort      int
	DBDriver      string
	SQLiteDSN     string
	PostgresDSN   string
	SessionSecret string
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	// RedisAddr enables distributed booking locks when set.
	RedisAddr string
	LockTTL   time.Duration
	LogLevel  slog.Level
}

// Load parses configuration values from the current process environment.
// Each file in envFiles is loaded with godotenv first; variables already
// present in the environment win and missing files are skipped.
//
// Missing and invalid variables are collected and reported together.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}

	cfg := Config{
		DBDriver:      DriverSQLite,
		SessionTTL:    24 * time.Hour,
		ResetTokenTTL: 15 * time.Minute,
		LockTTL:       10 * time.Second,
		LogLevel:      slog.LevelInfo,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if portValue := env("SCHEDULER_HTTP_PORT"); portValue == "" {
		missing = append(missing, "SCHEDULER_HTTP_PORT")
	} else if port, err := strconv.Atoi(portValue); err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, "SCHEDULER_HTTP_PORT")
	} else {
		cfg.HTTPPort = port
	}

	if driver := strings.ToLower(env("SCHEDULER_DB_DRIVER")); driver != "" {
		cfg.DBDriver = driver
	}
	cfg.SQLiteDSN = env("SCHEDULER_SQLITE_DSN")
	cfg.PostgresDSN = env("SCHEDULER_POSTGRES_DSN")
	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.SQLiteDSN == "" {
			missing = append(missing, "SCHEDULER_SQLITE_DSN")
		}
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			missing = append(missing, "SCHEDULER_POSTGRES_DSN")
		}
	default:
		invalid = append(invalid, "SCHEDULER_DB_DRIVER")
	}

	if secret := env("SCHEDULER_SESSION_SECRET"); secret == "" {
		missing = append(missing, "SCHEDULER_SESSION_SECRET")
	} else if len(secret) < MinSessionSecretLength {
		invalid = append(invalid, "SCHEDULER_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SCHEDULER_SESSION_TTL", &cfg.SessionTTL},
		{"SCHEDULER_RESET_TOKEN_TTL", &cfg.ResetTokenTTL},
		{"SCHEDULER_LOCK_TTL", &cfg.LockTTL},
	}
	for _, d := range durations {
		value := env(d.key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, d.key)
			continue
		}
		*d.target = parsed
	}

	cfg.RedisAddr = env("SCHEDULER_REDIS_ADDR")

	if level := env("SCHEDULER_LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
