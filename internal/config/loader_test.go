package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var allKeys = []string{
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_DB_DRIVER",
	"SCHEDULER_SQLITE_DSN",
	"SCHEDULER_POSTGRES_DSN",
	"SCHEDULER_SESSION_SECRET",
	"SCHEDULER_SESSION_TTL",
	"SCHEDULER_RESET_TOKEN_TTL",
	"SCHEDULER_REDIS_ADDR",
	"SCHEDULER_LOCK_TTL",
	"SCHEDULER_LOG_LEVEL",
}

// clearEnv empties every variable; t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults for optional variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "8080")
		t.Setenv("SCHEDULER_SQLITE_DSN", "booking.db")
		t.Setenv("SCHEDULER_SESSION_SECRET", testSecret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.DBDriver != DriverSQLite || cfg.SQLiteDSN != "booking.db" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.SessionTTL != 24*time.Hour || cfg.ResetTokenTTL != 15*time.Minute || cfg.LockTTL != 10*time.Second {
			t.Fatalf("unexpected durations: %+v", cfg)
		}
		if cfg.LogLevel != slog.LevelInfo || cfg.RedisAddr != "" {
			t.Fatalf("unexpected optional values: %+v", cfg)
		}
	})

	t.Run("reports every missing variable", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatal("expected error when required values are missing")
		}
		expected := "required environment variables are not set: SCHEDULER_HTTP_PORT, SCHEDULER_SQLITE_DSN, SCHEDULER_SESSION_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("postgres driver requires its DSN", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "8080")
		t.Setenv("SCHEDULER_DB_DRIVER", "postgres")
		t.Setenv("SCHEDULER_SESSION_SECRET", testSecret)

		_, err := Load()
		if err == nil || err.Error() != "required environment variables are not set: SCHEDULER_POSTGRES_DSN" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("reports invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "eighty")
		t.Setenv("SCHEDULER_SQLITE_DSN", "booking.db")
		t.Setenv("SCHEDULER_SESSION_SECRET", "short")
		t.Setenv("SCHEDULER_LOCK_TTL", "-1s")
		t.Setenv("SCHEDULER_LOG_LEVEL", "chatty")

		_, err := Load()
		expected := "environment variables have invalid values: SCHEDULER_HTTP_PORT, SCHEDULER_SESSION_SECRET, SCHEDULER_LOCK_TTL, SCHEDULER_LOG_LEVEL"
		if err == nil || err.Error() != expected {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("parses durations and optional fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_DB_DRIVER", "Postgres")
		t.Setenv("SCHEDULER_POSTGRES_DSN", "postgres://booking@localhost/booking")
		t.Setenv("SCHEDULER_SESSION_SECRET", testSecret)
		t.Setenv("SCHEDULER_SESSION_TTL", "2h")
		t.Setenv("SCHEDULER_RESET_TOKEN_TTL", "30m")
		t.Setenv("SCHEDULER_REDIS_ADDR", "localhost:6379")
		t.Setenv("SCHEDULER_LOCK_TTL", "5s")
		t.Setenv("SCHEDULER_LOG_LEVEL", "debug")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.DBDriver != DriverPostgres || cfg.PostgresDSN != "postgres://booking@localhost/booking" {
			t.Fatalf("unexpected storage config: %+v", cfg)
		}
		if cfg.SessionTTL != 2*time.Hour || cfg.ResetTokenTTL != 30*time.Minute || cfg.LockTTL != 5*time.Second {
			t.Fatalf("unexpected durations: %+v", cfg)
		}
		if cfg.RedisAddr != "localhost:6379" || cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("unexpected optional values: %+v", cfg)
		}
	})

	t.Run("loads a dotenv file without overriding the environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "7070")

		path := filepath.Join(t.TempDir(), ".env")
		content := "SCHEDULER_HTTP_PORT=6060\nSCHEDULER_SQLITE_DSN=from-dotenv.db\nSCHEDULER_SESSION_SECRET=" + testSecret + "\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}
		t.Cleanup(func() {
			_ = os.Unsetenv("SCHEDULER_SQLITE_DSN")
			_ = os.Unsetenv("SCHEDULER_SESSION_SECRET")
		})

		cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7070 || cfg.SQLiteDSN != "from-dotenv.db" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})
}
