package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// SQLiteConfig describes how the booking database file is opened. PRAGMAs
// travel in the DSN so every pooled connection receives them.
type SQLiteConfig struct {
	// DSN is a file path or ":memory:". It must not carry query parameters.
	DSN string

	BusyTimeout       time.Duration
	EnableForeignKeys bool
	JournalMode       string
	Synchronous       string
	// CacheSize follows SQLite: positive values are pages, negative values KiB.
	CacheSize int

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var (
	journalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	syncModes    = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
)

// Validate reports every problem with the configuration at once.
func (c SQLiteConfig) Validate() error {
	var errs []error
	switch {
	case c.DSN == "":
		errs = append(errs, errors.New("DSN cannot be empty"))
	case strings.Contains(c.DSN, "?"):
		errs = append(errs, errors.New("DSN must be a plain path; PRAGMAs are set through SQLiteConfig"))
	}
	if c.BusyTimeout < 0 {
		errs = append(errs, errors.New("BusyTimeout cannot be negative"))
	}
	if c.JournalMode != "" && !slices.Contains(journalModes, c.JournalMode) {
		errs = append(errs, fmt.Errorf("invalid journal mode %q", c.JournalMode))
	}
	if c.Synchronous != "" && !slices.Contains(syncModes, c.Synchronous) {
		errs = append(errs, fmt.Errorf("invalid synchronous mode %q", c.Synchronous))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		errs = append(errs, errors.New("pool limits cannot be negative"))
	}
	return errors.Join(errs...)
}

// ConnectionString renders the DSN understood by modernc.org/sqlite, with one
// _pragma parameter per configured PRAGMA.
func (c SQLiteConfig) ConnectionString() string {
	params := url.Values{}
	pragma := func(format string, args ...any) { params.Add("_pragma", fmt.Sprintf(format, args...)) }
	if c.BusyTimeout > 0 {
		pragma("busy_timeout(%d)", c.BusyTimeout.Milliseconds())
	}
	if c.EnableForeignKeys {
		pragma("foreign_keys(1)")
	}
	if c.JournalMode != "" {
		pragma("journal_mode(%s)", c.JournalMode)
	}
	if c.Synchronous != "" {
		pragma("synchronous(%s)", c.Synchronous)
	}
	if c.CacheSize != 0 {
		pragma("cache_size(%d)", c.CacheSize)
	}

	base := c.DSN
	switch {
	case base == ":memory:":
		base = "file::memory:"
	case !strings.HasPrefix(base, "file:"):
		base = "file:" + base
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}

// Open validates cfg, creates the parent directory of a file database and
// returns a pinged pool.
func Open(ctx context.Context, cfg SQLiteConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}
	if cfg.DSN != ":memory:" {
		dir := filepath.Dir(strings.TrimPrefix(cfg.DSN, "file:"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open SQLite database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping SQLite database: %w", err)
	}
	return db, nil
}

// DefaultSQLiteConfig is used by the server for a file database.
func DefaultSQLiteConfig(databasePath string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               databasePath,
		BusyTimeout:       30 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		CacheSize:         -2000,
		MaxOpenConns:      25,
		MaxIdleConns:      5,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// InMemoryTestSQLiteConfig holds a single connection, since each connection
// to :memory: would see its own empty database.
func InMemoryTestSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		DSN:               ":memory:",
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}

// TempFileTestSQLiteConfig suits tests that need several connections to one database.
func TempFileTestSQLiteConfig(tempFilePath string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               tempFilePath,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "OFF",
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   time.Minute,
	}
}
