// Package pgmigrate applies the Postgres schema with goose.
package pgmigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// Up applies every pending goose migration found at the root of fsys.
func Up(ctx context.Context, db *sql.DB, fsys fs.FS, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With(slog.String("component", "pgmigrate"))

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("pgmigrate: create provider: %w", err)
	}

	results, err := provider.Up(ctx)
	for _, result := range results {
		attrs := []any{
			slog.Int64("version", result.Source.Version),
			slog.String("file", result.Source.Path),
			slog.Duration("duration", result.Duration),
		}
		if result.Error != nil {
			logger.ErrorContext(ctx, "migration failed", append(attrs, slog.Any("error", result.Error))...)
			continue
		}
		logger.InfoContext(ctx, "migration applied", attrs...)
	}
	if err != nil {
		return fmt.Errorf("pgmigrate: up: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("pgmigrate: read version: %w", err)
	}
	logger.InfoContext(ctx, "database schema up to date", slog.Int64("version", version))
	return nil
}
