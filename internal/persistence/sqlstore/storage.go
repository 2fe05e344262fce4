// Package sqlstore implements the persistence repositories on database/sql
// for SQLite (modernc.org/sqlite) and Postgres (pgx).
package sqlstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/persistence/sqlstore/migration"
	"github.com/example/event-booking/internal/persistence/sqlstore/pgmigrate"
)

// Config selects and configures the backing database.
type Config struct {
	Dialect  Dialect
	SQLite   migration.SQLiteConfig
	Postgres PostgresConfig
	Logger   *slog.Logger
}

// Storage bundles every repository over one connection pool.
type Storage struct {
	*UserRepository
	*SessionRepository
	*RoomRepository
	*EmployeeRepository
	*LookupRepository
	*EventRepository
	*BookingRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.UserRepository     = (*Storage)(nil)
	_ persistence.SessionRepository  = (*Storage)(nil)
	_ persistence.RoomRepository     = (*Storage)(nil)
	_ persistence.EmployeeRepository = (*Storage)(nil)
	_ persistence.LookupRepository   = (*Storage)(nil)
	_ persistence.EventRepository    = (*Storage)(nil)
	_ persistence.BookingRepository  = (*Storage)(nil)
)

// Open connects to the configured database. Call Migrate before use.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	var (
		pool *ConnectionPool
		err  error
	)
	switch cfg.Dialect {
	case DialectSQLite, "":
		pool, err = NewConnectionPool(ctx, cfg.SQLite)
	case DialectPostgres:
		pool, err = NewPostgresConnectionPool(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, err
	}
	return newStorage(pool, cfg.Logger), nil
}

// OpenSQLite opens a SQLite database file with the default settings.
func OpenSQLite(path string) (*Storage, error) {
	return Open(context.Background(), Config{
		Dialect: DialectSQLite,
		SQLite:  migration.DefaultSQLiteConfig(path),
	})
}

func newStorage(pool *ConnectionPool, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Storage{
		UserRepository:     NewUserRepository(pool),
		SessionRepository:  NewSessionRepository(pool),
		RoomRepository:     NewRoomRepository(pool),
		EmployeeRepository: NewEmployeeRepository(pool),
		LookupRepository:   NewLookupRepository(pool),
		EventRepository:    NewEventRepository(pool),
		BookingRepository:  NewBookingRepository(pool),
		pool:               pool,
		logger:             logger,
	}
}

// Pool exposes the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Migrate brings the schema up to date using the runner of the dialect.
func (s *Storage) Migrate(ctx context.Context) error {
	fsys := MigrationFS(s.pool.Dialect())
	if s.pool.Dialect() == DialectPostgres {
		return pgmigrate.Up(ctx, s.pool.DB(), fsys, s.logger)
	}
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(fsys),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.RunMigrations(ctx)
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return NewErrorMapper().MapError(err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
