package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/event-booking/internal/persistence/appstore"
	"github.com/example/event-booking/internal/persistence/sqlstore"
	"github.com/example/event-booking/internal/persistence/sqlstore/migration"
)

// SQLiteHarness provides repository access backed by a temporary, migrated and
// seeded SQLite database.
type SQLiteHarness struct {
	Storage  *sqlstore.Storage
	Adapters appstore.Adapters

	tb      testing.TB
	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file. Callers
// may invoke Close, but the helper also registers a cleanup with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()
	ctx := context.Background()

	path := filepath.Join(tb.TempDir(), "booking.db")
	storage, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect: sqlstore.DialectSQLite,
		SQLite:  migration.TempFileTestSQLiteConfig(path),
	})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	if err := storage.Seed(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to seed storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:  storage,
		Adapters: appstore.New(storage),
		tb:       tb,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// AddUser stores the user with a hash of its fixture password.
func (h *SQLiteHarness) AddUser(f UserFixture) UserFixture {
	h.tb.Helper()
	hash, err := FastHash(f.Password)
	if err != nil {
		h.tb.Fatalf("hash password: %v", err)
	}
	if err := h.Storage.CreateUser(context.Background(), f.Persistence(hash)); err != nil {
		h.tb.Fatalf("create user %s: %v", f.ID, err)
	}
	return f
}

// AddRoom stores the room.
func (h *SQLiteHarness) AddRoom(f RoomFixture) RoomFixture {
	h.tb.Helper()
	if err := h.Storage.CreateRoom(context.Background(), f.Persistence()); err != nil {
		h.tb.Fatalf("create room %s: %v", f.ID, err)
	}
	return f
}

// AddEmployee stores the employee, creating its position when missing.
func (h *SQLiteHarness) AddEmployee(f EmployeeFixture) EmployeeFixture {
	h.tb.Helper()
	ctx := context.Background()
	if _, err := h.Storage.GetLookup(ctx, f.PositionLookup().Kind, f.PositionID); err != nil {
		if err := h.Storage.CreateLookup(ctx, f.PositionLookup()); err != nil {
			h.tb.Fatalf("create position %s: %v", f.PositionID, err)
		}
	}
	if err := h.Storage.CreateEmployee(ctx, f.Persistence()); err != nil {
		h.tb.Fatalf("create employee %s: %v", f.ID, err)
	}
	return f
}
