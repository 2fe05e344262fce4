package appstore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/persistence/appstore"
	"github.com/example/event-booking/internal/persistence/sqlstore"
	"github.com/example/event-booking/internal/persistence/sqlstore/migration"
	"github.com/example/event-booking/internal/scheduler"
)

var base = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

func openAdapters(t *testing.T) appstore.Adapters {
	t.Helper()
	ctx := context.Background()

	storage, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect: sqlstore.DialectSQLite,
		SQLite:  migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "appstore.db")),
	})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := storage.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return appstore.New(storage)
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUserRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := openAdapters(t)

	created, err := a.Users.CreateUser(ctx, application.User{
		ID:          "u1",
		Email:       "ann@example.com",
		DisplayName: "Ann",
		Roles:       []application.Role{application.RoleOrganizer, application.RoleUser},
		CreatedAt:   base,
		UpdatedAt:   base,
	}, "hash-1")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.Email != "ann@example.com" || len(created.Roles) != 2 {
		t.Fatalf("unexpected user %+v", created)
	}

	created.DisplayName = "Ann B."
	created.UpdatedAt = base.Add(time.Hour)
	if _, err := a.Users.UpdateUser(ctx, created); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	creds, err := a.Users.GetUserCredentialsByEmail(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("GetUserCredentialsByEmail: %v", err)
	}
	if creds.User.DisplayName != "Ann B." || creds.PasswordHash != "hash-1" || creds.Disabled {
		t.Fatalf("update lost credentials: %+v", creds)
	}

	if err := a.Users.UpdatePassword(ctx, "u1", "hash-2", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	creds, err = a.Users.GetUserCredentials(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserCredentials: %v", err)
	}
	if creds.PasswordHash != "hash-2" {
		t.Fatalf("expected new hash, got %q", creds.PasswordHash)
	}

	ok, err := a.Users.UserExists(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("UserExists(u1) = %v, %v", ok, err)
	}
	ok, err = a.Users.UserExists(ctx, "ghost")
	if err != nil || ok {
		t.Fatalf("UserExists(ghost) = %v, %v", ok, err)
	}

	if _, err := a.Users.GetUser(ctx, "ghost"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := openAdapters(t)

	if _, err := a.Users.CreateUser(ctx, application.User{
		ID: "u1", Email: "ann@example.com", DisplayName: "Ann",
		Roles: []application.Role{application.RoleUser}, CreatedAt: base, UpdatedAt: base,
	}, "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	session, err := a.Sessions.CreateSession(ctx, application.Session{
		ID:        "s1",
		UserID:    "u1",
		ExpiresAt: base.Add(24 * time.Hour),
		CreatedAt: base,
	}, "digest")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID != "s1" || session.Token != "" {
		t.Fatalf("unexpected session %+v", session)
	}

	revoked, err := a.Sessions.RevokeSession(ctx, "digest", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if revoked.RevokedAt == nil {
		t.Fatal("expected revoked_at to be set")
	}
	if _, err := a.Sessions.GetSession(ctx, "other"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestServicesOverSQLite drives the application services through the adapters
// against a real database.
func TestServicesOverSQLite(t *testing.T) {
	ctx := context.Background()
	a := openAdapters(t)
	now := func() time.Time { return base }
	admin := application.Principal{UserID: "admin", Roles: []application.Role{application.RoleAdmin}}

	if _, err := a.Users.CreateUser(ctx, application.User{
		ID: "org", Email: "org@example.com", DisplayName: "Organizer",
		Roles: []application.Role{application.RoleOrganizer}, CreatedAt: base, UpdatedAt: base,
	}, "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	organizer := application.Principal{UserID: "org", Roles: []application.Role{application.RoleOrganizer}}

	lookups := application.NewLookupService(a.Lookups, sequence("lookup"), now, discard())
	rooms := application.NewRoomServiceWithLogger(a.Rooms, a.Lookups, a.Events, sequence("room"), now, discard())
	employees := application.NewEmployeeService(a.Employees, a.Lookups, lookups, sequence("employee"), now, discard())
	sched := application.NewBookingScheduler(a.Catalog, a.Events, a.Bookings, scheduler.NewKeyedMutex(), now, discard())
	events := application.NewEventService(application.EventServiceDeps{
		Events:      a.Events,
		Bookings:    a.Bookings,
		Lookups:     a.Lookups,
		Users:       a.Users,
		Scheduler:   sched,
		IDGenerator: sequence("event"),
		Now:         now,
		Logger:      discard(),
	})
	queries := application.NewQueryService(a.Events, now, time.UTC, discard())

	room, err := rooms.CreateRoom(ctx, application.CreateRoomParams{
		Principal: admin,
		Input:     application.RoomInput{Name: "Main hall", RoomTypeID: "room-type-conference-hall", Capacity: 120},
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	host, err := employees.CreateEmployee(ctx, application.CreateEmployeeParams{
		Principal: admin,
		Input:     application.EmployeeInput{FullName: "Xavier", NewPosition: "Host"},
	})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	input := func(start, end time.Time) application.EventInput {
		return application.EventInput{
			Name:            "Spring conference",
			Start:           start,
			End:             end,
			MaxParticipants: 50,
			EventTypeID:     "event-type-conference",
			RoomID:          room.ID,
			EmployeeIDs:     []string{host.ID},
		}
	}

	first, err := events.CreateEvent(ctx, application.CreateEventParams{
		Principal: organizer,
		Input:     input(base.Add(24*time.Hour), base.Add(26*time.Hour)),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if first.RoomID != room.ID || len(first.EmployeeIDs) != 1 || first.EmployeeIDs[0] != host.ID {
		t.Fatalf("bookings not reflected on event: %+v", first)
	}

	_, err = events.CreateEvent(ctx, application.CreateEventParams{
		Principal: organizer,
		Input:     input(base.Add(25*time.Hour), base.Add(27*time.Hour)),
	})
	var conflict *application.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ConflictingEventID != first.ID {
		t.Fatalf("unexpected conflict %+v", conflict)
	}

	// Touching windows share no instant.
	second, err := events.CreateEvent(ctx, application.CreateEventParams{
		Principal: organizer,
		Input:     input(base.Add(26*time.Hour), base.Add(28*time.Hour)),
	})
	if err != nil {
		t.Fatalf("CreateEvent touching: %v", err)
	}

	upcoming, err := queries.UpcomingEvents(ctx, 0)
	if err != nil {
		t.Fatalf("UpcomingEvents: %v", err)
	}
	if len(upcoming) != 2 || upcoming[0].ID != first.ID || upcoming[1].ID != second.ID {
		t.Fatalf("unexpected upcoming events %+v", upcoming)
	}
	if upcoming[0].RoomName != "Main hall" || upcoming[0].EventTypeName != "Conference" {
		t.Fatalf("summary lost joined names: %+v", upcoming[0])
	}

	if err := rooms.DeleteRoom(ctx, admin, room.ID); !errors.Is(err, application.ErrResourceInUse) {
		t.Fatalf("expected ErrResourceInUse, got %v", err)
	}
}
