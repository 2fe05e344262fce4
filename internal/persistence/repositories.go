package persistence

import (
	"context"
	"time"

	"github.com/example/event-booking/internal/query"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
	RoomExists(ctx context.Context, id string) (bool, error)
}

// EmployeeRepository exposes CRUD operations for employees.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	UpdateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
	EmployeeExists(ctx context.Context, id string) (bool, error)
}

// LookupRepository stores the reference tables, one kind at a time.
type LookupRepository interface {
	CreateLookup(ctx context.Context, lookup Lookup) error
	UpdateLookup(ctx context.Context, lookup Lookup) error
	GetLookup(ctx context.Context, kind, id string) (Lookup, error)
	FindLookupByName(ctx context.Context, kind, name string) (Lookup, error)
	ListLookups(ctx context.Context, kind string) ([]Lookup, error)
	DeleteLookup(ctx context.Context, kind, id string) error
}

// EventRepository stores events together with their bookings. Create and
// Update write the event row and replace its booking set in one transaction.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event, bookings []Booking) error
	UpdateEvent(ctx context.Context, event Event, bookings []Booking) error
	GetEvent(ctx context.Context, id string) (EventWithBookings, error)
	DeleteEvent(ctx context.Context, id string) error
	QueryEvents(ctx context.Context, spec query.Spec) ([]EventSummary, error)
	CountEvents(ctx context.Context, where query.Predicate) (int, error)
}

// BookingRepository reads and writes individual bookings.
type BookingRepository interface {
	ListBookingsOverlapping(ctx context.Context, kind, resourceID string, start, end time.Time) ([]Booking, error)
	ListBookingsForEvent(ctx context.Context, eventID string) ([]Booking, error)
	UpsertBookings(ctx context.Context, bookings []Booking) error
	DeleteBooking(ctx context.Context, eventID, kind, resourceID string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, tokenHash string) (Session, error)
	RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
