// Package appstore adapts the persistence repositories to the interfaces the
// application services depend on. It converts between the storage models and
// the application models and leaves error values untouched, so services see
// the persistence sentinels.
package appstore

import (
	"time"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/persistence"
)

// Backend is the full set of persistence repositories. *sqlstore.Storage
// satisfies it.
type Backend interface {
	persistence.UserRepository
	persistence.SessionRepository
	persistence.RoomRepository
	persistence.EmployeeRepository
	persistence.LookupRepository
	persistence.EventRepository
	persistence.BookingRepository
}

// Adapters holds one adapter per application repository interface.
type Adapters struct {
	Users     *UserRepository
	Sessions  *SessionRepository
	Rooms     *RoomRepository
	Employees *EmployeeRepository
	Lookups   *LookupRepository
	Events    *EventRepository
	Bookings  *BookingRepository
	Catalog   *Catalog
}

// New builds every adapter over backend.
func New(backend Backend) Adapters {
	return Adapters{
		Users:     NewUserRepository(backend),
		Sessions:  NewSessionRepository(backend),
		Rooms:     NewRoomRepository(backend),
		Employees: NewEmployeeRepository(backend),
		Lookups:   NewLookupRepository(backend),
		Events:    NewEventRepository(backend),
		Bookings:  NewBookingRepository(backend),
		Catalog:   NewCatalog(backend, backend),
	}
}

var (
	_ application.UserRepository     = (*UserRepository)(nil)
	_ application.UserDirectory      = (*UserRepository)(nil)
	_ application.CredentialStore    = (*UserRepository)(nil)
	_ application.SessionRepository  = (*SessionRepository)(nil)
	_ application.RoomRepository     = (*RoomRepository)(nil)
	_ application.EmployeeRepository = (*EmployeeRepository)(nil)
	_ application.LookupRepository   = (*LookupRepository)(nil)
	_ application.EventRepository    = (*EventRepository)(nil)
	_ application.EventQuerier       = (*EventRepository)(nil)
	_ application.BookingRepository  = (*BookingRepository)(nil)
)

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
