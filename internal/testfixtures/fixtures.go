// Package testfixtures builds deterministic users, rooms, employees and events
// together with a migrated SQLite harness and fully wired services for
// integration tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/persistence"
)

var (
	userCounter     uint64
	roomCounter     uint64
	employeeCounter uint64
	eventCounter    uint64
)

var referenceTime = time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)

// Seeded reference IDs loaded by sqlstore.Storage.Seed.
const (
	RoomTypeConferenceHall = "room-type-conference-hall"
	EventTypeConference    = "event-type-conference"
	EventTypeConcert       = "event-type-concert"
	AgeCategoryAdult       = "age-18"
)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account.
type UserFixture struct {
	ID          string
	Email       string
	DisplayName string
	Roles       []application.Role
	Password    string
	Disabled    bool
	CreatedAt   time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
// The default user holds RoleUser and the password "password-123".
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: fmt.Sprintf("User %03d", idx),
		Roles:       []application.Role{application.RoleUser},
		Password:    "password-123",
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserRoles replaces the granted roles.
func WithUserRoles(roles ...application.Role) UserOption {
	return func(f *UserFixture) { f.Roles = append([]application.Role(nil), roles...) }
}

// WithUserPassword overrides the plain password.
func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) { f.Password = password }
}

// WithUserDisabled marks the account as disabled.
func WithUserDisabled() UserOption {
	return func(f *UserFixture) { f.Disabled = true }
}

// Application returns the application view of the user.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Roles:       append([]application.Role(nil), f.Roles...),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// Principal returns the principal acting as the user.
func (f UserFixture) Principal() application.Principal {
	return f.Application().Principal()
}

// Persistence returns the stored row for the user with passwordHash.
func (f UserFixture) Persistence(passwordHash string) persistence.User {
	roles := make([]string, 0, len(f.Roles))
	for _, r := range f.Roles {
		roles = append(roles, string(r))
	}
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Roles:        roles,
		PasswordHash: passwordHash,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room.
type RoomFixture struct {
	ID         string
	Name       string
	RoomTypeID string
	Capacity   int
	Address    string
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a conference hall with room for 100 people.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:         fmt.Sprintf("room-%03d", idx),
		Name:       fmt.Sprintf("Hall %03d", idx),
		RoomTypeID: RoomTypeConferenceHall,
		Capacity:   100,
		Address:    "1 Main street",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

// WithRoomName overrides the room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

// WithRoomCapacity overrides the capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) { f.Capacity = capacity }
}

// Persistence returns the stored row for the room.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:         f.ID,
		Name:       f.Name,
		RoomTypeID: f.RoomTypeID,
		Capacity:   f.Capacity,
		Address:    f.Address,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// Input returns the room as service input.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:       f.Name,
		RoomTypeID: f.RoomTypeID,
		Capacity:   f.Capacity,
		Address:    f.Address,
	}
}

// --------------------------- Employee fixtures ---------------------------

// EmployeeFixture represents a deterministic employee holding a position.
type EmployeeFixture struct {
	ID         string
	FullName   string
	PositionID string
	Position   string
}

// EmployeeOption configures the generated employee fixture.
type EmployeeOption func(*EmployeeFixture)

// NewEmployeeFixture returns an employee with the "Host" position.
func NewEmployeeFixture(opts ...EmployeeOption) EmployeeFixture {
	idx := atomic.AddUint64(&employeeCounter, 1)
	fixture := EmployeeFixture{
		ID:         fmt.Sprintf("employee-%03d", idx),
		FullName:   fmt.Sprintf("Employee %03d", idx),
		PositionID: "position-host",
		Position:   "Host",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEmployeeID overrides the employee ID.
func WithEmployeeID(id string) EmployeeOption {
	return func(f *EmployeeFixture) { f.ID = id }
}

// Persistence returns the stored row for the employee.
func (f EmployeeFixture) Persistence() persistence.Employee {
	return persistence.Employee{
		ID:         f.ID,
		FullName:   f.FullName,
		PositionID: f.PositionID,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// PositionLookup returns the position the employee holds.
func (f EmployeeFixture) PositionLookup() persistence.Lookup {
	return persistence.Lookup{
		ID:        f.PositionID,
		Kind:      persistence.LookupPosition,
		Name:      f.Position,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// ----------------------------- Event fixtures ----------------------------

// EventFixture describes an event to create through the event service.
type EventFixture struct {
	Name            string
	Start           time.Time
	End             time.Time
	MaxParticipants int
	EventTypeID     string
	AgeCategoryID   *string
	RoomID          string
	EmployeeIDs     []string
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a two hour conference in roomID starting a day after
// the reference time.
func NewEventFixture(roomID string, opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(24 * time.Hour)
	fixture := EventFixture{
		Name:            fmt.Sprintf("Event %03d", idx),
		Start:           start,
		End:             start.Add(2 * time.Hour),
		MaxParticipants: 50,
		EventTypeID:     EventTypeConference,
		RoomID:          roomID,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventWindow overrides the event window.
func WithEventWindow(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventEmployees books the given employees.
func WithEventEmployees(ids ...string) EventOption {
	return func(f *EventFixture) { f.EmployeeIDs = append([]string(nil), ids...) }
}

// WithEventType overrides the event type.
func WithEventType(id string) EventOption {
	return func(f *EventFixture) { f.EventTypeID = id }
}

// WithEventAgeCategory restricts the event to an age category.
func WithEventAgeCategory(id string) EventOption {
	return func(f *EventFixture) { f.AgeCategoryID = &id }
}

// Input returns the event as service input.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Name:            f.Name,
		Start:           f.Start,
		End:             f.End,
		MaxParticipants: f.MaxParticipants,
		EventTypeID:     f.EventTypeID,
		AgeCategoryID:   f.AgeCategoryID,
		RoomID:          f.RoomID,
		EmployeeIDs:     append([]string(nil), f.EmployeeIDs...),
	}
}
