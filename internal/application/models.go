package application

import (
	"time"

	"github.com/example/event-booking/internal/scheduler"
)

// Role grants a class of permissions to a user.
type Role string

const (
	// RoleUser can browse events and reports about its own activity.
	RoleUser Role = "user"
	// RoleEmployee is a staff member that may be booked for events.
	RoleEmployee Role = "employee"
	// RoleOrganizer creates and edits events and the resource catalog.
	RoleOrganizer Role = "organizer"
	// RoleAdmin can do everything, including user management.
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleEmployee, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Roles  []Role
}

// Has reports whether the principal holds role.
func (p Principal) Has(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal is an administrator.
func (p Principal) IsAdmin() bool { return p.Has(RoleAdmin) }

// CanOrganize reports whether the principal may mutate events and the catalog.
func (p Principal) CanOrganize() bool { return p.Has(RoleOrganizer) || p.Has(RoleAdmin) }

// Built-in event status identifiers seeded by the initial migration.
const (
	EventStatusPlanned   = "planned"
	EventStatusActive    = "active"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name        string
	RoomTypeID  string
	Capacity    int
	Address     string
	Description *string
	IsExternal  bool
	ExternalURL *string
}

// Room represents a catalog entry for a room or venue.
type Room struct {
	ID          string
	Name        string
	RoomTypeID  string
	Capacity    int
	Address     string
	Description *string
	IsExternal  bool
	ExternalURL *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// RoomDetails is a room together with the events booked into it.
type RoomDetails struct {
	Room   Room
	Events []EventSummary
}

// EmployeeInput captures caller provided employee fields. NewPosition, when set,
// takes precedence over PositionID and is resolved with find-or-create semantics.
type EmployeeInput struct {
	FullName    string
	PositionID  string
	NewPosition string
	ContactInfo *string
	IsExternal  bool
	ExternalURL *string
}

// Employee represents a bookable employee or external contractor.
type Employee struct {
	ID          string
	FullName    string
	PositionID  string
	ContactInfo *string
	IsExternal  bool
	ExternalURL *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateEmployeeParams wraps the data required to create an employee.
type CreateEmployeeParams struct {
	Principal Principal
	Input     EmployeeInput
}

// UpdateEmployeeParams wraps the data required to update an employee.
type UpdateEmployeeParams struct {
	Principal  Principal
	EmployeeID string
	Input      EmployeeInput
}

// LookupKind names a reference table of the catalog.
type LookupKind string

const (
	LookupRoomType    LookupKind = "room_type"
	LookupPosition    LookupKind = "position"
	LookupAgeCategory LookupKind = "age_category"
	LookupEventStatus LookupKind = "event_status"
	LookupEventType   LookupKind = "event_type"
)

// LookupKinds lists every lookup kind.
var LookupKinds = []LookupKind{LookupRoomType, LookupPosition, LookupAgeCategory, LookupEventStatus, LookupEventType}

// ValidLookupKind reports whether k is a known lookup kind.
func ValidLookupKind(k LookupKind) bool {
	for _, known := range LookupKinds {
		if k == known {
			return true
		}
	}
	return false
}

// LookupInput captures caller provided lookup fields. Category applies to event
// types and MinAge to age categories; both are ignored for other kinds.
type LookupInput struct {
	Name     string
	Category string
	MinAge   int
}

// Lookup is a named reference entry such as a room type or an event status.
type Lookup struct {
	ID        string
	Kind      LookupKind
	Name      string
	Category  string
	MinAge    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Name            string
	Description     string
	Start           time.Time
	End             time.Time
	MaxParticipants int
	EventTypeID     string
	// StatusID defaults to EventStatusPlanned on create and is left unchanged on update when empty.
	StatusID      string
	AgeCategoryID *string
	RoomID        string
	EmployeeIDs   []string
}

// Event is a scheduled activity holding one room and any number of employees.
type Event struct {
	ID              string
	Name            string
	Description     string
	Start           time.Time
	End             time.Time
	MaxParticipants int
	OrganizerID     string
	StatusID        string
	EventTypeID     string
	AgeCategoryID   *string
	RoomID          string
	EmployeeIDs     []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the event window.
func (e Event) Interval() scheduler.Interval {
	return scheduler.Interval{Start: e.Start, End: e.End}
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event. EmployeeIDs in
// Input are ignored; participants are managed through AddParticipants.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// ParticipantsParams wraps the data required to attach employees to an event.
type ParticipantsParams struct {
	Principal   Principal
	EventID     string
	EmployeeIDs []string
}

// Booking binds one resource to one event for the event window.
type Booking struct {
	EventID    string
	Kind       scheduler.ResourceKind
	ResourceID string
	Start      time.Time
	End        time.Time
	CreatedAt  time.Time
}

// Key returns the resource key of the booking.
func (b Booking) Key() scheduler.Key {
	return scheduler.Key{Kind: b.Kind, ID: b.ResourceID}
}

func (b Booking) toScheduler() scheduler.Booking {
	return scheduler.Booking{
		EventID:  b.EventID,
		Resource: b.Key(),
		Interval: scheduler.Interval{Start: b.Start, End: b.End},
	}
}

// ConflictQuery asks which bookings would block a reservation.
type ConflictQuery struct {
	Kind           scheduler.ResourceKind
	ResourceID     string
	Start          time.Time
	End            time.Time
	ExcludeEventID string
}

// EventSummary is the read model returned by listings and reports.
type EventSummary struct {
	ID              string
	Name            string
	Description     string
	Start           time.Time
	End             time.Time
	MaxParticipants int
	OrganizerID     string
	RoomID          string
	RoomName        string
	EventTypeName   string
	StatusName      string
	AgeCategoryName string
}

// FilterEventsParams narrows the event listing. Empty fields do not filter.
type FilterEventsParams struct {
	Date        *time.Time
	EventTypeID string
	StatusID    string
}

// ActivityReportParams selects events fully contained in [From, To]. Optional
// filters combine conjunctively.
type ActivityReportParams struct {
	Principal       Principal
	From            time.Time
	To              time.Time
	EventID         string
	RoomID          string
	EmployeeID      string
	MinParticipants *int
	AgeCategoryID   string
	StatusID        string
}

// OrganizerProfile summarises the events a user has organized.
type OrganizerProfile struct {
	UserID         string
	OrganizedCount int
	RecentEvents   []EventSummary
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Roles       []Role
	Password    string
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Roles       []Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Principal returns the principal acting as this user.
func (u User) Principal() Principal {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return Principal{UserID: u.ID, Roles: roles}
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UpdateProfileParams carries the self-service profile fields of the principal.
type UpdateProfileParams struct {
	Principal   Principal
	Email       string
	DisplayName string
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
