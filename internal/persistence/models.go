package persistence

import "time"

// User represents an account together with its credentials.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Roles        []string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room represents a room or venue catalog entry.
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

// Employee represents a bookable employee or contractor.
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

// Lookup kinds stored in the lookups table.
const (
	LookupRoomType    = "room_type"
	LookupPosition    = "position"
	LookupAgeCategory = "age_category"
	LookupEventStatus = "event_status"
	LookupEventType   = "event_type"
)

// Lookup is a reference entry. Category is only set for event types and
// MinAge only for age categories.
type Lookup struct {
	ID        string
	Kind      string
	Name      string
	Category  string
	MinAge    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event represents a scheduled activity. The room and the employees of an
// event are stored as bookings.
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
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventWithBookings is an event loaded together with every booking it holds.
type EventWithBookings struct {
	Event    Event
	Bookings []Booking
}

// EventSummary is an event joined with the display names of its references.
type EventSummary struct {
	Event           Event
	RoomID          string
	RoomName        string
	RoomAddress     string
	EventTypeName   string
	StatusName      string
	AgeCategoryName string
}

// Booking allocates one resource to one event. ResourceKind holds the stored
// tag of the resource variant.
type Booking struct {
	EventID      string
	ResourceKind string
	ResourceID   string
	Start        time.Time
	End          time.Time
	CreatedAt    time.Time
}

// Session represents an authentication session. Only a keyed hash of the
// session token is stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
