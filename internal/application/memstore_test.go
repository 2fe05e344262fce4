package application

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/query"
	"github.com/example/event-booking/internal/scheduler"
)

// memStore is an in-memory implementation of every repository interface the
// services depend on. It reports persistence sentinels the way sqlstore does.
type memStore struct {
	mu sync.Mutex

	rooms     map[string]Room
	employees map[string]Employee
	lookups   map[LookupKind]map[string]Lookup
	events    map[string]Event
	bookings  map[string][]Booking
	users     map[string]UserCredentials
	sessions  map[string]Session

	createEventErr error
	persistErr     error
	persistCalls   int
}

func newMemStore() *memStore {
	m := &memStore{
		rooms:     make(map[string]Room),
		employees: make(map[string]Employee),
		lookups:   make(map[LookupKind]map[string]Lookup),
		events:    make(map[string]Event),
		bookings:  make(map[string][]Booking),
		users:     make(map[string]UserCredentials),
		sessions:  make(map[string]Session),
	}
	for _, kind := range LookupKinds {
		m.lookups[kind] = make(map[string]Lookup)
	}
	return m
}

var (
	_ RoomRepository     = (*memStore)(nil)
	_ EmployeeRepository = (*memStore)(nil)
	_ LookupRepository   = (*memStore)(nil)
	_ EventRepository    = (*memStore)(nil)
	_ BookingRepository  = (*memStore)(nil)
	_ EventQuerier       = (*memStore)(nil)
	_ UserRepository     = (*memStore)(nil)
	_ UserDirectory      = (*memStore)(nil)
	_ CredentialStore    = (*memStore)(nil)
	_ SessionRepository  = (*memStore)(nil)
	_ scheduler.Catalog  = (*memStore)(nil)
)

// seedReference adds the lookups, rooms, employees and the organizer used by
// the event tests.
func (m *memStore) seedReference() {
	m.lookups[LookupEventType]["conference"] = Lookup{ID: "conference", Kind: LookupEventType, Name: "Conference"}
	m.lookups[LookupEventType]["concert"] = Lookup{ID: "concert", Kind: LookupEventType, Name: "Concert"}
	m.lookups[LookupEventStatus][EventStatusPlanned] = Lookup{ID: EventStatusPlanned, Kind: LookupEventStatus, Name: "Planned"}
	m.lookups[LookupEventStatus][EventStatusActive] = Lookup{ID: EventStatusActive, Kind: LookupEventStatus, Name: "Active"}
	m.lookups[LookupAgeCategory]["age-18"] = Lookup{ID: "age-18", Kind: LookupAgeCategory, Name: "18+", MinAge: 18}
	m.lookups[LookupRoomType]["hall"] = Lookup{ID: "hall", Kind: LookupRoomType, Name: "Hall"}
	m.lookups[LookupPosition]["host"] = Lookup{ID: "host", Kind: LookupPosition, Name: "Host"}

	m.rooms["R1"] = Room{ID: "R1", Name: "Main hall", RoomTypeID: "hall", Capacity: 100}
	m.rooms["R2"] = Room{ID: "R2", Name: "Annex", RoomTypeID: "hall", Capacity: 20}
	m.employees["X"] = Employee{ID: "X", FullName: "Xavier", PositionID: "host"}
	m.employees["Y"] = Employee{ID: "Y", FullName: "Yana", PositionID: "host"}

	m.users["org"] = UserCredentials{User: User{ID: "org", Email: "org@example.com", DisplayName: "Organizer", Roles: []Role{RoleOrganizer}}}
}

func (m *memStore) RoomExists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[id]
	return ok, nil
}

func (m *memStore) EmployeeExists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.employees[id]
	return ok, nil
}

func (m *memStore) resourceInUse(kind scheduler.ResourceKind, id string) bool {
	for _, bookings := range m.bookings {
		for _, b := range bookings {
			if b.Kind == kind && b.ResourceID == id {
				return true
			}
		}
	}
	return false
}

func (m *memStore) CreateRoom(ctx context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return Room{}, persistence.ErrDuplicate
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memStore) GetRoom(ctx context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (m *memStore) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return Room{}, persistence.ErrNotFound
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memStore) DeleteRoom(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	if m.resourceInUse(scheduler.KindRoom, id) {
		return persistence.ErrForeignKeyViolation
	}
	delete(m.rooms, id)
	return nil
}

func (m *memStore) ListRooms(ctx context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) CreateEmployee(ctx context.Context, employee Employee) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[employee.ID]; ok {
		return Employee{}, persistence.ErrDuplicate
	}
	m.employees[employee.ID] = employee
	return employee, nil
}

func (m *memStore) GetEmployee(ctx context.Context, id string) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return Employee{}, persistence.ErrNotFound
	}
	return e, nil
}

func (m *memStore) UpdateEmployee(ctx context.Context, employee Employee) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[employee.ID]; !ok {
		return Employee{}, persistence.ErrNotFound
	}
	m.employees[employee.ID] = employee
	return employee, nil
}

func (m *memStore) DeleteEmployee(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[id]; !ok {
		return persistence.ErrNotFound
	}
	if m.resourceInUse(scheduler.KindEmployee, id) {
		return persistence.ErrForeignKeyViolation
	}
	delete(m.employees, id)
	return nil
}

func (m *memStore) ListEmployees(ctx context.Context) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) GetLookup(ctx context.Context, kind LookupKind, id string) (Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lookups[kind][id]
	if !ok {
		return Lookup{}, persistence.ErrNotFound
	}
	return l, nil
}

func (m *memStore) CreateLookup(ctx context.Context, lookup Lookup) (Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.lookups[lookup.Kind] {
		if existing.ID == lookup.ID || strings.EqualFold(existing.Name, lookup.Name) {
			return Lookup{}, persistence.ErrDuplicate
		}
	}
	m.lookups[lookup.Kind][lookup.ID] = lookup
	return lookup, nil
}

func (m *memStore) UpdateLookup(ctx context.Context, lookup Lookup) (Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookups[lookup.Kind][lookup.ID]; !ok {
		return Lookup{}, persistence.ErrNotFound
	}
	m.lookups[lookup.Kind][lookup.ID] = lookup
	return lookup, nil
}

func (m *memStore) FindLookupByName(ctx context.Context, kind LookupKind, name string) (Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lookups[kind] {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	return Lookup{}, persistence.ErrNotFound
}

func (m *memStore) ListLookups(ctx context.Context, kind LookupKind) ([]Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Lookup, 0, len(m.lookups[kind]))
	for _, l := range m.lookups[kind] {
		out = append(out, l)
	}
	return out, nil
}

func (m *memStore) DeleteLookup(ctx context.Context, kind LookupKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookups[kind][id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.lookups[kind], id)
	return nil
}

// withBookings derives the room and employee IDs of an event from its bookings.
func (m *memStore) withBookings(event Event) Event {
	event.RoomID = ""
	event.EmployeeIDs = nil
	for _, b := range m.bookings[event.ID] {
		switch b.Kind {
		case scheduler.KindRoom:
			event.RoomID = b.ResourceID
		case scheduler.KindEmployee:
			event.EmployeeIDs = append(event.EmployeeIDs, b.ResourceID)
		}
	}
	sort.Strings(event.EmployeeIDs)
	return event
}

func (m *memStore) GetEvent(ctx context.Context, id string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	return m.withBookings(event), nil
}

func (m *memStore) CreateEvent(ctx context.Context, event Event, bookings []Booking) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistCalls++
	if m.createEventErr != nil {
		return Event{}, m.createEventErr
	}
	if m.persistErr != nil {
		return Event{}, m.persistErr
	}
	if _, ok := m.events[event.ID]; ok {
		return Event{}, persistence.ErrDuplicate
	}
	m.events[event.ID] = event
	m.bookings[event.ID] = append([]Booking(nil), bookings...)
	return m.withBookings(event), nil
}

func (m *memStore) UpdateEvent(ctx context.Context, event Event, bookings []Booking) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistCalls++
	if m.persistErr != nil {
		return Event{}, m.persistErr
	}
	if _, ok := m.events[event.ID]; !ok {
		return Event{}, persistence.ErrNotFound
	}
	m.events[event.ID] = event
	m.bookings[event.ID] = append([]Booking(nil), bookings...)
	return m.withBookings(event), nil
}

func (m *memStore) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.events, id)
	delete(m.bookings, id)
	return nil
}

func (m *memStore) ListBookingsOverlapping(ctx context.Context, key scheduler.Key, interval scheduler.Interval) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, bookings := range m.bookings {
		for _, b := range bookings {
			if b.Key() == key && b.toScheduler().Interval.Overlaps(interval) {
				out = append(out, b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memStore) ListBookingsForEvent(ctx context.Context, eventID string) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Booking(nil), m.bookings[eventID]...), nil
}

func (m *memStore) UpsertBookings(ctx context.Context, bookings []Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistCalls++
	if m.persistErr != nil {
		return m.persistErr
	}
	for _, b := range bookings {
		stored := m.bookings[b.EventID]
		replaced := false
		for i := range stored {
			if stored[i].Key() == b.Key() {
				stored[i].Start, stored[i].End = b.Start, b.End
				replaced = true
			}
		}
		if !replaced {
			stored = append(stored, b)
		}
		m.bookings[b.EventID] = stored
	}
	return nil
}

func (m *memStore) DeleteBooking(ctx context.Context, eventID string, key scheduler.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.bookings[eventID]
	out := stored[:0]
	for _, b := range stored {
		if b.Key() != key {
			out = append(out, b)
		}
	}
	m.bookings[eventID] = out
	return nil
}

// bookingCount returns the number of bookings held by key across all events.
func (m *memStore) bookingCount(key scheduler.Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, bookings := range m.bookings {
		for _, b := range bookings {
			if b.Key() == key {
				n++
			}
		}
	}
	return n
}

func (m *memStore) records() []query.EventRecord {
	out := make([]query.EventRecord, 0, len(m.events))
	for _, e := range m.events {
		r := query.EventRecord{
			ID:              e.ID,
			EventTypeID:     e.EventTypeID,
			StatusID:        e.StatusID,
			OrganizerID:     e.OrganizerID,
			MaxParticipants: e.MaxParticipants,
			Interval:        e.Interval(),
		}
		if e.AgeCategoryID != nil {
			r.AgeCategoryID = *e.AgeCategoryID
		}
		for _, b := range m.bookings[e.ID] {
			r.Resources = append(r.Resources, b.Key())
		}
		out = append(out, r)
	}
	return out
}

func (m *memStore) QueryEvents(ctx context.Context, spec query.Spec) ([]EventSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := spec.Apply(m.records())
	out := make([]EventSummary, 0, len(matched))
	for _, r := range matched {
		e := m.withBookings(m.events[r.ID])
		out = append(out, EventSummary{
			ID:              e.ID,
			Name:            e.Name,
			Start:           e.Start,
			End:             e.End,
			MaxParticipants: e.MaxParticipants,
			OrganizerID:     e.OrganizerID,
			RoomID:          e.RoomID,
			RoomName:        m.rooms[e.RoomID].Name,
			EventTypeName:   m.lookups[LookupEventType][e.EventTypeID].Name,
			StatusName:      m.lookups[LookupEventStatus][e.StatusID].Name,
		})
	}
	return out, nil
}

func (m *memStore) CountEvents(ctx context.Context, where query.Predicate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(query.Spec{Where: where}.Apply(m.records())), nil
}

func (m *memStore) UserExists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *memStore) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.User.Email == user.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	m.users[user.ID] = UserCredentials{User: user, PasswordHash: passwordHash}
	return user, nil
}

func (m *memStore) GetUser(ctx context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return creds.User, nil
}

func (m *memStore) UpdateUser(ctx context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.users[user.ID]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	for id, other := range m.users {
		if id != user.ID && other.User.Email == user.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	creds.User = user
	m.users[user.ID] = creds
	return user, nil
}

func (m *memStore) UpdatePassword(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.users[userID]
	if !ok {
		return persistence.ErrNotFound
	}
	creds.PasswordHash = passwordHash
	creds.User.UpdatedAt = updatedAt
	m.users[userID] = creds
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, e := range m.events {
		if e.OrganizerID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, creds := range m.users {
		out = append(out, creds.User)
	}
	return out, nil
}

func (m *memStore) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, creds := range m.users {
		if creds.User.Email == email {
			return creds, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (m *memStore) GetUserCredentials(ctx context.Context, id string) (UserCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.users[id]
	if !ok {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return creds, nil
}

func (m *memStore) CreateSession(ctx context.Context, session Session, tokenHash string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[tokenHash]; ok {
		return Session{}, persistence.ErrDuplicate
	}
	m.sessions[tokenHash] = session
	return session, nil
}

func (m *memStore) GetSession(ctx context.Context, tokenHash string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenHash]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (m *memStore) RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenHash]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	if session.RevokedAt == nil {
		at := revokedAt
		session.RevokedAt = &at
		m.sessions[tokenHash] = session
	}
	return session, nil
}

func (m *memStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, session := range m.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(m.sessions, hash)
		}
	}
	return nil
}

// sequence returns an ID generator yielding prefix-1, prefix-2, ...
func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func at(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	organizer = Principal{UserID: "org", Roles: []Role{RoleOrganizer}}
	admin     = Principal{UserID: "admin", Roles: []Role{RoleAdmin}}
	viewer    = Principal{UserID: "viewer", Roles: []Role{RoleUser}}
)
