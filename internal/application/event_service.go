package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/scheduler"
)

// EventRepository stores events together with their bookings. Create and
// Update write the event and replace its booking set atomically.
type EventRepository interface {
	EventFinder
	CreateEvent(ctx context.Context, event Event, bookings []Booking) (Event, error)
	UpdateEvent(ctx context.Context, event Event, bookings []Booking) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// UserDirectory answers whether a user account exists.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// EventService owns events and keeps their room and employee bookings in
// step with the event window.
type EventService struct {
	events      EventRepository
	bookings    BookingRepository
	lookups     LookupReader
	users       UserDirectory
	scheduler   *BookingScheduler
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// EventServiceDeps groups the collaborators of an EventService.
type EventServiceDeps struct {
	Events      EventRepository
	Bookings    BookingRepository
	Lookups     LookupReader
	Users       UserDirectory
	Scheduler   *BookingScheduler
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewEventService constructs an event service.
func NewEventService(deps EventServiceDeps) *EventService {
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      deps.Events,
		bookings:    deps.Bookings,
		lookups:     deps.Lookups,
		users:       deps.Users,
		scheduler:   deps.Scheduler,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates the event, reserves its room and employees for the
// event window and stores everything in one transaction. Any conflict leaves
// nothing persisted.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	if !params.Principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}
	if err = s.ready(); err != nil {
		return
	}

	input := normalizeEventInput(params.Input)
	if input.StatusID == "" {
		input.StatusID = EventStatusPlanned
	}
	if err = s.validate(ctx, input); err != nil {
		return
	}
	if err = s.ensureOrganizer(ctx, params.Principal.UserID); err != nil {
		return
	}

	now := s.now()
	event = Event{
		ID:              s.idGenerator(),
		Name:            input.Name,
		Description:     input.Description,
		Start:           input.Start,
		End:             input.End,
		MaxParticipants: input.MaxParticipants,
		OrganizerID:     params.Principal.UserID,
		StatusID:        input.StatusID,
		EventTypeID:     input.EventTypeID,
		AgeCategoryID:   input.AgeCategoryID,
		RoomID:          input.RoomID,
		EmployeeIDs:     uniqueIDs(input.EmployeeIDs),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	bookings := eventBookings(event, now)
	err = s.scheduler.Guard(ctx, bookings, func(ctx context.Context) error {
		persisted, perr := s.events.CreateEvent(ctx, event, bookings)
		if perr != nil {
			return mapEventRepoError(perr, event.ID)
		}
		event = persisted
		return nil
	})
	return
}

// UpdateEvent updates the event attributes, moves the room booking and
// re-syncs every employee booking to the new window. Conflicts are checked
// for all of them against the new interval; the update is all-or-nothing.
// Input.EmployeeIDs is ignored.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	if !params.Principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}
	if err = s.ready(); err != nil {
		return
	}

	var existing Event
	existing, err = s.getEvent(ctx, params.EventID)
	if err != nil {
		return
	}

	input := normalizeEventInput(params.Input)
	if input.StatusID == "" {
		input.StatusID = existing.StatusID
	}
	if err = s.validate(ctx, input); err != nil {
		return
	}

	now := s.now()
	updated := existing
	updated.Name = input.Name
	updated.Description = input.Description
	updated.Start = input.Start
	updated.End = input.End
	updated.MaxParticipants = input.MaxParticipants
	updated.StatusID = input.StatusID
	updated.EventTypeID = input.EventTypeID
	updated.AgeCategoryID = input.AgeCategoryID
	updated.RoomID = input.RoomID
	updated.UpdatedAt = now

	bookings := eventBookings(updated, now)
	err = s.scheduler.Guard(ctx, bookings, func(ctx context.Context) error {
		persisted, perr := s.events.UpdateEvent(ctx, updated, bookings)
		if perr != nil {
			return mapEventRepoError(perr, updated.ID)
		}
		updated = persisted
		return nil
	})
	if err != nil {
		return
	}
	event = updated
	return
}

// DeleteEvent removes the event together with all its bookings.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if !principal.CanOrganize() {
		return ErrUnauthorized
	}
	if err := s.ready(); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "principal_id", principal.UserID, "event_id", eventID)
	if err := s.events.DeleteEvent(ctx, eventID); err != nil {
		err = mapEventRepoError(err, eventID)
		logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "event deleted")
	return nil
}

// GetEvent returns the event with its room and employee IDs.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if err := s.ready(); err != nil {
		return Event{}, err
	}
	return s.getEvent(ctx, eventID)
}

// AddParticipants reserves each employee for the event's current window.
// Employees already attached are skipped; the rest are booked all-or-nothing.
func (s *EventService) AddParticipants(ctx context.Context, params ParticipantsParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AddParticipants",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add participants", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("participant_count", len(event.EmployeeIDs)).InfoContext(ctx, "participants added")
	}()

	if !params.Principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}
	if err = s.ready(); err != nil {
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	event, err = s.getEvent(ctx, params.EventID)
	if err != nil {
		return
	}

	attached := make(map[string]struct{}, len(event.EmployeeIDs))
	for _, id := range event.EmployeeIDs {
		attached[id] = struct{}{}
	}

	now := s.now()
	var added []Booking
	for _, id := range uniqueIDs(params.EmployeeIDs) {
		if _, ok := attached[id]; ok {
			continue
		}
		added = append(added, Booking{
			EventID:    event.ID,
			Kind:       scheduler.KindEmployee,
			ResourceID: id,
			Start:      event.Start,
			End:        event.End,
			CreatedAt:  now,
		})
	}
	if len(added) == 0 {
		return
	}

	err = s.scheduler.Guard(ctx, added, func(ctx context.Context) error {
		return translateStorageError(s.bookings.UpsertBookings(ctx, added))
	})
	if err != nil {
		return
	}

	for _, b := range added {
		event.EmployeeIDs = append(event.EmployeeIDs, b.ResourceID)
	}
	sort.Strings(event.EmployeeIDs)
	return
}

// RemoveParticipant releases the employee's booking for the event. Removing
// an employee that is not attached is a no-op.
func (s *EventService) RemoveParticipant(ctx context.Context, principal Principal, eventID, employeeID string) error {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if !principal.CanOrganize() {
		return ErrUnauthorized
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return err
	}
	return s.scheduler.Release(ctx, eventID, scheduler.Employee(strings.TrimSpace(employeeID)))
}

func (s *EventService) ready() error {
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}
	if s.scheduler == nil {
		return fmt.Errorf("booking scheduler not configured")
	}
	return nil
}

func (s *EventService) getEvent(ctx context.Context, eventID string) (Event, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err, eventID)
	}
	return event, nil
}

// validate checks the window, the required fields and that every referenced
// lookup exists. Rooms and employees are checked by the scheduler.
func (s *EventService) validate(ctx context.Context, input EventInput) error {
	if !input.End.After(input.Start) {
		return ErrInvalidTimeRange
	}

	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.MaxParticipants <= 0 {
		vErr.add("max_participants", "max participants must be positive")
	}
	if input.EventTypeID == "" {
		vErr.add("event_type_id", "event type is required")
	}
	if input.RoomID == "" {
		vErr.add("room_id", "room is required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if err := ensureLookup(ctx, s.lookups, LookupEventType, input.EventTypeID); err != nil {
		return err
	}
	if err := ensureLookup(ctx, s.lookups, LookupEventStatus, input.StatusID); err != nil {
		return err
	}
	if input.AgeCategoryID != nil {
		if err := ensureLookup(ctx, s.lookups, LookupAgeCategory, *input.AgeCategoryID); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventService) ensureOrganizer(ctx context.Context, userID string) error {
	if s.users == nil {
		return nil
	}
	ok, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return translateStorageError(err)
	}
	if !ok {
		return notFound("user", userID)
	}
	return nil
}

func normalizeEventInput(input EventInput) EventInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.EventTypeID = strings.TrimSpace(input.EventTypeID)
	input.StatusID = strings.TrimSpace(input.StatusID)
	input.RoomID = strings.TrimSpace(input.RoomID)
	input.AgeCategoryID = normalizeOptionalString(input.AgeCategoryID)
	return input
}

// eventBookings returns the room booking followed by one booking per
// employee, all spanning the event window.
func eventBookings(event Event, createdAt time.Time) []Booking {
	bookings := make([]Booking, 0, 1+len(event.EmployeeIDs))
	bookings = append(bookings, Booking{
		EventID:    event.ID,
		Kind:       scheduler.KindRoom,
		ResourceID: event.RoomID,
		Start:      event.Start,
		End:        event.End,
		CreatedAt:  createdAt,
	})
	for _, id := range event.EmployeeIDs {
		bookings = append(bookings, Booking{
			EventID:    event.ID,
			Kind:       scheduler.KindEmployee,
			ResourceID: id,
			Start:      event.Start,
			End:        event.End,
			CreatedAt:  createdAt,
		})
	}
	return bookings
}

func mapEventRepoError(err error, eventID string) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return notFound("event", eventID)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("event", "event violates a storage constraint")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("event", "event references an unknown entity")
		return vErr
	}
	return translateStorageError(err)
}

// uniqueIDs trims, drops empty values and removes duplicates, keeping the
// result sorted.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
