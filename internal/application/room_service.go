package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/query"
	"github.com/example/event-booking/internal/scheduler"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// LookupReader resolves reference entries by kind and ID.
type LookupReader interface {
	GetLookup(ctx context.Context, kind LookupKind, id string) (Lookup, error)
}

// EventQuerier runs read-side event queries.
type EventQuerier interface {
	QueryEvents(ctx context.Context, spec query.Spec) ([]EventSummary, error)
	CountEvents(ctx context.Context, where query.Predicate) (int, error)
}

// ResourceRetirer serialises the removal of a bookable resource with
// reservations of it. *BookingScheduler implements it.
type ResourceRetirer interface {
	Retire(ctx context.Context, resource scheduler.Resource, remove func(ctx context.Context) error) error
}

func retire(ctx context.Context, retirer ResourceRetirer, resource scheduler.Resource, remove func(ctx context.Context) error) error {
	if retirer == nil {
		return remove(ctx)
	}
	return retirer.Retire(ctx, resource, remove)
}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms       RoomRepository
	lookups     LookupReader
	events      EventQuerier
	retirer     ResourceRetirer
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, lookups LookupReader, events EventQuerier, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, lookups, events, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, lookups LookupReader, events EventQuerier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{
		rooms:       rooms,
		lookups:     lookups,
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// WithRetirer makes DeleteRoom hold the room's booking lock while deleting.
func (s *RoomService) WithRetirer(r ResourceRetirer) *RoomService {
	s.retirer = r
	return s
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for organizers.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}

	input := normalizeRoomInput(params.Input)
	if vErr := validateRoomInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = ensureLookup(ctx, s.lookups, LookupRoomType, input.RoomTypeID); err != nil {
		return
	}

	room = Room{
		ID:          s.idGenerator(),
		Name:        input.Name,
		RoomTypeID:  input.RoomTypeID,
		Capacity:    input.Capacity,
		Address:     input.Address,
		Description: input.Description,
		IsExternal:  input.IsExternal,
		ExternalURL: input.ExternalURL,
		CreatedAt:   s.now(),
	}
	room.UpdatedAt = room.CreatedAt

	if s.rooms == nil {
		return
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err, room.ID)
		return
	}

	room = persisted
	return
}

// UpdateRoom validates input and updates an existing room for organizers.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !params.Principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err, params.RoomID)
		return
	}

	input := normalizeRoomInput(params.Input)
	if vErr := validateRoomInput(input); vErr.HasErrors() {
		err = vErr
		return
	}
	if err = ensureLookup(ctx, s.lookups, LookupRoomType, input.RoomTypeID); err != nil {
		return
	}

	updated := existing
	updated.Name = input.Name
	updated.RoomTypeID = input.RoomTypeID
	updated.Capacity = input.Capacity
	updated.Address = input.Address
	updated.Description = input.Description
	updated.IsExternal = input.IsExternal
	updated.ExternalURL = input.ExternalURL
	updated.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err, params.RoomID)
		return
	}

	return
}

// DeleteRoom removes a room that holds no bookings.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !principal.CanOrganize() {
		return ErrUnauthorized
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	err := retire(ctx, s.retirer, scheduler.Room(roomID), func(ctx context.Context) error {
		return s.rooms.DeleteRoom(ctx, roomID)
	})
	if err != nil {
		err = mapRoomRepoError(err, roomID)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, principal Principal, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err, roomID)
	}
	return room, nil
}

// RoomDetails returns the room together with the events booked into it,
// ordered by start.
func (s *RoomService) RoomDetails(ctx context.Context, principal Principal, roomID string) (details RoomDetails, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RoomDetails",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load room details", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(details.Events)).InfoContext(ctx, "room details loaded")
	}()

	details.Room, err = s.GetRoom(ctx, principal, roomID)
	if err != nil {
		return
	}
	if s.events == nil {
		return
	}

	details.Events, err = s.events.QueryEvents(ctx, query.Spec{
		Where: query.UsesResource{Resource: scheduler.KeyOf(scheduler.Room(roomID))},
		Order: query.StartAscending,
	})
	if err != nil {
		err = translateStorageError(err)
	}
	return
}

// ListRooms returns the catalog of rooms for any authenticated user.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		err = translateStorageError(err)
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)

	sort.Slice(rooms, func(i, j int) bool {
		return byDisplayName(rooms[i].Name, rooms[i].ID, rooms[j].Name, rooms[j].ID)
	})

	return
}

func normalizeRoomInput(input RoomInput) RoomInput {
	input.Name = strings.TrimSpace(input.Name)
	input.RoomTypeID = strings.TrimSpace(input.RoomTypeID)
	input.Address = strings.TrimSpace(input.Address)
	input.Description = normalizeOptionalString(input.Description)
	input.ExternalURL = normalizeOptionalString(input.ExternalURL)
	return input
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.RoomTypeID == "" {
		vErr.add("room_type_id", "room type is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	validateExternalURL(vErr, input.ExternalURL)

	return vErr
}

// validateExternalURL accepts only absolute http(s) URLs.
func validateExternalURL(vErr *ValidationError, raw *string) {
	if raw == nil {
		return
	}
	u, err := url.Parse(*raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		vErr.add("external_url", "external url must be an absolute http(s) url")
	}
}

func mapRoomRepoError(err error, roomID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return notFound("room", roomID)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	return translateStorageError(err)
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// byDisplayName orders case-insensitively by name, breaking ties by ID.
func byDisplayName(nameA, idA, nameB, idB string) bool {
	a, b := strings.ToLower(nameA), strings.ToLower(nameB)
	if a == b {
		return idA < idB
	}
	return a < b
}
