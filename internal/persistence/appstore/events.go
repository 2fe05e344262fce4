package appstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/query"
	"github.com/example/event-booking/internal/scheduler"
)

// EventRepository adapts events and the read-side queries. The room and
// employees of an event are derived from its bookings.
type EventRepository struct {
	repo persistence.EventRepository
}

// NewEventRepository wraps repo.
func NewEventRepository(repo persistence.EventRepository) *EventRepository {
	return &EventRepository{repo: repo}
}

func (a *EventRepository) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

// CreateEvent stores event and bookings in one transaction.
func (a *EventRepository) CreateEvent(ctx context.Context, event application.Event, bookings []application.Booking) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event), toPersistenceBookings(bookings)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

// UpdateEvent rewrites event and replaces its booking set.
func (a *EventRepository) UpdateEvent(ctx context.Context, event application.Event, bookings []application.Booking) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event), toPersistenceBookings(bookings)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *EventRepository) QueryEvents(ctx context.Context, spec query.Spec) ([]application.EventSummary, error) {
	models, err := a.repo.QueryEvents(ctx, spec)
	if err != nil {
		return nil, err
	}
	summaries := make([]application.EventSummary, 0, len(models))
	for _, model := range models {
		summaries = append(summaries, toApplicationSummary(model))
	}
	return summaries, nil
}

func (a *EventRepository) CountEvents(ctx context.Context, where query.Predicate) (int, error) {
	return a.repo.CountEvents(ctx, where)
}

// BookingRepository adapts bookings, translating resource keys to their
// stored kind tags.
type BookingRepository struct {
	repo persistence.BookingRepository
}

// NewBookingRepository wraps repo.
func NewBookingRepository(repo persistence.BookingRepository) *BookingRepository {
	return &BookingRepository{repo: repo}
}

func (a *BookingRepository) ListBookingsOverlapping(ctx context.Context, key scheduler.Key, interval scheduler.Interval) ([]application.Booking, error) {
	models, err := a.repo.ListBookingsOverlapping(ctx, string(key.Kind), key.ID, interval.Start, interval.End)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models)
}

func (a *BookingRepository) ListBookingsForEvent(ctx context.Context, eventID string) ([]application.Booking, error) {
	models, err := a.repo.ListBookingsForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models)
}

func (a *BookingRepository) UpsertBookings(ctx context.Context, bookings []application.Booking) error {
	return a.repo.UpsertBookings(ctx, toPersistenceBookings(bookings))
}

func (a *BookingRepository) DeleteBooking(ctx context.Context, eventID string, key scheduler.Key) error {
	return a.repo.DeleteBooking(ctx, eventID, string(key.Kind), key.ID)
}

func toApplicationEvent(model persistence.EventWithBookings) application.Event {
	event := application.Event{
		ID:              model.Event.ID,
		Name:            model.Event.Name,
		Description:     model.Event.Description,
		Start:           model.Event.Start,
		End:             model.Event.End,
		MaxParticipants: model.Event.MaxParticipants,
		OrganizerID:     model.Event.OrganizerID,
		StatusID:        model.Event.StatusID,
		EventTypeID:     model.Event.EventTypeID,
		AgeCategoryID:   cloneString(model.Event.AgeCategoryID),
		CreatedAt:       model.Event.CreatedAt,
		UpdatedAt:       model.Event.UpdatedAt,
	}
	for _, booking := range model.Bookings {
		switch booking.ResourceKind {
		case string(scheduler.KindRoom):
			event.RoomID = booking.ResourceID
		case string(scheduler.KindEmployee):
			event.EmployeeIDs = append(event.EmployeeIDs, booking.ResourceID)
		}
	}
	sort.Strings(event.EmployeeIDs)
	return event
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:              event.ID,
		Name:            event.Name,
		Description:     event.Description,
		Start:           event.Start,
		End:             event.End,
		MaxParticipants: event.MaxParticipants,
		OrganizerID:     event.OrganizerID,
		StatusID:        event.StatusID,
		EventTypeID:     event.EventTypeID,
		AgeCategoryID:   cloneString(event.AgeCategoryID),
		CreatedAt:       event.CreatedAt,
		UpdatedAt:       event.UpdatedAt,
	}
}

func toApplicationSummary(model persistence.EventSummary) application.EventSummary {
	return application.EventSummary{
		ID:              model.Event.ID,
		Name:            model.Event.Name,
		Description:     model.Event.Description,
		Start:           model.Event.Start,
		End:             model.Event.End,
		MaxParticipants: model.Event.MaxParticipants,
		OrganizerID:     model.Event.OrganizerID,
		RoomID:          model.RoomID,
		RoomName:        model.RoomName,
		EventTypeName:   model.EventTypeName,
		StatusName:      model.StatusName,
		AgeCategoryName: model.AgeCategoryName,
	}
}

func toPersistenceBookings(bookings []application.Booking) []persistence.Booking {
	if len(bookings) == 0 {
		return nil
	}
	out := make([]persistence.Booking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, persistence.Booking{
			EventID:      b.EventID,
			ResourceKind: string(b.Kind),
			ResourceID:   b.ResourceID,
			Start:        b.Start,
			End:          b.End,
			CreatedAt:    b.CreatedAt,
		})
	}
	return out
}

func toApplicationBookings(models []persistence.Booking) ([]application.Booking, error) {
	out := make([]application.Booking, 0, len(models))
	for _, model := range models {
		kind, err := scheduler.ParseResourceKind(model.ResourceKind)
		if err != nil {
			return nil, fmt.Errorf("booking of event %s: %w", model.EventID, err)
		}
		out = append(out, application.Booking{
			EventID:    model.EventID,
			Kind:       kind,
			ResourceID: model.ResourceID,
			Start:      model.Start,
			End:        model.End,
			CreatedAt:  model.CreatedAt,
		})
	}
	return out, nil
}
