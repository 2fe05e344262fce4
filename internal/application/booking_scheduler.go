package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/scheduler"
)

// BookingRepository reads and writes the allocation index: the bookings held
// by each resource key.
type BookingRepository interface {
	ListBookingsOverlapping(ctx context.Context, key scheduler.Key, interval scheduler.Interval) ([]Booking, error)
	ListBookingsForEvent(ctx context.Context, eventID string) ([]Booking, error)
	UpsertBookings(ctx context.Context, bookings []Booking) error
	DeleteBooking(ctx context.Context, eventID string, key scheduler.Key) error
}

// EventFinder loads events by ID.
type EventFinder interface {
	GetEvent(ctx context.Context, id string) (Event, error)
}

// BookingScheduler allocates rooms and employees to events and rejects
// overlapping allocations of the same resource across different events.
//
// Every check-and-commit section holds the Locker for the affected keys, so
// two callers can never both pass the overlap check for one resource.
type BookingScheduler struct {
	catalog  scheduler.Catalog
	events   EventFinder
	bookings BookingRepository
	locker   scheduler.Locker
	now      func() time.Time
	logger   *slog.Logger
}

// NewBookingScheduler constructs a scheduler. A nil locker falls back to an
// in-process scheduler.KeyedMutex.
func NewBookingScheduler(catalog scheduler.Catalog, events EventFinder, bookings BookingRepository, locker scheduler.Locker, now func() time.Time, logger *slog.Logger) *BookingScheduler {
	if locker == nil {
		locker = scheduler.NewKeyedMutex()
	}
	if now == nil {
		now = time.Now
	}
	return &BookingScheduler{
		catalog:  catalog,
		events:   events,
		bookings: bookings,
		locker:   locker,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

func (s *BookingScheduler) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingScheduler", operation, attrs...)
}

// Reserve books resource for eventID over [start, end). Repeating a
// reservation with the same interval is a no-op returning the stored booking.
func (s *BookingScheduler) Reserve(ctx context.Context, eventID string, resource scheduler.Resource, start, end time.Time) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingScheduler is nil")
		return
	}
	if resource == nil {
		err = fmt.Errorf("resource is required")
		return
	}

	logger := s.loggerWith(ctx, "Reserve",
		"event_id", eventID,
		"resource", scheduler.KeyOf(resource).String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reservation rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "resource reserved")
	}()

	interval, ierr := scheduler.NewInterval(start, end)
	if ierr != nil {
		err = ErrInvalidTimeRange
		return
	}
	if err = s.ensureResource(ctx, resource); err != nil {
		return
	}
	if err = s.ensureEvent(ctx, eventID); err != nil {
		return
	}

	booking = Booking{
		EventID:    eventID,
		Kind:       resource.Kind(),
		ResourceID: resource.ID(),
		Start:      interval.Start,
		End:        interval.End,
		CreatedAt:  s.now(),
	}

	err = s.commit(ctx, []Booking{booking}, true, func(ctx context.Context) error {
		return translateStorageError(s.bookings.UpsertBookings(ctx, []Booking{booking}))
	})
	if errors.Is(err, ErrDuplicateBooking) {
		logger.DebugContext(ctx, "reservation already stored")
		booking, err = s.storedBooking(ctx, booking)
	}
	return
}

func (s *BookingScheduler) storedBooking(ctx context.Context, want Booking) (Booking, error) {
	stored, err := s.bookings.ListBookingsForEvent(ctx, want.EventID)
	if err != nil {
		return Booking{}, translateStorageError(err)
	}
	for _, b := range stored {
		if b.Key() == want.Key() {
			return b, nil
		}
	}
	return want, nil
}

// Release removes the booking of resource by eventID. Releasing a booking
// that does not exist is not an error.
func (s *BookingScheduler) Release(ctx context.Context, eventID string, resource scheduler.Resource) error {
	if s == nil {
		return fmt.Errorf("BookingScheduler is nil")
	}
	if resource == nil {
		return fmt.Errorf("resource is required")
	}
	key := scheduler.KeyOf(resource)
	logger := s.loggerWith(ctx, "Release", "event_id", eventID, "resource", key.String())

	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.bookings.DeleteBooking(ctx, eventID, key); err != nil {
		err = translateStorageError(err)
		logger.ErrorContext(ctx, "failed to release booking", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "booking released")
	return nil
}

// ListConflicts previews the bookings that would block reserving the
// resource over [start, end), ordered by start. It never mutates state.
func (s *BookingScheduler) ListConflicts(ctx context.Context, q ConflictQuery) ([]Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("BookingScheduler is nil")
	}
	interval, err := scheduler.NewInterval(q.Start, q.End)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}
	key := scheduler.Key{Kind: q.Kind, ID: q.ResourceID}
	if _, err := key.Resource(); err != nil {
		vErr := &ValidationError{}
		vErr.add("kind", "unknown resource kind")
		return nil, vErr
	}

	existing, err := s.bookings.ListBookingsOverlapping(ctx, key, interval)
	if err != nil {
		return nil, translateStorageError(err)
	}

	candidate := scheduler.Booking{EventID: q.ExcludeEventID, Resource: key, Interval: interval}
	conflicts := scheduler.DetectConflicts(toSchedulerBookings(existing), candidate)

	out := make([]Booking, 0, len(conflicts))
	for _, c := range conflicts {
		for _, b := range existing {
			if b.EventID == c.WithEventID {
				out = append(out, b)
				break
			}
		}
	}
	return out, nil
}

// Guard is the check-and-commit primitive used by the event manager. It
// verifies every candidate resource exists, locks all candidate keys, checks
// each candidate against the stored bookings and runs persist while the
// locks are held.
func (s *BookingScheduler) Guard(ctx context.Context, candidates []Booking, persist func(ctx context.Context) error) error {
	if s == nil {
		return fmt.Errorf("BookingScheduler is nil")
	}
	for _, c := range candidates {
		if !c.End.After(c.Start) {
			return ErrInvalidTimeRange
		}
		resource, err := c.Key().Resource()
		if err != nil {
			return err
		}
		if err := s.ensureResource(ctx, resource); err != nil {
			return err
		}
	}

	return s.commit(ctx, candidates, false, persist)
}

// commit locks the candidate keys, rejects overlaps and runs persist. With
// skipStored set and every candidate already stored unchanged it returns
// ErrDuplicateBooking without calling persist. Guard leaves it unset because
// persist also writes event attributes that the bookings do not capture.
func (s *BookingScheduler) commit(ctx context.Context, candidates []Booking, skipStored bool, persist func(ctx context.Context) error) error {
	if s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}

	keys := make([]scheduler.Key, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, c.Key())
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	// Repeated under the lock so a concurrent Retire cannot slip in between.
	for _, c := range candidates {
		resource, err := c.Key().Resource()
		if err != nil {
			return err
		}
		if err := s.ensureResource(ctx, resource); err != nil {
			return err
		}
	}

	duplicates := 0
	for _, c := range candidates {
		candidate := c.toScheduler()
		existing, err := s.bookings.ListBookingsOverlapping(ctx, c.Key(), candidate.Interval)
		if err != nil {
			return translateStorageError(err)
		}
		stored := toSchedulerBookings(existing)
		if conflicts := scheduler.DetectConflicts(stored, candidate); len(conflicts) > 0 {
			return &ConflictError{
				Kind:               c.Kind,
				ResourceID:         c.ResourceID,
				ConflictingEventID: conflicts[0].WithEventID,
			}
		}
		if scheduler.IsDuplicate(stored, candidate) {
			duplicates++
		}
	}
	if skipStored && len(candidates) > 0 && duplicates == len(candidates) {
		return ErrDuplicateBooking
	}

	if err := persist(ctx); err != nil {
		return s.mapCommitError(ctx, candidates, err)
	}
	return nil
}

// Retire runs remove while holding the lock of resource. Catalog deletes go
// through it so that no reservation can commit against a room or employee
// that is being removed.
func (s *BookingScheduler) Retire(ctx context.Context, resource scheduler.Resource, remove func(ctx context.Context) error) error {
	if s == nil {
		return fmt.Errorf("BookingScheduler is nil")
	}
	if resource == nil {
		return fmt.Errorf("resource is required")
	}
	unlock, err := s.locker.Lock(ctx, scheduler.KeyOf(resource))
	if err != nil {
		return err
	}
	defer unlock()
	return remove(ctx)
}

// mapCommitError translates storage failures of persist. An overlap reported
// by the storage backstop is resolved into the conflicting event when it can
// still be read.
func (s *BookingScheduler) mapCommitError(ctx context.Context, candidates []Booking, err error) error {
	if !errors.Is(err, persistence.ErrOverlap) {
		return err
	}
	for _, c := range candidates {
		candidate := c.toScheduler()
		existing, lerr := s.bookings.ListBookingsOverlapping(ctx, c.Key(), candidate.Interval)
		if lerr != nil {
			break
		}
		if conflicts := scheduler.DetectConflicts(toSchedulerBookings(existing), candidate); len(conflicts) > 0 {
			return &ConflictError{Kind: c.Kind, ResourceID: c.ResourceID, ConflictingEventID: conflicts[0].WithEventID}
		}
	}
	first := Booking{}
	if len(candidates) > 0 {
		first = candidates[0]
	}
	return &ConflictError{Kind: first.Kind, ResourceID: first.ResourceID}
}

func (s *BookingScheduler) ensureResource(ctx context.Context, resource scheduler.Resource) error {
	if s.catalog == nil {
		return nil
	}
	ok, err := resource.Exists(ctx, s.catalog)
	if err != nil {
		return translateStorageError(err)
	}
	if !ok {
		return notFound(string(resource.Kind()), resource.ID())
	}
	return nil
}

func (s *BookingScheduler) ensureEvent(ctx context.Context, eventID string) error {
	if s.events == nil {
		return nil
	}
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		if isNotFound(err) {
			return notFound("event", eventID)
		}
		return translateStorageError(err)
	}
	return nil
}

func toSchedulerBookings(bookings []Booking) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.toScheduler())
	}
	return out
}
