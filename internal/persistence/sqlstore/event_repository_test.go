package sqlstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/query"
	"github.com/example/event-booking/internal/scheduler"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("invalid time %q: %v", value, err)
	}
	return parsed
}

func testEvent(t *testing.T, id, start, end string) persistence.Event {
	t.Helper()
	return persistence.Event{
		ID:              id,
		Name:            "Event " + id,
		Start:           mustTime(t, start),
		End:             mustTime(t, end),
		MaxParticipants: 10,
		OrganizerID:     "org",
		StatusID:        "planned",
		EventTypeID:     "event-type-conference",
	}
}

func bookingsFor(event persistence.Event, roomID string, employeeIDs ...string) []persistence.Booking {
	bookings := []persistence.Booking{{
		EventID:      event.ID,
		ResourceKind: string(scheduler.KindRoom),
		ResourceID:   roomID,
		Start:        event.Start,
		End:          event.End,
	}}
	for _, id := range employeeIDs {
		bookings = append(bookings, persistence.Booking{
			EventID:      event.ID,
			ResourceKind: string(scheduler.KindEmployee),
			ResourceID:   id,
			Start:        event.Start,
			End:          event.End,
		})
	}
	return bookings
}

func TestEventRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	age := "age-18"
	event := testEvent(t, "e1", "2025-04-15T09:00:00Z", "2025-04-17T18:00:00Z")
	event.AgeCategoryID = &age
	if err := storage.CreateEvent(ctx, event, bookingsFor(event, "r1", "x", "y")); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	got, err := storage.GetEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if !got.Event.Start.Equal(event.Start) || !got.Event.End.Equal(event.End) {
		t.Fatalf("unexpected event window: %v - %v", got.Event.Start, got.Event.End)
	}
	if got.Event.AgeCategoryID == nil || *got.Event.AgeCategoryID != age {
		t.Fatalf("expected age category %q, got %v", age, got.Event.AgeCategoryID)
	}
	if len(got.Bookings) != 3 {
		t.Fatalf("expected 3 bookings, got %d", len(got.Bookings))
	}
	if got.Bookings[0].ResourceKind != string(scheduler.KindRoom) || got.Bookings[0].ResourceID != "r1" {
		t.Fatalf("expected the room booking first, got %#v", got.Bookings[0])
	}

	if _, err := storage.GetEvent(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventRepository_RoomOverlapIsRejected(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	first := testEvent(t, "e1", "2025-04-15T09:00:00Z", "2025-04-17T18:00:00Z")
	if err := storage.CreateEvent(ctx, first, bookingsFor(first, "r1")); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	second := testEvent(t, "e2", "2025-04-16T10:00:00Z", "2025-04-16T12:00:00Z")
	err := storage.CreateEvent(ctx, second, bookingsFor(second, "r1"))
	if !errors.Is(err, persistence.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	if _, err := storage.GetEvent(ctx, "e2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the failed event to be rolled back, got %v", err)
	}
}

func TestBookingRepository_HalfOpenBoundary(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	morning := testEvent(t, "e1", "2025-05-01T09:00:00Z", "2025-05-01T10:00:00Z")
	if err := storage.CreateEvent(ctx, morning, bookingsFor(morning, "r1", "x")); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	touching := testEvent(t, "e2", "2025-05-01T10:00:00Z", "2025-05-01T11:00:00Z")
	if err := storage.CreateEvent(ctx, touching, bookingsFor(touching, "r2", "x")); err != nil {
		t.Fatalf("expected touching intervals to be allowed, got %v", err)
	}

	overlapping, err := storage.ListBookingsOverlapping(ctx, string(scheduler.KindEmployee), "x",
		mustTime(t, "2025-05-01T09:30:00Z"), mustTime(t, "2025-05-01T10:30:00Z"))
	if err != nil {
		t.Fatalf("ListBookingsOverlapping failed: %v", err)
	}
	if len(overlapping) != 2 || overlapping[0].EventID != "e1" || overlapping[1].EventID != "e2" {
		t.Fatalf("unexpected overlapping bookings: %#v", overlapping)
	}

	atBoundary, err := storage.ListBookingsOverlapping(ctx, string(scheduler.KindEmployee), "x",
		mustTime(t, "2025-05-01T11:00:00Z"), mustTime(t, "2025-05-01T12:00:00Z"))
	if err != nil {
		t.Fatalf("ListBookingsOverlapping failed: %v", err)
	}
	if len(atBoundary) != 0 {
		t.Fatalf("expected no bookings touching the window end, got %#v", atBoundary)
	}
}

func TestBookingRepository_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	event := testEvent(t, "e1", "2025-05-01T09:00:00Z", "2025-05-01T10:00:00Z")
	if err := storage.CreateEvent(ctx, event, bookingsFor(event, "r1")); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	extra := bookingsFor(event, "r1", "x")[1:]
	for i := 0; i < 2; i++ {
		if err := storage.UpsertBookings(ctx, extra); err != nil {
			t.Fatalf("UpsertBookings #%d failed: %v", i+1, err)
		}
	}
	bookings, err := storage.ListBookingsForEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("ListBookingsForEvent failed: %v", err)
	}
	if len(bookings) != 2 {
		t.Fatalf("expected repeated upserts to keep 2 bookings, got %d", len(bookings))
	}

	secondRoom := bookingsFor(event, "r2")
	if err := storage.UpsertBookings(ctx, secondRoom); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a second room booking, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := storage.DeleteBooking(ctx, "e1", string(scheduler.KindEmployee), "x"); err != nil {
			t.Fatalf("DeleteBooking #%d failed: %v", i+1, err)
		}
	}
	bookings, err = storage.ListBookingsForEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("ListBookingsForEvent failed: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("expected 1 booking after delete, got %d", len(bookings))
	}
}

func TestBookingRepository_TriggerRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	a := testEvent(t, "a", "2025-05-01T09:00:00Z", "2025-05-01T10:00:00Z")
	b := testEvent(t, "b", "2025-05-01T11:00:00Z", "2025-05-01T12:00:00Z")
	for _, e := range []persistence.Event{a, b} {
		if err := storage.CreateEvent(ctx, e, nil); err != nil {
			t.Fatalf("CreateEvent(%s) failed: %v", e.ID, err)
		}
	}
	if err := storage.UpsertBookings(ctx, bookingsFor(a, "r1", "x")[1:]); err != nil {
		t.Fatalf("UpsertBookings failed: %v", err)
	}

	moved := bookingsFor(b, "r1", "x")[1:]
	moved[0].Start = mustTime(t, "2025-05-01T09:59:00Z")
	if err := storage.UpsertBookings(ctx, moved); !errors.Is(err, persistence.ErrOverlap) {
		t.Fatalf("expected ErrOverlap from the storage backstop, got %v", err)
	}
}

func TestEventRepository_UpdateReplacesBookings(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	event := testEvent(t, "e1", "2025-05-01T09:00:00Z", "2025-05-01T10:00:00Z")
	if err := storage.CreateEvent(ctx, event, bookingsFor(event, "r1", "x")); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	event.Start = mustTime(t, "2025-05-02T09:00:00Z")
	event.End = mustTime(t, "2025-05-02T12:00:00Z")
	event.StatusID = "active"
	if err := storage.UpdateEvent(ctx, event, bookingsFor(event, "r2", "x")); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	got, err := storage.GetEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if got.Event.StatusID != "active" || len(got.Bookings) != 2 {
		t.Fatalf("unexpected event after update: %#v", got)
	}
	for _, b := range got.Bookings {
		if !b.Start.Equal(event.Start) || !b.End.Equal(event.End) {
			t.Fatalf("booking %s not moved to the new window: %v - %v", b.ResourceID, b.Start, b.End)
		}
		if b.ResourceKind == string(scheduler.KindRoom) && b.ResourceID != "r2" {
			t.Fatalf("expected room r2, got %s", b.ResourceID)
		}
	}

	missing := testEvent(t, "missing", "2025-05-02T09:00:00Z", "2025-05-02T12:00:00Z")
	if err := storage.UpdateEvent(ctx, missing, nil); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a missing event, got %v", err)
	}
}

func TestEventRepository_DeleteCascadesAndFreesResources(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	event := testEvent(t, "e1", "2025-05-01T09:00:00Z", "2025-05-01T10:00:00Z")
	if err := storage.CreateEvent(ctx, event, bookingsFor(event, "r1", "x")); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if err := storage.DeleteRoom(ctx, "r1"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation deleting a booked room, got %v", err)
	}
	if err := storage.DeleteEmployee(ctx, "x"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation deleting a booked employee, got %v", err)
	}
	if err := storage.DeleteUser(ctx, "org"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation deleting an organizer, got %v", err)
	}

	if err := storage.DeleteEvent(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if err := storage.DeleteEvent(ctx, "e1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}

	bookings, err := storage.ListBookingsForEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("ListBookingsForEvent failed: %v", err)
	}
	if len(bookings) != 0 {
		t.Fatalf("expected bookings to be removed, got %d", len(bookings))
	}
	if err := storage.DeleteRoom(ctx, "r1"); err != nil {
		t.Fatalf("expected the room to be deletable once free, got %v", err)
	}
}

func TestEventRepository_QueryEvents(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedCatalog(t, storage)

	age := "age-18"
	events := []struct {
		event    persistence.Event
		room     string
		employee string
	}{
		{testEvent(t, "a", "2025-04-01T09:00:00Z", "2025-04-01T10:00:00Z"), "r1", "x"},
		{testEvent(t, "b", "2025-04-10T09:00:00Z", "2025-04-12T18:00:00Z"), "r2", ""},
		{testEvent(t, "c", "2025-04-20T09:00:00Z", "2025-04-30T23:59:59Z"), "r1", "y"},
		{testEvent(t, "d", "2025-04-29T09:00:00Z", "2025-05-02T10:00:00Z"), "r2", "x"},
	}
	events[1].event.MaxParticipants = 50
	events[2].event.AgeCategoryID = &age
	events[2].event.StatusID = "completed"
	for _, e := range events {
		var bookings []persistence.Booking
		if e.employee != "" {
			bookings = bookingsFor(e.event, e.room, e.employee)
		} else {
			bookings = bookingsFor(e.event, e.room)
		}
		if err := storage.CreateEvent(ctx, e.event, bookings); err != nil {
			t.Fatalf("CreateEvent(%s) failed: %v", e.event.ID, err)
		}
	}

	april := query.WithinRange{From: mustTime(t, "2025-04-01T00:00:00Z"), To: mustTime(t, "2025-04-30T23:59:59Z")}

	cases := []struct {
		name string
		spec query.Spec
		want []string
	}{
		{"activity report", query.Spec{Where: query.All(april)}, []string{"a", "b", "c"}},
		{"report by employee", query.Spec{Where: query.All(april, query.UsesResource{Resource: scheduler.Key{Kind: scheduler.KindEmployee, ID: "x"}})}, []string{"a"}},
		{"report by room", query.Spec{Where: query.All(april, query.UsesResource{Resource: scheduler.Key{Kind: scheduler.KindRoom, ID: "r1"}})}, []string{"a", "c"}},
		{"report by participants", query.Spec{Where: query.All(april, query.MinParticipants{N: 20})}, []string{"b"}},
		{"report by age and status", query.Spec{Where: query.All(april, query.AgeCategoryIs{ID: age}, query.StatusIs{ID: "completed"})}, []string{"c"}},
		{"report by event", query.Spec{Where: query.All(april, query.EventIs{ID: "b"})}, []string{"b"}},
		{"on date", query.Spec{Where: query.OnDate{Date: mustTime(t, "2025-04-30T00:00:00Z"), Location: time.UTC}}, []string{"c", "d"}},
		{"on date and type", query.Spec{Where: query.All(query.OnDate{Date: mustTime(t, "2025-04-11T00:00:00Z"), Location: time.UTC}, query.TypeIs{ID: "event-type-conference"})}, []string{"b"}},
		{"upcoming", query.Spec{Where: query.StartsAfter{At: mustTime(t, "2025-04-10T09:00:00Z")}, Limit: 1}, []string{"c"}},
		{"recent first", query.Spec{Where: query.OrganizedBy{UserID: "org"}, Order: query.StartDescending, Limit: 2}, []string{"d", "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summaries, err := storage.QueryEvents(ctx, tc.spec)
			if err != nil {
				t.Fatalf("QueryEvents failed: %v", err)
			}
			got := make([]string, 0, len(summaries))
			for _, s := range summaries {
				got = append(got, s.Event.ID)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	summaries, err := storage.QueryEvents(ctx, query.Spec{Where: query.EventIs{ID: "c"}})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	c := summaries[0]
	if c.RoomID != "r1" || c.RoomName != "Main hall" || c.EventTypeName != "Conference" || c.StatusName != "Completed" || c.AgeCategoryName != "18+" {
		t.Fatalf("unexpected summary: %#v", c)
	}

	count, err := storage.CountEvents(ctx, query.OrganizedBy{UserID: "org"})
	if err != nil {
		t.Fatalf("CountEvents failed: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 events, got %d", count)
	}
}

func TestEventQueryCompiler(t *testing.T) {
	compiler := NewEventQueryCompiler(DialectPostgres)
	clause, args, err := compiler.Where(query.All(query.TypeIs{ID: "t"}, query.MinParticipants{N: 5}))
	if err != nil {
		t.Fatalf("Where failed: %v", err)
	}
	if clause != "(e.event_type_id = ? AND e.max_participants >= ?)" {
		t.Fatalf("unexpected clause %q", clause)
	}
	if len(args) != 2 || args[0] != "t" || args[1] != 5 {
		t.Fatalf("unexpected args %#v", args)
	}

	stmt, args, err := compiler.Select(query.Spec{Where: query.StatusIs{ID: "s"}, Order: query.StartDescending, Limit: 3})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !strings.Contains(stmt, "ORDER BY e.start_time DESC, e.id ASC") || !strings.HasSuffix(stmt, "LIMIT ?") {
		t.Fatalf("unexpected statement:\n%s", stmt)
	}
	if len(args) != 3 || args[0] != string(scheduler.KindRoom) || args[1] != "s" || args[2] != 3 {
		t.Fatalf("unexpected args %#v", args)
	}
	rebound := DialectPostgres.Rebind(stmt)
	if !strings.Contains(rebound, "rb.resource_kind = $1") || !strings.Contains(rebound, "LIMIT $3") {
		t.Fatalf("unexpected rebound statement:\n%s", rebound)
	}
}
