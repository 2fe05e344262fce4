package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/scheduler"
)

func newSchedulerFixture(t *testing.T, eventIDs ...string) (*BookingScheduler, *memStore) {
	t.Helper()
	store := newMemStore()
	store.seedReference()
	for _, id := range eventIDs {
		store.events[id] = Event{ID: id, Name: id, OrganizerID: "org"}
	}
	now := fixedClock(at("2025-04-01 08:00"))
	return NewBookingScheduler(store, store, store, nil, now, discardLogger()), store
}

func TestBookingScheduler_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects an overlapping room booking of another event", func(t *testing.T) {
		sched, store := newSchedulerFixture(t, "E1", "E2")

		if _, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-17 18:00")); err != nil {
			t.Fatalf("reserve E1: %v", err)
		}

		_, err := sched.Reserve(ctx, "E2", scheduler.Room("R1"), at("2025-04-16 10:00"), at("2025-04-16 12:00"))
		if !errors.Is(err, ErrResourceConflict) {
			t.Fatalf("expected ErrResourceConflict, got %v", err)
		}
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected *ConflictError, got %T", err)
		}
		if conflict.Kind != scheduler.KindRoom || conflict.ResourceID != "R1" || conflict.ConflictingEventID != "E1" {
			t.Fatalf("unexpected conflict %+v", conflict)
		}
		if got := store.bookingCount(scheduler.Key{Kind: scheduler.KindRoom, ID: "R1"}); got != 1 {
			t.Fatalf("expected the failed reservation to leave no row, got %d bookings", got)
		}
	})

	t.Run("allows back to back employee bookings", func(t *testing.T) {
		sched, store := newSchedulerFixture(t, "E1", "E2")

		if _, err := sched.Reserve(ctx, "E1", scheduler.Employee("X"), at("2025-04-15 09:00"), at("2025-04-15 12:00")); err != nil {
			t.Fatalf("reserve E1: %v", err)
		}
		if _, err := sched.Reserve(ctx, "E2", scheduler.Employee("X"), at("2025-04-15 12:00"), at("2025-04-15 15:00")); err != nil {
			t.Fatalf("reserve E2: %v", err)
		}
		if got := store.bookingCount(scheduler.Key{Kind: scheduler.KindEmployee, ID: "X"}); got != 2 {
			t.Fatalf("expected 2 bookings, got %d", got)
		}
	})

	t.Run("rejects empty and inverted windows", func(t *testing.T) {
		sched, _ := newSchedulerFixture(t, "E1")

		_, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-15 09:00"))
		if !errors.Is(err, ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
		_, err = sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 10:00"), at("2025-04-15 09:00"))
		if !errors.Is(err, ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
	})

	t.Run("reports unknown resources and events", func(t *testing.T) {
		sched, _ := newSchedulerFixture(t, "E1")

		_, err := sched.Reserve(ctx, "E1", scheduler.Room("missing"), at("2025-04-15 09:00"), at("2025-04-15 10:00"))
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Entity != "room" || nf.ID != "missing" {
			t.Fatalf("expected room NotFoundError, got %v", err)
		}

		_, err = sched.Reserve(ctx, "nope", scheduler.Employee("X"), at("2025-04-15 09:00"), at("2025-04-15 10:00"))
		if !errors.As(err, &nf) || nf.Entity != "event" {
			t.Fatalf("expected event NotFoundError, got %v", err)
		}
	})

	t.Run("repeating a reservation keeps a single row", func(t *testing.T) {
		sched, store := newSchedulerFixture(t, "E1")

		first, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-15 10:00"))
		if err != nil {
			t.Fatalf("first reserve: %v", err)
		}
		second, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-15 10:00"))
		if err != nil {
			t.Fatalf("second reserve: %v", err)
		}
		if first != second {
			t.Fatalf("expected identical bookings, got %+v and %+v", first, second)
		}
		if got := store.bookingCount(scheduler.Key{Kind: scheduler.KindRoom, ID: "R1"}); got != 1 {
			t.Fatalf("expected 1 booking, got %d", got)
		}
	})

	t.Run("a new window for the same key replaces the stored interval", func(t *testing.T) {
		sched, store := newSchedulerFixture(t, "E1")

		if _, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-15 10:00")); err != nil {
			t.Fatalf("first reserve: %v", err)
		}
		if _, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:30"), at("2025-04-15 11:00")); err != nil {
			t.Fatalf("second reserve: %v", err)
		}

		stored, _ := store.ListBookingsForEvent(ctx, "E1")
		if len(stored) != 1 {
			t.Fatalf("expected 1 booking, got %d", len(stored))
		}
		if !stored[0].Start.Equal(at("2025-04-15 09:30")) || !stored[0].End.Equal(at("2025-04-15 11:00")) {
			t.Fatalf("expected updated interval, got %s - %s", stored[0].Start, stored[0].End)
		}
	})

	t.Run("storage overlap backstop surfaces as a conflict", func(t *testing.T) {
		sched, store := newSchedulerFixture(t, "E1")
		store.persistErr = fmt.Errorf("%w: exclusion constraint", persistence.ErrOverlap)

		_, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-15 10:00"))
		var conflict *ConflictError
		if !errors.As(err, &conflict) || conflict.ResourceID != "R1" {
			t.Fatalf("expected room conflict, got %v", err)
		}
	})

	t.Run("storage outages are reported as unavailable", func(t *testing.T) {
		sched, store := newSchedulerFixture(t, "E1")
		store.persistErr = fmt.Errorf("%w: connection refused", persistence.ErrUnavailable)

		_, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-15 10:00"))
		if !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}

func TestBookingScheduler_ConcurrentReservationsAdmitOne(t *testing.T) {
	const callers = 16

	ids := make([]string, callers)
	for i := range ids {
		ids[i] = fmt.Sprintf("E%d", i)
	}
	sched, store := newSchedulerFixture(t, ids...)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			offset := time.Duration(i) * time.Minute
			_, err := sched.Reserve(context.Background(), id, scheduler.Room("R1"),
				at("2025-04-15 09:00").Add(offset), at("2025-04-15 11:00").Add(offset))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrResourceConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i, id)
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != callers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", callers-1, successes, conflicts)
	}
	if got := store.bookingCount(scheduler.Key{Kind: scheduler.KindRoom, ID: "R1"}); got != 1 {
		t.Fatalf("expected 1 stored booking, got %d", got)
	}
}

// vanishingCatalog reports a room as registered only on its first lookup,
// as if the room were deleted right after the unlocked check.
type vanishingCatalog struct {
	*memStore
	mu    sync.Mutex
	calls int
}

func (c *vanishingCatalog) RoomExists(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()
	if !first {
		return false, nil
	}
	return c.memStore.RoomExists(ctx, id)
}

func TestBookingScheduler_ReserveRechecksResourceUnderLock(t *testing.T) {
	store := newMemStore()
	store.seedReference()
	store.events["E1"] = Event{ID: "E1", Name: "E1", OrganizerID: "org"}
	catalog := &vanishingCatalog{memStore: store}
	sched := NewBookingScheduler(catalog, store, store, nil, fixedClock(at("2025-04-01 08:00")), discardLogger())

	_, err := sched.Reserve(context.Background(), "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-15 10:00"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := store.bookingCount(scheduler.Key{Kind: scheduler.KindRoom, ID: "R1"}); got != 0 {
		t.Fatalf("expected no booking for a vanished room, got %d", got)
	}
}

func TestBookingScheduler_Retire(t *testing.T) {
	sched, _ := newSchedulerFixture(t)

	called := false
	err := sched.Retire(context.Background(), scheduler.Room("R1"), func(ctx context.Context) error {
		called = true
		return persistence.ErrForeignKeyViolation
	})
	if !called || !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected remove to run and its error to surface, called=%v err=%v", called, err)
	}

	if err := sched.Retire(context.Background(), nil, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected an error for a nil resource")
	}
}

func TestBookingScheduler_Release(t *testing.T) {
	ctx := context.Background()
	sched, store := newSchedulerFixture(t, "E1")

	if _, err := sched.Reserve(ctx, "E1", scheduler.Employee("X"), at("2025-04-15 09:00"), at("2025-04-15 10:00")); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := sched.Release(ctx, "E1", scheduler.Employee("X")); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	if got := store.bookingCount(scheduler.Key{Kind: scheduler.KindEmployee, ID: "X"}); got != 0 {
		t.Fatalf("expected no bookings after release, got %d", got)
	}
}

func TestBookingScheduler_ListConflicts(t *testing.T) {
	ctx := context.Background()
	sched, _ := newSchedulerFixture(t, "E1", "E2")

	if _, err := sched.Reserve(ctx, "E1", scheduler.Room("R1"), at("2025-04-15 09:00"), at("2025-04-17 18:00")); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := sched.Reserve(ctx, "E2", scheduler.Room("R1"), at("2025-04-18 09:00"), at("2025-04-18 10:00")); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	cases := []struct {
		name  string
		query ConflictQuery
		want  []string
	}{
		{
			name:  "overlap",
			query: ConflictQuery{Kind: scheduler.KindRoom, ResourceID: "R1", Start: at("2025-04-16 10:00"), End: at("2025-04-18 09:30")},
			want:  []string{"E1", "E2"},
		},
		{
			name:  "excluded event",
			query: ConflictQuery{Kind: scheduler.KindRoom, ResourceID: "R1", Start: at("2025-04-16 10:00"), End: at("2025-04-16 12:00"), ExcludeEventID: "E1"},
			want:  nil,
		},
		{
			name:  "touching boundary",
			query: ConflictQuery{Kind: scheduler.KindRoom, ResourceID: "R1", Start: at("2025-04-17 18:00"), End: at("2025-04-18 09:00")},
			want:  nil,
		},
		{
			name:  "other room",
			query: ConflictQuery{Kind: scheduler.KindRoom, ResourceID: "R2", Start: at("2025-04-16 10:00"), End: at("2025-04-16 12:00")},
			want:  nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sched.ListConflicts(ctx, tc.query)
			if err != nil {
				t.Fatalf("ListConflicts: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, got)
			}
			for i, b := range got {
				if b.EventID != tc.want[i] {
					t.Fatalf("expected %v, got %+v", tc.want, got)
				}
			}
		})
	}

	t.Run("validates the query", func(t *testing.T) {
		if _, err := sched.ListConflicts(ctx, ConflictQuery{Kind: scheduler.KindRoom, ResourceID: "R1", Start: at("2025-04-16 10:00"), End: at("2025-04-16 10:00")}); !errors.Is(err, ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
		var vErr *ValidationError
		if _, err := sched.ListConflicts(ctx, ConflictQuery{Kind: "desk", ResourceID: "R1", Start: at("2025-04-16 10:00"), End: at("2025-04-16 11:00")}); !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}
