package sqlstore

import (
	"context"
	"database/sql"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/query"
)

// EventRepository implements persistence.EventRepository. Events and their
// bookings are always written together in one transaction.
type EventRepository struct {
	pool     *ConnectionPool
	helper   *QueryHelper
	mapper   *ErrorMapper
	compiler EventQueryCompiler
}

// NewEventRepository creates a new event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:     pool,
		helper:   NewQueryHelper(pool),
		mapper:   NewErrorMapper(),
		compiler: NewEventQueryCompiler(pool.Dialect()),
	}
}

const eventColumns = `id, name, description, start_time, end_time, max_participants, organizer_id, status_id, event_type_id, age_category_id, created_at, updated_at`

// CreateEvent inserts the event and its bookings.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event, bookings []persistence.Booking) error {
	if event.ID == "" || event.MaxParticipants <= 0 || !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}

	event.CreatedAt = nowIfZero(event.CreatedAt)
	event.UpdatedAt = nowIfZero(event.UpdatedAt)

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			event.ID,
			event.Name,
			event.Description,
			r.helper.Time(event.Start),
			r.helper.Time(event.End),
			event.MaxParticipants,
			event.OrganizerID,
			event.StatusID,
			event.EventTypeID,
			event.AgeCategoryID,
			r.helper.Time(event.CreatedAt),
			r.helper.Time(event.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return upsertBookingsTx(ctx, tx, r.helper, r.mapper, bookings)
	})
}

// UpdateEvent updates the event row and replaces its whole booking set.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event, bookings []persistence.Booking) error {
	if event.ID == "" || event.MaxParticipants <= 0 || !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}

	event.UpdatedAt = nowIfZero(event.UpdatedAt)

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE events
			SET name = ?, description = ?, start_time = ?, end_time = ?, max_participants = ?,
			    status_id = ?, event_type_id = ?, age_category_id = ?, updated_at = ?
			WHERE id = ?
		`,
			event.Name,
			event.Description,
			r.helper.Time(event.Start),
			r.helper.Time(event.End),
			event.MaxParticipants,
			event.StatusID,
			event.EventTypeID,
			event.AgeCategoryID,
			r.helper.Time(event.UpdatedAt),
			event.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM bookings WHERE event_id = ?`, event.ID); err != nil {
			return r.mapper.MapError(err)
		}
		return upsertBookingsTx(ctx, tx, r.helper, r.mapper, bookings)
	})
}

// GetEvent retrieves an event together with its bookings.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.EventWithBookings, error) {
	if id == "" {
		return persistence.EventWithBookings{}, persistence.ErrNotFound
	}

	event, err := scanEvent(r.helper.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return persistence.EventWithBookings{}, r.mapper.MapError(err)
	}

	rows, err := r.helper.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE event_id = ?
		ORDER BY resource_kind DESC, resource_id ASC
	`, id)
	if err != nil {
		return persistence.EventWithBookings{}, r.mapper.MapError(err)
	}
	bookings, err := collectBookings(rows, r.mapper)
	if err != nil {
		return persistence.EventWithBookings{}, err
	}

	return persistence.EventWithBookings{Event: event, Bookings: bookings}, nil
}

// DeleteEvent removes the bookings of an event and then the event itself.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM bookings WHERE event_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

// QueryEvents lists the events selected by spec joined with their room and
// lookup names.
func (r *EventRepository) QueryEvents(ctx context.Context, spec query.Spec) ([]persistence.EventSummary, error) {
	stmt, args, err := r.compiler.Select(spec)
	if err != nil {
		return nil, err
	}

	rows, err := r.helper.Query(ctx, stmt, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var summaries []persistence.EventSummary
	for rows.Next() {
		summary, err := scanEventSummary(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return summaries, nil
}

// CountEvents counts the events matching where.
func (r *EventRepository) CountEvents(ctx context.Context, where query.Predicate) (int, error) {
	clause, args, err := r.compiler.Where(where)
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM events e WHERE `+clause, args...).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event persistence.Event
		times eventTimes
	)
	if err := row.Scan(times.dest(&event)...); err != nil {
		return persistence.Event{}, err
	}
	times.apply(&event)
	return event, nil
}

func scanEventSummary(row rowScanner) (persistence.EventSummary, error) {
	var (
		summary persistence.EventSummary
		times   eventTimes
	)
	dest := append(times.dest(&summary.Event),
		&summary.RoomID,
		&summary.RoomName,
		&summary.RoomAddress,
		&summary.EventTypeName,
		&summary.StatusName,
		&summary.AgeCategoryName,
	)
	if err := row.Scan(dest...); err != nil {
		return persistence.EventSummary{}, err
	}
	times.apply(&summary.Event)
	return summary, nil
}

// eventTimes holds the scan targets of the event columns that need conversion.
type eventTimes struct {
	start, end, created, updated timeColumn
	ageCategory                  sql.NullString
}

// dest lists scan targets in eventColumns order.
func (t *eventTimes) dest(event *persistence.Event) []any {
	return []any{
		&event.ID,
		&event.Name,
		&event.Description,
		&t.start,
		&t.end,
		&event.MaxParticipants,
		&event.OrganizerID,
		&event.StatusID,
		&event.EventTypeID,
		&t.ageCategory,
		&t.created,
		&t.updated,
	}
}

func (t *eventTimes) apply(event *persistence.Event) {
	event.Start = t.start.Time
	event.End = t.end.Time
	event.CreatedAt = t.created.Time
	event.UpdatedAt = t.updated.Time
	event.AgeCategoryID = stringPtr(t.ageCategory)
}
