package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/event-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const bookingColumns = `event_id, resource_kind, resource_id, start_time, end_time, created_at`

// ListBookingsOverlapping returns the bookings of one resource that overlap
// the half-open window [start, end), ordered by start then event ID.
func (r *BookingRepository) ListBookingsOverlapping(ctx context.Context, kind, resourceID string, start, end time.Time) ([]persistence.Booking, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE resource_kind = ? AND resource_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time ASC, event_id ASC
	`, kind, resourceID, r.helper.Time(end), r.helper.Time(start))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return collectBookings(rows, r.mapper)
}

// ListBookingsForEvent returns every booking held by an event.
func (r *BookingRepository) ListBookingsForEvent(ctx context.Context, eventID string) ([]persistence.Booking, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE event_id = ?
		ORDER BY resource_kind DESC, resource_id ASC
	`, eventID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return collectBookings(rows, r.mapper)
}

// UpsertBookings inserts the bookings or moves existing ones to their new
// window, all in one transaction.
func (r *BookingRepository) UpsertBookings(ctx context.Context, bookings []persistence.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return upsertBookingsTx(ctx, tx, r.helper, r.mapper, bookings)
	})
}

// DeleteBooking removes one booking. Deleting a missing booking is not an error.
func (r *BookingRepository) DeleteBooking(ctx context.Context, eventID, kind, resourceID string) error {
	_, err := r.helper.Exec(ctx,
		`DELETE FROM bookings WHERE event_id = ? AND resource_kind = ? AND resource_id = ?`,
		eventID, kind, resourceID,
	)
	return r.mapper.MapError(err)
}

func upsertBookingsTx(ctx context.Context, tx *sql.Tx, helper *QueryHelper, mapper *ErrorMapper, bookings []persistence.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id, resource_kind, resource_id)
		DO UPDATE SET start_time = excluded.start_time, end_time = excluded.end_time
	`
	for _, b := range bookings {
		if b.EventID == "" || b.ResourceKind == "" || b.ResourceID == "" || !b.End.After(b.Start) {
			return persistence.ErrConstraintViolation
		}
		if _, err := helper.ExecTx(ctx, tx, query,
			b.EventID,
			b.ResourceKind,
			b.ResourceID,
			helper.Time(b.Start),
			helper.Time(b.End),
			helper.Time(nowIfZero(b.CreatedAt)),
		); err != nil {
			return mapper.MapError(err)
		}
	}
	return nil
}

func collectBookings(rows *sql.Rows, mapper *ErrorMapper) ([]persistence.Booking, error) {
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		var (
			b                   persistence.Booking
			start, end, created timeColumn
		)
		if err := rows.Scan(&b.EventID, &b.ResourceKind, &b.ResourceID, &start, &end, &created); err != nil {
			return nil, mapper.MapError(err)
		}
		b.Start, b.End, b.CreatedAt = start.Time, end.Time, created.Time
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return bookings, nil
}
