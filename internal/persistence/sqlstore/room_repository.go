package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/scheduler"
)

// RoomRepository implements persistence.RoomRepository
type RoomRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const roomColumns = `id, name, room_type_id, capacity, address, description, is_external, external_url, created_at, updated_at`

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	room.CreatedAt = nowIfZero(room.CreatedAt)
	room.UpdatedAt = nowIfZero(room.UpdatedAt)

	query := `
		INSERT INTO rooms (` + roomColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		room.ID,
		room.Name,
		room.RoomTypeID,
		room.Capacity,
		room.Address,
		room.Description,
		room.IsExternal,
		room.ExternalURL,
		r.helper.Time(room.CreatedAt),
		r.helper.Time(room.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	room.UpdatedAt = nowIfZero(room.UpdatedAt)

	query := `
		UPDATE rooms
		SET name = ?, room_type_id = ?, capacity = ?, address = ?, description = ?,
		    is_external = ?, external_url = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		room.Name,
		room.RoomTypeID,
		room.Capacity,
		room.Address,
		room.Description,
		room.IsExternal,
		room.ExternalURL,
		r.helper.Time(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetRoom retrieves a room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name (case-insensitive) then ID
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY lower(name) ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// RoomExists reports whether a room with the ID is stored.
func (r *RoomRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.helper, r.mapper, `SELECT 1 FROM rooms WHERE id = ?`, id)
}

// DeleteRoom removes a room that holds no bookings. A room that is still
// booked yields persistence.ErrForeignKeyViolation.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return deleteResource(ctx, tx, r.helper, r.mapper, scheduler.KindRoom, "rooms", id)
	})
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                persistence.Room
		description, extURL sql.NullString
		created, updated    timeColumn
	)
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.RoomTypeID,
		&room.Capacity,
		&room.Address,
		&description,
		&room.IsExternal,
		&extURL,
		&created,
		&updated,
	); err != nil {
		return persistence.Room{}, err
	}
	room.Description = stringPtr(description)
	room.ExternalURL = stringPtr(extURL)
	room.CreatedAt = created.Time
	room.UpdatedAt = updated.Time
	return room, nil
}

// deleteResource deletes a room or employee row unless bookings still
// reference it. table is one of the fixed catalog table names.
func deleteResource(ctx context.Context, tx *sql.Tx, helper *QueryHelper, mapper *ErrorMapper, kind scheduler.ResourceKind, table, id string) error {
	var booked int
	err := helper.QueryRowTx(ctx, tx,
		`SELECT COUNT(*) FROM bookings WHERE resource_kind = ? AND resource_id = ?`,
		string(kind), id,
	).Scan(&booked)
	if err != nil {
		return mapper.MapError(err)
	}
	if booked > 0 {
		return fmt.Errorf("%w: %s %s holds %d bookings", persistence.ErrForeignKeyViolation, kind, id, booked)
	}

	result, err := helper.ExecTx(ctx, tx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return mapper.MapError(err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func exists(ctx context.Context, helper *QueryHelper, mapper *ErrorMapper, query string, args ...any) (bool, error) {
	var one int
	err := helper.QueryRow(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapper.MapError(err)
	}
	return true, nil
}
