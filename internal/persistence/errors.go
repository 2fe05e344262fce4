package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKeyViolation is returned when a row references, or is still referenced by, another row.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned when a check constraint rejects a row.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrOverlap is returned when a booking would overlap another booking of the same resource.
	ErrOverlap = errors.New("persistence: overlapping booking")
	// ErrUnavailable is returned when the database cannot be reached or is busy.
	ErrUnavailable = errors.New("persistence: storage unavailable")
)
