package application

import (
	"errors"
	"fmt"

	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidTimeRange is returned when an end time is not strictly after its start time.
	ErrInvalidTimeRange = errors.New("application: end time must be after start time")
	// ErrResourceInUse is returned when deleting an entity that bookings or events still reference.
	ErrResourceInUse = errors.New("application: resource in use")
	// ErrResourceConflict matches every *ConflictError.
	ErrResourceConflict = errors.New("application: resource conflict")
	// ErrDuplicateBooking marks a reservation that is already stored unchanged.
	// Services treat it as a successful no-op; it never reaches callers.
	ErrDuplicateBooking = errors.New("application: duplicate booking")
	// ErrStorageUnavailable is returned when the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("application: storage unavailable")
)

// NotFoundError identifies the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("application: %s %q not found", e.Entity, e.ID)
}

// Unwrap exposes ErrNotFound to errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports the booking that blocks a reservation. It matches ErrResourceConflict.
type ConflictError struct {
	Kind               scheduler.ResourceKind
	ResourceID         string
	ConflictingEventID string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("application: %s %q is already booked by event %q", e.Kind, e.ResourceID, e.ConflictingEventID)
}

// Is matches ErrResourceConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrResourceConflict }

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// translateStorageError maps the persistence sentinels every service treats
// alike. Errors that already carry an application kind pass through.
func translateStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrResourceInUse
	}
	return err
}
