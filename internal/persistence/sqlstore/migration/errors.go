package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration: execution failed")
	ErrInvalidMigrationFile = errors.New("migration: invalid file")
	ErrInvalidVersion       = errors.New("migration: invalid version")
	ErrDuplicateVersion     = errors.New("migration: duplicate version")
	// ErrVersionConflict means the applied history and the embedded files disagree.
	ErrVersionConflict = errors.New("migration: version conflict")
	// ErrVersionTableCorrupt means schema_migrations holds rows that cannot be read back.
	ErrVersionTableCorrupt = errors.New("migration: schema_migrations is corrupted")
	// ErrChecksumMismatch means an applied file was edited after it ran.
	ErrChecksumMismatch = errors.New("migration: checksum mismatch")
)

// StepError records which step of a schema upgrade failed and on which file
// or statement. It unwraps to the underlying cause.
type StepError struct {
	Version string
	Source  string
	Query   string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	where := e.Source
	if e.Version != "" {
		where = e.Version
		if e.Source != "" {
			where += " (" + e.Source + ")"
		}
	}
	if where == "" {
		return fmt.Sprintf("migration: %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("migration %s: %s: %v", where, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func fileError(version, source, step string, err error) error {
	return &StepError{Version: version, Source: source, Step: step, Err: err}
}

func dbError(version, query, step string, err error) error {
	return &StepError{Version: version, Query: query, Step: step, Err: err}
}
