package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/event-booking/internal/persistence"
)

// LookupRepository stores the reference tables of the catalog.
type LookupRepository interface {
	LookupReader
	CreateLookup(ctx context.Context, lookup Lookup) (Lookup, error)
	UpdateLookup(ctx context.Context, lookup Lookup) (Lookup, error)
	FindLookupByName(ctx context.Context, kind LookupKind, name string) (Lookup, error)
	ListLookups(ctx context.Context, kind LookupKind) ([]Lookup, error)
	DeleteLookup(ctx context.Context, kind LookupKind, id string) error
}

// LookupService manages room types, positions, age categories, event
// statuses and event types.
type LookupService struct {
	lookups     LookupRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLookupService constructs a lookup service.
func NewLookupService(lookups LookupRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LookupService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &LookupService{lookups: lookups, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *LookupService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LookupService", operation, attrs...)
}

// CreateLookup adds an entry of kind. Names are unique per kind.
func (s *LookupService) CreateLookup(ctx context.Context, principal Principal, kind LookupKind, input LookupInput) (lookup Lookup, err error) {
	if s == nil {
		err = fmt.Errorf("LookupService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateLookup", "principal_id", principal.UserID, "kind", string(kind))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create lookup", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("lookup_id", lookup.ID).InfoContext(ctx, "lookup created")
	}()

	if !principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}
	input, vErr := validateLookupInput(kind, input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.lookups == nil {
		err = fmt.Errorf("lookup repository not configured")
		return
	}

	now := s.now()
	lookup, err = s.lookups.CreateLookup(ctx, Lookup{
		ID:        s.idGenerator(),
		Kind:      kind,
		Name:      input.Name,
		Category:  input.Category,
		MinAge:    input.MinAge,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		err = mapLookupRepoError(err, kind, "")
	}
	return
}

// UpdateLookup renames an entry and updates its attributes.
func (s *LookupService) UpdateLookup(ctx context.Context, principal Principal, kind LookupKind, id string, input LookupInput) (lookup Lookup, err error) {
	if s == nil {
		err = fmt.Errorf("LookupService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateLookup", "principal_id", principal.UserID, "kind", string(kind), "lookup_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update lookup", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lookup updated")
	}()

	if !principal.CanOrganize() {
		err = ErrUnauthorized
		return
	}
	input, vErr := validateLookupInput(kind, input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.lookups == nil {
		err = fmt.Errorf("lookup repository not configured")
		return
	}

	var existing Lookup
	existing, err = s.lookups.GetLookup(ctx, kind, id)
	if err != nil {
		err = mapLookupRepoError(err, kind, id)
		return
	}

	existing.Name = input.Name
	existing.Category = input.Category
	existing.MinAge = input.MinAge
	existing.UpdatedAt = s.now()

	lookup, err = s.lookups.UpdateLookup(ctx, existing)
	if err != nil {
		err = mapLookupRepoError(err, kind, id)
	}
	return
}

// DeleteLookup removes an entry that nothing references.
func (s *LookupService) DeleteLookup(ctx context.Context, principal Principal, kind LookupKind, id string) error {
	if s == nil {
		return fmt.Errorf("LookupService is nil")
	}
	if !principal.CanOrganize() {
		return ErrUnauthorized
	}
	if !ValidLookupKind(kind) {
		return notFound("lookup kind", string(kind))
	}
	if s.lookups == nil {
		return fmt.Errorf("lookup repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteLookup", "principal_id", principal.UserID, "kind", string(kind), "lookup_id", id)
	if err := s.lookups.DeleteLookup(ctx, kind, id); err != nil {
		err = mapLookupRepoError(err, kind, id)
		logger.ErrorContext(ctx, "failed to delete lookup", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "lookup deleted")
	return nil
}

// GetLookup returns one entry of kind.
func (s *LookupService) GetLookup(ctx context.Context, kind LookupKind, id string) (Lookup, error) {
	if s == nil {
		return Lookup{}, fmt.Errorf("LookupService is nil")
	}
	if !ValidLookupKind(kind) {
		return Lookup{}, notFound("lookup kind", string(kind))
	}
	if s.lookups == nil {
		return Lookup{}, fmt.Errorf("lookup repository not configured")
	}
	lookup, err := s.lookups.GetLookup(ctx, kind, id)
	if err != nil {
		return Lookup{}, mapLookupRepoError(err, kind, id)
	}
	return lookup, nil
}

// ListLookups returns every entry of kind ordered by name.
func (s *LookupService) ListLookups(ctx context.Context, kind LookupKind) ([]Lookup, error) {
	if s == nil {
		return nil, fmt.Errorf("LookupService is nil")
	}
	if !ValidLookupKind(kind) {
		return nil, notFound("lookup kind", string(kind))
	}
	if s.lookups == nil {
		return nil, nil
	}

	raw, err := s.lookups.ListLookups(ctx, kind)
	if err != nil {
		return nil, translateStorageError(err)
	}
	out := make([]Lookup, len(raw))
	copy(out, raw)
	sort.Slice(out, func(i, j int) bool {
		return byDisplayName(out[i].Name, out[i].ID, out[j].Name, out[j].ID)
	})
	return out, nil
}

// EnsurePosition returns the position called name, creating it when missing.
func (s *LookupService) EnsurePosition(ctx context.Context, name string) (Lookup, error) {
	if s == nil {
		return Lookup{}, fmt.Errorf("LookupService is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		vErr := &ValidationError{}
		vErr.add("new_position", "position name is required")
		return Lookup{}, vErr
	}
	if s.lookups == nil {
		return Lookup{}, fmt.Errorf("lookup repository not configured")
	}

	existing, err := s.lookups.FindLookupByName(ctx, LookupPosition, name)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return Lookup{}, translateStorageError(err)
	}

	now := s.now()
	created, err := s.lookups.CreateLookup(ctx, Lookup{
		ID:        s.idGenerator(),
		Kind:      LookupPosition,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		// Created concurrently under the same name.
		existing, err = s.lookups.FindLookupByName(ctx, LookupPosition, name)
		return existing, mapLookupRepoError(err, LookupPosition, name)
	}
	if err != nil {
		return Lookup{}, translateStorageError(err)
	}

	s.loggerWith(ctx, "EnsurePosition", "lookup_id", created.ID).InfoContext(ctx, "position created")
	return created, nil
}

func validateLookupInput(kind LookupKind, input LookupInput) (LookupInput, *ValidationError) {
	vErr := &ValidationError{}
	if !ValidLookupKind(kind) {
		vErr.add("kind", "unknown lookup kind")
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if kind != LookupEventType {
		input.Category = ""
	}
	if kind != LookupAgeCategory {
		input.MinAge = 0
	}
	if input.MinAge < 0 {
		vErr.add("min_age", "minimum age cannot be negative")
	}
	return input, vErr
}

// ensureLookup reports NotFound unless the entry exists.
func ensureLookup(ctx context.Context, lookups LookupReader, kind LookupKind, id string) error {
	if lookups == nil {
		return nil
	}
	if _, err := lookups.GetLookup(ctx, kind, id); err != nil {
		return mapLookupRepoError(err, kind, id)
	}
	return nil
}

func mapLookupRepoError(err error, kind LookupKind, id string) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return notFound(string(kind), id)
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		return vErr
	}
	return translateStorageError(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
