package sqlstore

import (
	"context"
	"strings"

	"github.com/example/event-booking/internal/persistence"
)

// LookupRepository implements persistence.LookupRepository. Every lookup kind
// shares the lookups table and is told apart by its kind column.
type LookupRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewLookupRepository creates a new lookup repository
func NewLookupRepository(pool *ConnectionPool) *LookupRepository {
	return &LookupRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const lookupColumns = `id, kind, name, category, min_age, created_at, updated_at`

// CreateLookup inserts a lookup entry. Names are unique per kind.
func (r *LookupRepository) CreateLookup(ctx context.Context, lookup persistence.Lookup) error {
	if lookup.ID == "" || lookup.Kind == "" || strings.TrimSpace(lookup.Name) == "" {
		return persistence.ErrConstraintViolation
	}

	lookup.CreatedAt = nowIfZero(lookup.CreatedAt)
	lookup.UpdatedAt = nowIfZero(lookup.UpdatedAt)

	_, err := r.helper.Exec(ctx, `
		INSERT INTO lookups (`+lookupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		lookup.ID,
		lookup.Kind,
		lookup.Name,
		lookup.Category,
		lookup.MinAge,
		r.helper.Time(lookup.CreatedAt),
		r.helper.Time(lookup.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateLookup renames a lookup entry and updates its attributes.
func (r *LookupRepository) UpdateLookup(ctx context.Context, lookup persistence.Lookup) error {
	if lookup.ID == "" || strings.TrimSpace(lookup.Name) == "" {
		return persistence.ErrConstraintViolation
	}

	lookup.UpdatedAt = nowIfZero(lookup.UpdatedAt)

	result, err := r.helper.Exec(ctx, `
		UPDATE lookups
		SET name = ?, category = ?, min_age = ?, updated_at = ?
		WHERE kind = ? AND id = ?
	`,
		lookup.Name,
		lookup.Category,
		lookup.MinAge,
		r.helper.Time(lookup.UpdatedAt),
		lookup.Kind,
		lookup.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetLookup retrieves a lookup of the given kind by ID.
func (r *LookupRepository) GetLookup(ctx context.Context, kind, id string) (persistence.Lookup, error) {
	if id == "" {
		return persistence.Lookup{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+lookupColumns+` FROM lookups WHERE kind = ? AND id = ?`, kind, id)
	lookup, err := scanLookup(row)
	if err != nil {
		return persistence.Lookup{}, r.mapper.MapError(err)
	}
	return lookup, nil
}

// FindLookupByName retrieves a lookup by its case-insensitive name.
func (r *LookupRepository) FindLookupByName(ctx context.Context, kind, name string) (persistence.Lookup, error) {
	row := r.helper.QueryRow(ctx,
		`SELECT `+lookupColumns+` FROM lookups WHERE kind = ? AND lower(name) = lower(?) ORDER BY id LIMIT 1`,
		kind, strings.TrimSpace(name),
	)
	lookup, err := scanLookup(row)
	if err != nil {
		return persistence.Lookup{}, r.mapper.MapError(err)
	}
	return lookup, nil
}

// ListLookups returns the entries of a kind ordered by name then ID.
func (r *LookupRepository) ListLookups(ctx context.Context, kind string) ([]persistence.Lookup, error) {
	rows, err := r.helper.Query(ctx,
		`SELECT `+lookupColumns+` FROM lookups WHERE kind = ? ORDER BY lower(name) ASC, id ASC`, kind)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var lookups []persistence.Lookup
	for rows.Next() {
		lookup, err := scanLookup(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		lookups = append(lookups, lookup)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return lookups, nil
}

// DeleteLookup removes a lookup. Entries still referenced by rooms,
// employees or events yield persistence.ErrForeignKeyViolation.
func (r *LookupRepository) DeleteLookup(ctx context.Context, kind, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM lookups WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func scanLookup(row rowScanner) (persistence.Lookup, error) {
	var (
		lookup           persistence.Lookup
		created, updated timeColumn
	)
	if err := row.Scan(
		&lookup.ID,
		&lookup.Kind,
		&lookup.Name,
		&lookup.Category,
		&lookup.MinAge,
		&created,
		&updated,
	); err != nil {
		return persistence.Lookup{}, err
	}
	lookup.CreatedAt = created.Time
	lookup.UpdatedAt = updated.Time
	return lookup, nil
}
