package sqlstore

import (
	"fmt"
	"strings"

	"github.com/example/event-booking/internal/query"
	"github.com/example/event-booking/internal/scheduler"
)

// EventQueryCompiler translates query predicates into a parameterised WHERE
// clause over the events table aliased as e.
type EventQueryCompiler struct {
	dialect Dialect
}

// NewEventQueryCompiler creates a compiler for the dialect.
func NewEventQueryCompiler(d Dialect) EventQueryCompiler {
	return EventQueryCompiler{dialect: d}
}

// Where returns the condition and its arguments, using ? placeholders.
func (c EventQueryCompiler) Where(p query.Predicate) (string, []any, error) {
	var args []any
	clause, err := c.compile(p, &args)
	if err != nil {
		return "", nil, err
	}
	return clause, args, nil
}

func (c EventQueryCompiler) compile(p query.Predicate, args *[]any) (string, error) {
	switch v := p.(type) {
	case nil:
		return "1 = 1", nil
	case query.And:
		if len(v) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(v))
		for _, term := range v {
			part, err := c.compile(term, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case query.StartsAfter:
		*args = append(*args, c.dialect.Time(v.At))
		return "e.start_time > ?", nil
	case query.OnDate:
		dayStart, nextDay := v.Bounds()
		*args = append(*args, c.dialect.Time(nextDay), c.dialect.Time(dayStart))
		return "(e.start_time < ? AND e.end_time >= ?)", nil
	case query.WithinRange:
		*args = append(*args, c.dialect.Time(v.From), c.dialect.Time(v.To))
		return "(e.start_time >= ? AND e.end_time <= ?)", nil
	case query.EventIs:
		*args = append(*args, v.ID)
		return "e.id = ?", nil
	case query.TypeIs:
		*args = append(*args, v.ID)
		return "e.event_type_id = ?", nil
	case query.StatusIs:
		*args = append(*args, v.ID)
		return "e.status_id = ?", nil
	case query.AgeCategoryIs:
		*args = append(*args, v.ID)
		return "e.age_category_id = ?", nil
	case query.MinParticipants:
		*args = append(*args, v.N)
		return "e.max_participants >= ?", nil
	case query.OrganizedBy:
		*args = append(*args, v.UserID)
		return "e.organizer_id = ?", nil
	case query.UsesResource:
		*args = append(*args, string(v.Resource.Kind), v.Resource.ID)
		return "EXISTS (SELECT 1 FROM bookings ub WHERE ub.event_id = e.id AND ub.resource_kind = ? AND ub.resource_id = ?)", nil
	}
	return "", fmt.Errorf("sqlstore: unsupported predicate %T", p)
}

// Select renders the full listing query for spec. The room join takes the
// first argument.
func (c EventQueryCompiler) Select(spec query.Spec) (string, []any, error) {
	where, args, err := c.Where(spec.Where)
	if err != nil {
		return "", nil, err
	}

	order := "ASC"
	if spec.Order == query.StartDescending {
		order = "DESC"
	}

	args = append([]any{string(scheduler.KindRoom)}, args...)

	var b strings.Builder
	b.WriteString(eventSummarySelect)
	b.WriteString("\nWHERE ")
	b.WriteString(where)
	fmt.Fprintf(&b, "\nORDER BY e.start_time %s, e.id ASC", order)
	if spec.Limit > 0 {
		b.WriteString("\nLIMIT ?")
		args = append(args, spec.Limit)
	}
	return b.String(), args, nil
}

const eventSummarySelect = `
SELECT e.id, e.name, e.description, e.start_time, e.end_time, e.max_participants,
       e.organizer_id, e.status_id, e.event_type_id, e.age_category_id, e.created_at, e.updated_at,
       COALESCE(rb.resource_id, ''), COALESCE(r.name, ''), COALESCE(r.address, ''),
       COALESCE(t.name, ''), COALESCE(s.name, ''), COALESCE(a.name, '')
FROM events e
LEFT JOIN bookings rb ON rb.event_id = e.id AND rb.resource_kind = ?
LEFT JOIN rooms r ON r.id = rb.resource_id
LEFT JOIN lookups t ON t.id = e.event_type_id
LEFT JOIN lookups s ON s.id = e.status_id
LEFT JOIN lookups a ON a.id = e.age_category_id`
