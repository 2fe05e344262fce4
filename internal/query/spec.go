package query

import (
	"sort"
)

// Order selects the result ordering of a Spec.
type Order int

const (
	// StartAscending orders by start time, earliest first.
	StartAscending Order = iota
	// StartDescending orders by start time, latest first.
	StartDescending
)

// Spec is a complete event query: a predicate, an ordering and an optional limit.
type Spec struct {
	Where Predicate
	Order Order
	// Limit caps the number of results; zero means unlimited.
	Limit int
}

// Matches reports whether r satisfies s.Where. A nil Where matches everything.
func (s Spec) Matches(r EventRecord) bool {
	if s.Where == nil {
		return true
	}
	return s.Where.Match(r)
}

// Apply filters, orders and limits records in memory.
func (s Spec) Apply(records []EventRecord) []EventRecord {
	out := make([]EventRecord, 0, len(records))
	for _, r := range records {
		if s.Matches(r) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Interval.Start, out[j].Interval.Start
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		if s.Order == StartDescending {
			return a.After(b)
		}
		return a.Before(b)
	})

	if s.Limit > 0 && len(out) > s.Limit {
		out = out[:s.Limit]
	}
	return out
}
