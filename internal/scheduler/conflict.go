package scheduler

import "sort"

// Booking allocates one resource to one event for an interval.
type Booking struct {
	EventID  string
	Resource Key
	Interval Interval
}

// Conflict details an existing booking that overlaps a candidate.
type Conflict struct {
	WithEventID string
	Resource    Key
	Interval    Interval
}

// DetectConflicts returns the bookings in existing that hold the candidate's
// resource for an overlapping interval. Bookings owned by the candidate's own
// event never conflict, so an event can be re-saved over itself. Results are
// ordered by start time and then event id.
func DetectConflicts(existing []Booking, candidate Booking) []Conflict {
	var conflicts []Conflict
	for _, booking := range existing {
		if booking.Resource != candidate.Resource {
			continue
		}
		if booking.EventID == candidate.EventID {
			continue
		}
		if !booking.Interval.Overlaps(candidate.Interval) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithEventID: booking.EventID,
			Resource:    booking.Resource,
			Interval:    booking.Interval,
		})
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i].Interval.Start, conflicts[j].Interval.Start
		if a.Equal(b) {
			return conflicts[i].WithEventID < conflicts[j].WithEventID
		}
		return a.Before(b)
	})
	return conflicts
}

// IsDuplicate reports whether existing already holds the candidate unchanged:
// same event, same resource, same interval.
func IsDuplicate(existing []Booking, candidate Booking) bool {
	for _, booking := range existing {
		if booking.EventID == candidate.EventID &&
			booking.Resource == candidate.Resource &&
			booking.Interval.Equal(candidate.Interval) {
			return true
		}
	}
	return false
}

// SortKeys orders keys and drops duplicates. Locks are always taken in this order.
func SortKeys(keys []Key) []Key {
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
