package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when an interval does not end strictly after it starts.
var ErrInvalidInterval = errors.New("scheduler: end must be after start")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates and constructs an interval.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether the two half-open intervals share any instant.
// Intervals that only touch at a boundary do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Equal reports whether both bounds denote the same instants.
func (i Interval) Equal(other Interval) bool {
	return i.Start.Equal(other.Start) && i.End.Equal(other.End)
}

// Within reports whether the interval lies inside [from, to], bounds inclusive.
func (i Interval) Within(from, to time.Time) bool {
	return !i.Start.Before(from) && !i.End.After(to)
}

// ContainsDate reports whether the calendar day of day (in loc) falls between the
// calendar days of Start and End, inclusive.
func (i Interval) ContainsDate(day time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	d := dateOf(day, loc)
	return !dateOf(i.Start, loc).After(d) && !dateOf(i.End, loc).Before(d)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	in := t.In(loc)
	return time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, loc)
}
