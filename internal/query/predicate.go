// Package query models read-side event filters as composable predicates.
//
// Services build a Spec out of predicates; storage backends either evaluate the
// predicates directly with Match or translate them into their own query
// language (see sqlstore.EventQueryCompiler). No caller concatenates query text.
package query

import (
	"time"

	"github.com/example/event-booking/internal/scheduler"
)

// EventRecord is the flattened event view that predicates are evaluated against.
type EventRecord struct {
	ID              string
	EventTypeID     string
	StatusID        string
	AgeCategoryID   string
	OrganizerID     string
	MaxParticipants int
	Interval        scheduler.Interval
	Resources       []scheduler.Key
}

// Predicate is a boolean condition over events.
type Predicate interface {
	Match(EventRecord) bool
	isPredicate()
}

// And is the conjunction of its terms. An empty And matches everything.
type And []Predicate

// Match implements Predicate.
func (a And) Match(r EventRecord) bool {
	for _, p := range a {
		if !p.Match(r) {
			return false
		}
	}
	return true
}

func (And) isPredicate() {}

// All builds a conjunction, skipping nil terms and flattening nested conjunctions.
func All(preds ...Predicate) And {
	out := make(And, 0, len(preds))
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
			continue
		case And:
			out = append(out, All(v...)...)
		default:
			out = append(out, v)
		}
	}
	return out
}

// StartsAfter matches events starting strictly after At.
type StartsAfter struct{ At time.Time }

// Match implements Predicate.
func (p StartsAfter) Match(r EventRecord) bool { return r.Interval.Start.After(p.At) }

func (StartsAfter) isPredicate() {}

// OnDate matches events whose calendar span, in Location, includes Date.
type OnDate struct {
	Date     time.Time
	Location *time.Location
}

// Match implements Predicate.
func (p OnDate) Match(r EventRecord) bool { return r.Interval.ContainsDate(p.Date, p.Location) }

// Bounds returns the instants [dayStart, nextDayStart) of the matched date.
// An event matches when it starts before nextDayStart and ends at or after dayStart.
func (p OnDate) Bounds() (time.Time, time.Time) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	d := p.Date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (OnDate) isPredicate() {}

// WithinRange matches events entirely inside [From, To].
type WithinRange struct {
	From time.Time
	To   time.Time
}

// Match implements Predicate.
func (p WithinRange) Match(r EventRecord) bool { return r.Interval.Within(p.From, p.To) }

func (WithinRange) isPredicate() {}

// EventIs matches a single event id.
type EventIs struct{ ID string }

// Match implements Predicate.
func (p EventIs) Match(r EventRecord) bool { return r.ID == p.ID }

func (EventIs) isPredicate() {}

// TypeIs matches events of an event type.
type TypeIs struct{ ID string }

// Match implements Predicate.
func (p TypeIs) Match(r EventRecord) bool { return r.EventTypeID == p.ID }

func (TypeIs) isPredicate() {}

// StatusIs matches events in a status.
type StatusIs struct{ ID string }

// Match implements Predicate.
func (p StatusIs) Match(r EventRecord) bool { return r.StatusID == p.ID }

func (StatusIs) isPredicate() {}

// AgeCategoryIs matches events restricted to an age category.
type AgeCategoryIs struct{ ID string }

// Match implements Predicate.
func (p AgeCategoryIs) Match(r EventRecord) bool { return r.AgeCategoryID == p.ID }

func (AgeCategoryIs) isPredicate() {}

// MinParticipants matches events whose max_participants is at least N.
type MinParticipants struct{ N int }

// Match implements Predicate.
func (p MinParticipants) Match(r EventRecord) bool { return r.MaxParticipants >= p.N }

func (MinParticipants) isPredicate() {}

// OrganizedBy matches events organized by a user.
type OrganizedBy struct{ UserID string }

// Match implements Predicate.
func (p OrganizedBy) Match(r EventRecord) bool { return r.OrganizerID == p.UserID }

func (OrganizedBy) isPredicate() {}

// UsesResource matches events holding a booking on Resource.
type UsesResource struct{ Resource scheduler.Key }

// Match implements Predicate.
func (p UsesResource) Match(r EventRecord) bool {
	for _, k := range r.Resources {
		if k == p.Resource {
			return true
		}
	}
	return false
}

func (UsesResource) isPredicate() {}
