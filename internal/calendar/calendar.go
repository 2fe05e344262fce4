// Package calendar renders event listings as iCalendar feeds.
package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
)

// ProductID identifies the producer of every feed.
const ProductID = "-//event-booking//EN"

// UIDDomain is appended to event IDs to build globally unique VEVENT UIDs.
const UIDDomain = "event-booking"

// Entry is one event of a feed.
type Entry struct {
	EventID     string
	Summary     string
	Description string
	Location    string
	Organizer   string
	Start       time.Time
	End         time.Time
}

// Feed is a named list of entries.
type Feed struct {
	Name    string
	Entries []Entry
}

// Build converts feed into a VCALENDAR. stamp is written as DTSTAMP of every
// event.
func Build(feed Feed, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	if feed.Name != "" {
		cal.Props.SetText("X-WR-CALNAME", feed.Name)
	}
	for _, entry := range feed.Entries {
		cal.Children = append(cal.Children, toVEvent(entry, stamp))
	}
	return cal
}

// Encode writes feed to w in iCalendar format.
func Encode(w io.Writer, feed Feed, stamp time.Time) error {
	if err := ical.NewEncoder(w).Encode(Build(feed, stamp)); err != nil {
		return fmt.Errorf("calendar: encode feed: %w", err)
	}
	return nil
}

// UID returns the VEVENT UID of an event.
func UID(eventID string) string {
	return eventID + "@" + UIDDomain
}

func toVEvent(entry Entry, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(entry.EventID))
	ve.Props.SetText(ical.PropSummary, entry.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, entry.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, entry.End.UTC())

	if entry.Description != "" {
		ve.Props.SetText(ical.PropDescription, entry.Description)
	}
	if entry.Location != "" {
		ve.Props.SetText(ical.PropLocation, entry.Location)
	}
	if entry.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText("mailto:" + entry.Organizer)
		ve.Props.Add(p)
	}
	return ve
}
