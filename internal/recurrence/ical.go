package recurrence

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/unilocal/internal/scheduler"
)

// CalendarInput describes the place exported as an iCalendar feed.
type CalendarInput struct {
	UID       string
	Name      string
	Address   string
	Schedules []scheduler.Schedule
	// Anchor selects the week the recurring events start in.
	Anchor time.Time
	// Format renders the summary line of each event.
	Format func(scheduler.Schedule) string
}

// localTimestamp is the RFC 5545 form of a DATE-TIME read in its TZID.
const localTimestamp = "20060102T150405"

// Calendar renders one weekly recurring VEVENT per schedule. DTSTART and
// DTEND carry local wall time so BYDAY expands on the local weekday.
func (e *Engine) Calendar(input CalendarInput) string {
	loc := e.Location()
	anchor := input.Anchor.In(loc)
	tzid := loc.String()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//UniLocal//Opening Hours//ES")
	cal.SetName(input.Name)
	cal.SetXWRCalName(input.Name)
	cal.SetXWRTimezone(tzid)
	addTimezone(cal, tzid, anchor)

	for i, s := range input.Schedules {
		start := firstOccurrence(s, anchor)
		event := cal.AddEvent(fmt.Sprintf("%s-%d@unilocal", input.UID, i))
		event.SetDtStampTime(anchor)
		event.SetProperty(ics.ComponentPropertyDtStart, start.Format(localTimestamp), ics.WithTZID(tzid))
		event.SetProperty(ics.ComponentPropertyDtEnd, atTime(start, s.End()).Format(localTimestamp), ics.WithTZID(tzid))
		summary := input.Name
		if input.Format != nil {
			summary = fmt.Sprintf("%s: %s", input.Name, input.Format(s))
		}
		event.SetSummary(summary)
		if input.Address != "" {
			event.SetLocation(input.Address)
		}
		event.AddProperty(ics.ComponentPropertyRrule, RRule(s))
	}

	return cal.Serialize()
}

// addTimezone declares tzid with the UTC offset in effect at anchor.
func addTimezone(cal *ics.Calendar, tzid string, anchor time.Time) {
	name, offset := anchor.Zone()
	sign := '+'
	if offset < 0 {
		sign, offset = '-', -offset
	}
	utcOffset := fmt.Sprintf("%c%02d%02d", sign, offset/3600, offset%3600/60)

	standard := cal.AddTimezone(tzid).AddStandard()
	standard.SetProperty(ics.ComponentPropertyDtStart, "19700101T000000")
	standard.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), utcOffset)
	standard.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), utcOffset)
	standard.SetProperty(ics.ComponentProperty(ics.PropertyTzname), name)
}
