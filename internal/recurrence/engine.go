package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/unilocal/internal/scheduler"
)

// bogota is UTC-5 all year; used when no location is configured.
var bogota = time.FixedZone("COT", -5*60*60)

// MaxWindow bounds a single Openings expansion.
const MaxWindow = 31 * 24 * time.Hour

var (
	// ErrInvalidWindow indicates the range end does not follow its start.
	ErrInvalidWindow = errors.New("recurrence: window end must be after start")
	// ErrWindowTooLarge indicates the requested range exceeds MaxWindow.
	ErrWindowTooLarge = errors.New("recurrence: window exceeds maximum span")
)

var weekdays = map[scheduler.Day]rrule.Weekday{
	scheduler.Monday:    rrule.MO,
	scheduler.Tuesday:   rrule.TU,
	scheduler.Wednesday: rrule.WE,
	scheduler.Thursday:  rrule.TH,
	scheduler.Friday:    rrule.FR,
	scheduler.Saturday:  rrule.SA,
	scheduler.Sunday:    rrule.SU,
}

var byDayCodes = map[scheduler.Day]string{
	scheduler.Monday:    "MO",
	scheduler.Tuesday:   "TU",
	scheduler.Wednesday: "WE",
	scheduler.Thursday:  "TH",
	scheduler.Friday:    "FR",
	scheduler.Saturday:  "SA",
	scheduler.Sunday:    "SU",
}

// Opening is one concrete interval during which a place is open.
type Opening struct {
	Schedule scheduler.Schedule
	Start    time.Time
	End      time.Time
}

// Engine expands weekly schedules into dated openings in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine for loc. If loc is nil, UTC-5 is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = bogota
	}
	return &Engine{location: loc}
}

// Location returns the zone openings are computed in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return bogota
	}
	return e.location
}

// Rule builds the weekly recurrence for s, starting in the week containing anchor.
func (e *Engine) Rule(s scheduler.Schedule, anchor time.Time) (*rrule.RRule, error) {
	if s.IsZero() {
		return nil, fmt.Errorf("recurrence: empty schedule")
	}
	days := make([]rrule.Weekday, 0, 7)
	for _, d := range s.Days() {
		days = append(days, weekdays[d])
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Wkst:      rrule.MO,
		Byweekday: days,
		Dtstart:   atTime(weekStart(anchor.In(e.Location())), s.Start()),
	})
}

// Openings lists every opening that intersects [from, to), sorted by start.
func (e *Engine) Openings(schedules []scheduler.Schedule, from, to time.Time) ([]Opening, error) {
	if !to.After(from) {
		return nil, ErrInvalidWindow
	}
	if to.Sub(from) > MaxWindow {
		return nil, ErrWindowTooLarge
	}

	loc := e.Location()
	from, to = from.In(loc), to.In(loc)

	var out []Opening
	for _, s := range schedules {
		length := s.Length()
		r, err := e.Rule(s, from.Add(-length))
		if err != nil {
			return nil, err
		}
		for _, start := range r.Between(from.Add(-length), to, true) {
			end := atTime(start, s.End())
			if !end.After(from) || !start.Before(to) {
				continue
			}
			out = append(out, Opening{Schedule: s, Start: start, End: end})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// IsOpen reports whether any schedule covers the instant at.
func (e *Engine) IsOpen(schedules []scheduler.Schedule, at time.Time) bool {
	local := at.In(e.Location())
	day := scheduler.DayOf(local.Weekday())
	minute := scheduler.TimeOfDay(local.Hour()*60 + local.Minute())
	for _, s := range schedules {
		if s.Covers(day, minute) {
			return true
		}
	}
	return false
}

// NextOpening returns the first opening that starts at or after the instant after.
func (e *Engine) NextOpening(schedules []scheduler.Schedule, after time.Time) (Opening, bool) {
	after = after.In(e.Location())

	var set rrule.Set
	starts := make(map[scheduler.TimeOfDay][]scheduler.Schedule)
	for _, s := range schedules {
		r, err := e.Rule(s, after)
		if err != nil {
			continue
		}
		set.RRule(r)
		starts[s.Start()] = append(starts[s.Start()], s)
	}

	next := set.After(after, true)
	if next.IsZero() {
		return Opening{}, false
	}

	day := scheduler.DayOf(next.Weekday())
	minute := scheduler.TimeOfDay(next.Hour()*60 + next.Minute())
	for _, s := range starts[minute] {
		if s.Covers(day, minute) {
			return Opening{Schedule: s, Start: next, End: atTime(next, s.End())}, true
		}
	}
	return Opening{}, false
}

// RRule returns the RFC 5545 recurrence value for s without DTSTART.
func RRule(s scheduler.Schedule) string {
	codes := make([]string, 0, 7)
	for _, d := range s.Days() {
		codes = append(codes, byDayCodes[d])
	}
	return "FREQ=WEEKLY;WKST=MO;BYDAY=" + strings.Join(codes, ",")
}

// weekStart returns midnight of the Monday on or before t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// atTime places a wall clock time on the date of day.
func atTime(day time.Time, t scheduler.TimeOfDay) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

// firstOccurrence returns the first opening of s in the week containing anchor.
func firstOccurrence(s scheduler.Schedule, anchor time.Time) time.Time {
	return atTime(weekStart(anchor).AddDate(0, 0, int(s.DayStart())-1), s.Start())
}
