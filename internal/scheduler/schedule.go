// Package scheduler models weekly opening hours and detects conflicts between them.
//
// A Schedule is a closed range of weekdays combined with a half-open range of
// minutes within each of those days. Two schedules conflict when they share at
// least one weekday and their time ranges intersect.
package scheduler

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidDay indicates a weekday number outside 1..7.
	ErrInvalidDay = errors.New("scheduler: invalid day")
	// ErrInvalidDayRange indicates the end day precedes the start day.
	ErrInvalidDayRange = errors.New("scheduler: end day precedes start day")
	// ErrInvalidHours indicates an out of range time or a close time not after the open time.
	ErrInvalidHours = errors.New("scheduler: invalid hours")
)

// Day is a weekday number where Monday is 1 and Sunday is 7.
type Day int

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Valid reports whether d is within Monday..Sunday.
func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

// Weekday converts d to the standard library representation.
func (d Day) Weekday() time.Weekday {
	return time.Weekday(int(d) % 7)
}

// DayOf returns the Day for a standard library weekday.
func DayOf(w time.Weekday) Day {
	if w == time.Sunday {
		return Sunday
	}
	return Day(w)
}

// TimeOfDay is a wall clock time expressed in minutes since midnight.
type TimeOfDay int

// MinutesPerDay bounds every TimeOfDay value.
const MinutesPerDay = 24 * 60

// At returns the TimeOfDay for a 24-hour clock reading.
func At(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidHours, hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// MustAt is At for constant inputs; it panics on invalid values.
func MustAt(hour, minute int) TimeOfDay {
	t, err := At(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay parses an "HH:MM" 24-hour string. "24:00" denotes the end of the day.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	if value == "24:00" {
		return MinutesPerDay, nil
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHours, value)
	}
	return At(parsed.Hour(), parsed.Minute())
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) * time.Minute }

// String renders t as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Schedule is an immutable weekly opening range. Values compare with ==.
type Schedule struct {
	dayStart Day
	dayEnd   Day
	start    TimeOfDay
	end      TimeOfDay
}

// NewSchedule validates the fields and returns the schedule they describe.
func NewSchedule(dayStart, dayEnd Day, start, end TimeOfDay) (Schedule, error) {
	if !dayStart.Valid() || !dayEnd.Valid() {
		return Schedule{}, fmt.Errorf("%w: %d..%d", ErrInvalidDay, dayStart, dayEnd)
	}
	if dayEnd < dayStart {
		return Schedule{}, fmt.Errorf("%w: %d..%d", ErrInvalidDayRange, dayStart, dayEnd)
	}
	if start < 0 || end > MinutesPerDay || start >= end {
		return Schedule{}, fmt.Errorf("%w: %s-%s", ErrInvalidHours, start, end)
	}
	return Schedule{dayStart: dayStart, dayEnd: dayEnd, start: start, end: end}, nil
}

// MustSchedule is NewSchedule for constant inputs; it panics on invalid values.
func MustSchedule(dayStart, dayEnd Day, start, end TimeOfDay) Schedule {
	s, err := NewSchedule(dayStart, dayEnd, start, end)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schedule) DayStart() Day    { return s.dayStart }
func (s Schedule) DayEnd() Day      { return s.dayEnd }
func (s Schedule) Start() TimeOfDay { return s.start }
func (s Schedule) End() TimeOfDay   { return s.end }

// IsZero reports whether s is the zero value.
func (s Schedule) IsZero() bool { return s == Schedule{} }

// Days lists every weekday covered by s in ascending order.
func (s Schedule) Days() []Day {
	if s.IsZero() {
		return nil
	}
	days := make([]Day, 0, int(s.dayEnd-s.dayStart)+1)
	for d := s.dayStart; d <= s.dayEnd; d++ {
		days = append(days, d)
	}
	return days
}

// Covers reports whether s is open on day at the given minute.
func (s Schedule) Covers(day Day, at TimeOfDay) bool {
	return day >= s.dayStart && day <= s.dayEnd && at >= s.start && at < s.end
}

// Length is the duration of one daily opening.
func (s Schedule) Length() time.Duration {
	return (s.end - s.start).Duration()
}

func (s Schedule) String() string {
	return fmt.Sprintf("%d-%d %s-%s", s.dayStart, s.dayEnd, s.start, s.end)
}

// before orders schedules by first opening in the week.
func before(a, b Schedule) bool {
	if a.dayStart != b.dayStart {
		return a.dayStart < b.dayStart
	}
	if a.start != b.start {
		return a.start < b.start
	}
	if a.dayEnd != b.dayEnd {
		return a.dayEnd < b.dayEnd
	}
	return a.end < b.end
}
