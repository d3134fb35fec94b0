package scheduler

import (
	"fmt"
	"strings"
)

// Period is the AM/PM half of a 12-hour clock reading.
type Period string

const (
	AM Period = "AM"
	PM Period = "PM"
)

// ParsePeriod accepts "AM"/"PM" in any case, with or without dots.
func ParsePeriod(value string) (Period, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), ".", ""))
	switch Period(normalized) {
	case AM:
		return AM, nil
	case PM:
		return PM, nil
	}
	return "", fmt.Errorf("%w: period %q", ErrInvalidHours, value)
}

// ClockTime is a 12-hour clock reading as entered by a user.
type ClockTime struct {
	Hour   int
	Minute int
	Period Period
}

// To24Hour converts a 12-hour reading. 12 AM is midnight and 12 PM is noon.
func To24Hour(hour, minute int, period Period) (TimeOfDay, error) {
	if hour < 1 || hour > 12 {
		return 0, fmt.Errorf("%w: hour %d", ErrInvalidHours, hour)
	}
	switch period {
	case AM:
		if hour == 12 {
			hour = 0
		}
	case PM:
		if hour != 12 {
			hour += 12
		}
	default:
		return 0, fmt.Errorf("%w: period %q", ErrInvalidHours, period)
	}
	return At(hour, minute)
}

// TimeOfDay converts c to the 24-hour representation.
func (c ClockTime) TimeOfDay() (TimeOfDay, error) {
	return To24Hour(c.Hour, c.Minute, c.Period)
}

// ClockTimeOf is the inverse of To24Hour.
func ClockTimeOf(t TimeOfDay) ClockTime {
	hour, period := t.Hour(), AM
	if hour >= 12 {
		period = PM
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return ClockTime{Hour: hour, Minute: t.Minute(), Period: period}
}
