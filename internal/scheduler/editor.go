package scheduler

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
)

var (
	// ErrBlankDay indicates a start or end day name was not supplied.
	ErrBlankDay = errors.New("scheduler: day name is blank")
	// ErrUnknownDay indicates a day name missing from the locale table.
	ErrUnknownDay = errors.New("scheduler: unknown day name")
	// ErrOverlap indicates the candidate intersects an accepted schedule.
	ErrOverlap = errors.New("scheduler: schedule overlaps an existing one")
)

// EntryInput is a schedule as typed by a user: localized day names and
// 12-hour clock readings.
type EntryInput struct {
	StartDay string
	EndDay   string
	Open     ClockTime
	Close    ClockTime
}

// Editor is a schedule editing session for one place. It holds the accepted
// schedules in insertion order and the latest status message. An Editor is
// not safe for concurrent use.
type Editor struct {
	locale    *Locale
	schedules []Schedule
	message   *string
}

// NewEditor starts an empty session. A nil locale selects DefaultLocale.
func NewEditor(locale *Locale) *Editor {
	if locale == nil {
		locale = MustLoadLocale(DefaultLocale)
	}
	return &Editor{locale: locale}
}

// Load seeds the session with previously persisted schedules. It fails
// without changing state when the input contains a conflicting pair.
func (e *Editor) Load(schedules []Schedule) error {
	accepted := make([]Schedule, 0, len(schedules))
	for i, s := range schedules {
		if s.IsZero() {
			return fmt.Errorf("schedule %d: %w", i, ErrInvalidHours)
		}
		if conflicts := DetectConflicts(accepted, s); len(conflicts) > 0 {
			return fmt.Errorf("schedule %d (%s) conflicts with %s: %w", i, s, conflicts[0].Existing, ErrOverlap)
		}
		accepted = append(accepted, s)
	}
	e.schedules = accepted
	return nil
}

// Locale returns the table used to parse and format day names.
func (e *Editor) Locale() *Locale { return e.locale }

// AddSchedule validates input against the session and appends the result.
// A rejection sets the message and leaves the list untouched.
func (e *Editor) AddSchedule(input EntryInput) (Schedule, error) {
	msgs := e.locale.Messages

	if strings.TrimSpace(input.StartDay) == "" || strings.TrimSpace(input.EndDay) == "" {
		return e.reject(msgs.BlankDay, ErrBlankDay)
	}

	startDay, ok := e.locale.DayNumber(input.StartDay)
	if !ok {
		return e.reject(msgs.UnknownDay, fmt.Errorf("%w: %q", ErrUnknownDay, input.StartDay))
	}
	endDay, ok := e.locale.DayNumber(input.EndDay)
	if !ok {
		return e.reject(msgs.UnknownDay, fmt.Errorf("%w: %q", ErrUnknownDay, input.EndDay))
	}
	if startDay > endDay {
		return e.reject(msgs.InvalidDayRange, ErrInvalidDayRange)
	}

	open, err := input.Open.TimeOfDay()
	if err != nil {
		return e.reject(msgs.InvalidHours, err)
	}
	closing, err := input.Close.TimeOfDay()
	if err != nil {
		return e.reject(msgs.InvalidHours, err)
	}
	if open >= closing {
		return e.reject(msgs.InvalidHours, ErrInvalidHours)
	}

	candidate, err := NewSchedule(startDay, endDay, open, closing)
	if err != nil {
		return e.reject(msgs.InvalidHours, err)
	}
	return e.Add(candidate)
}

// Add appends an already constructed schedule after the overlap check.
func (e *Editor) Add(candidate Schedule) (Schedule, error) {
	if candidate.IsZero() {
		return e.reject(e.locale.Messages.InvalidHours, ErrInvalidHours)
	}
	if conflicts := DetectConflicts(e.schedules, candidate); len(conflicts) > 0 {
		return e.reject(e.locale.Messages.Overlap, fmt.Errorf("%w: %s", ErrOverlap, conflicts[0].Existing))
	}
	e.schedules = append(e.schedules, candidate)
	e.setMessage(e.locale.Messages.Added)
	return candidate, nil
}

// RemoveSchedule drops the first entry equal to s. Missing entries are ignored.
func (e *Editor) RemoveSchedule(s Schedule) {
	if i := slices.Index(e.schedules, s); i >= 0 {
		e.schedules = slices.Delete(e.schedules, i, i+1)
	}
	e.setMessage(e.locale.Messages.Removed)
}

// ClearSchedules empties the session.
func (e *Editor) ClearSchedules() {
	e.schedules = nil
	e.setMessage(e.locale.Messages.Cleared)
}

// FormatSchedule renders s with the session locale.
func (e *Editor) FormatSchedule(s Schedule) string {
	return e.locale.Format(s)
}

// All yields the accepted schedules in insertion order.
func (e *Editor) All() iter.Seq[Schedule] {
	return slices.Values(e.schedules)
}

// Len returns the number of accepted schedules.
func (e *Editor) Len() int { return len(e.schedules) }

// Snapshot copies the accepted schedules for handoff to a place.
func (e *Editor) Snapshot() []Schedule {
	return slices.Clone(e.schedules)
}

// Ordered returns the accepted schedules in weekly precedence order.
func (e *Editor) Ordered() []Schedule {
	return NewGraph(e.schedules...).Ordered()
}

// Message returns the pending status message, if any.
func (e *Editor) Message() (string, bool) {
	if e.message == nil {
		return "", false
	}
	return *e.message, true
}

// ClearMessage discards the pending status message.
func (e *Editor) ClearMessage() {
	e.message = nil
}

func (e *Editor) reject(message string, err error) (Schedule, error) {
	e.setMessage(message)
	return Schedule{}, err
}

func (e *Editor) setMessage(message string) {
	e.message = &message
}
