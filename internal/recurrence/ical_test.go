package recurrence

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/example/unilocal/internal/scheduler"
)

func TestEngine_Calendar(t *testing.T) {
	engine := NewEngine(nil)
	locale := scheduler.MustLoadLocale("es")

	out := engine.Calendar(CalendarInput{
		UID:       "place-1",
		Name:      "Café Quindío",
		Address:   "Calle 21 #14-05",
		Schedules: []scheduler.Schedule{weekdayHours, saturdayNoon},
		Anchor:    at(14, 9),
		Format:    locale.Format,
	})

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)
	require.Len(t, cal.Timezones(), 1)
	assert.Contains(t, out, "TZOFFSETTO:-0500")

	first := cal.Events()[0]
	assert.Equal(t, "place-1-0@unilocal", first.GetProperty(ics.ComponentPropertyUniqueId).Value)
	start := first.GetProperty(ics.ComponentPropertyDtStart)
	assert.Equal(t, "20240311T080000", start.Value)
	assert.Equal(t, []string{"COT"}, start.ICalParameters["TZID"])
	assert.Equal(t, "20240311T170000", first.GetProperty(ics.ComponentPropertyDtEnd).Value)

	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;WKST=MO;BYDAY=MO,TU,WE,TH,FR")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;WKST=MO;BYDAY=SA")

	_, err = rrule.StrToRRule(RRule(weekdayHours))
	assert.NoError(t, err, "exported rule must parse back")
}

func TestEngine_CalendarEveningEventsRecurOnTheLocalWeekday(t *testing.T) {
	bogotaZone, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)

	for name, loc := range map[string]*time.Location{"fixed offset": nil, "named zone": bogotaZone} {
		t.Run(name, func(t *testing.T) {
			engine := NewEngine(loc)
			fridayNight := scheduler.MustSchedule(scheduler.Friday, scheduler.Friday, scheduler.MustAt(20, 0), scheduler.MustAt(23, 0))

			out := engine.Calendar(CalendarInput{
				UID:       "place-2",
				Name:      "Bar La Octava",
				Schedules: []scheduler.Schedule{fridayNight},
				Anchor:    at(14, 9),
			})
			cal, err := ics.ParseCalendar(strings.NewReader(out))
			require.NoError(t, err)
			require.Len(t, cal.Events(), 1)
			event := cal.Events()[0]

			dtstart := event.GetProperty(ics.ComponentPropertyDtStart)
			require.Equal(t, []string{engine.Location().String()}, dtstart.ICalParameters["TZID"])
			first, err := time.ParseInLocation(localTimestamp, dtstart.Value, engine.Location())
			require.NoError(t, err)

			option, err := rrule.StrToROption(event.GetProperty(ics.ComponentPropertyRrule).Value)
			require.NoError(t, err)
			option.Dtstart = first
			option.Count = 3
			rule, err := rrule.NewRRule(*option)
			require.NoError(t, err)

			occurrences := rule.All()
			require.Len(t, occurrences, 3)
			for _, occurrence := range occurrences {
				local := occurrence.In(engine.Location())
				assert.Equal(t, time.Friday, local.Weekday(), "occurrence %v", local)
				assert.Equal(t, 20, local.Hour())
			}
		})
	}
}
