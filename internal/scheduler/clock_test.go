package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTo24Hour(t *testing.T) {
	cases := []struct {
		hour   int
		minute int
		period Period
		want   string
	}{
		{12, 0, AM, "00:00"},
		{12, 0, PM, "12:00"},
		{9, 0, PM, "21:00"},
		{9, 15, AM, "09:15"},
		{1, 30, PM, "13:30"},
		{11, 59, PM, "23:59"},
	}

	for _, tc := range cases {
		got, err := To24Hour(tc.hour, tc.minute, tc.period)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.String(), "%d:%02d %s", tc.hour, tc.minute, tc.period)

		back := ClockTimeOf(got)
		assert.Equal(t, ClockTime{Hour: tc.hour, Minute: tc.minute, Period: tc.period}, back)
	}
}

func TestTo24HourRejectsInvalidInput(t *testing.T) {
	for _, tc := range []ClockTime{
		{Hour: 0, Minute: 0, Period: AM},
		{Hour: 13, Minute: 0, Period: PM},
		{Hour: 10, Minute: 60, Period: AM},
		{Hour: 10, Minute: 0, Period: "XM"},
	} {
		_, err := tc.TimeOfDay()
		assert.ErrorIs(t, err, ErrInvalidHours, "%+v", tc)
	}
}

func TestParsePeriod(t *testing.T) {
	for input, want := range map[string]Period{"am": AM, " P.M. ": PM, "PM": PM, "a.m.": AM} {
		got, err := ParsePeriod(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePeriod("noon")
	assert.ErrorIs(t, err, ErrInvalidHours)
}
