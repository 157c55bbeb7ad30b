package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/formation-engine/generic"
)

func clock(t *testing.T, s string) generic.ClockTime {
	t.Helper()
	c, err := generic.ParseClockTime(s)
	require.NoError(t, err)
	return c
}

func TestInterval_Overlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b [2]string
		want bool
	}{
		{"touching boundary", [2]string{"09:00", "12:00"}, [2]string{"12:00", "14:00"}, false},
		{"one minute overlap", [2]string{"09:00", "12:00"}, [2]string{"11:59", "13:00"}, true},
		{"contained", [2]string{"09:00", "17:00"}, [2]string{"10:00", "11:00"}, true},
		{"identical", [2]string{"09:00", "12:00"}, [2]string{"09:00", "12:00"}, true},
		{"disjoint", [2]string{"08:00", "09:00"}, [2]string{"14:00", "15:00"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := generic.Interval{Start: clock(t, tc.a[0]), End: clock(t, tc.a[1])}
			b := generic.Interval{Start: clock(t, tc.b[0]), End: clock(t, tc.b[1])}
			assert.Equal(t, tc.want, a.Overlaps(b))
			assert.Equal(t, tc.want, b.Overlaps(a), "overlap must be symmetric")
		})
	}
}

func TestParseClockTime(t *testing.T) {
	c, err := generic.ParseClockTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", c.String())

	c, err = generic.ParseClockTime("09:30:00")
	require.NoError(t, err)
	assert.Equal(t, "09:30", c.String())

	// Seconds would be lost on a minute-grained clock
	_, err = generic.ParseClockTime("09:00:30")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = generic.ParseClockTime("9h30")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestFiscalCalendar(t *testing.T) {
	// GIVEN: Fiscal years starting in September
	fc := generic.FiscalCalendar{StartMonth: time.September}

	assert.Equal(t, 2024, fc.YearOf(generic.NewTimePoint(2025, time.August, 31)))
	assert.Equal(t, 2025, fc.YearOf(generic.NewTimePoint(2025, time.September, 1)))

	p := fc.PeriodOf(2025)
	assert.Equal(t, "2025-09-01", p.Start.String())
	assert.Equal(t, "2026-08-31", p.End.String())
	assert.True(t, p.Contains(generic.NewTimePoint(2026, time.January, 15)))

	assert.Equal(t, 2025, generic.CalendarYear.YearOf(generic.NewTimePoint(2025, time.January, 1)))
	assert.ErrorIs(t, generic.ValidateFiscalYear(12), generic.ErrInvalidFiscalYear)
}
