package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Fiscal year boundaries for budget consolidation
// =============================================================================

// Period is an inclusive date range [Start, End].
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// FiscalCalendar maps dates to fiscal years. A fiscal year is labelled by
// the calendar year in which it starts: with StartMonth = September, fiscal
// year 2025 runs 2025-09-01 to 2026-08-31.
type FiscalCalendar struct {
	StartMonth time.Month
}

// CalendarYear is the default fiscal calendar (January start).
var CalendarYear = FiscalCalendar{StartMonth: time.January}

func (fc FiscalCalendar) startMonth() time.Month {
	if fc.StartMonth < time.January || fc.StartMonth > time.December {
		return time.January
	}
	return fc.StartMonth
}

// YearOf returns the fiscal year containing the date.
func (fc FiscalCalendar) YearOf(date TimePoint) int {
	start := NewTimePoint(date.Year(), fc.startMonth(), 1)
	if date.Before(start) {
		return date.Year() - 1
	}
	return date.Year()
}

// PeriodOf returns the date range of a fiscal year.
func (fc FiscalCalendar) PeriodOf(year int) Period {
	start := NewTimePoint(year, fc.startMonth(), 1)
	return Period{Start: start, End: start.AddYears(1).AddDays(-1)}
}

// ValidateFiscalYear rejects years outside a sane range.
func ValidateFiscalYear(year int) error {
	if year < 1900 || year > 9999 {
		return fmt.Errorf("%w: %d", ErrInvalidFiscalYear, year)
	}
	return nil
}
