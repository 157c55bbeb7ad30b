package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date (slots, fiscal years, archive stamps)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return TimePoint{Time: t}, nil
}

func Today() TimePoint {
	now := time.Now()
	return NewTimePoint(now.Year(), now.Month(), now.Day())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (tp TimePoint) AddDays(n int) TimePoint  { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddYears(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(n, 0, 0)} }

func (tp TimePoint) Year() int          { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month  { return tp.Time.Month() }
func (tp TimePoint) Day() int           { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool       { return tp.Time.IsZero() }
func (tp TimePoint) String() string     { return tp.Time.Format(dateLayout) }

// =============================================================================
// CLOCK TIME - Minutes since midnight
// =============================================================================

// ClockTime is a time of day at minute precision. Slots never cross midnight.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime { return ClockTime(hour*60 + minute) }

// ParseClockTime accepts "HH:MM". Slots are minute-grained, so "HH:MM:SS"
// is only accepted with zero seconds.
func ParseClockTime(s string) (ClockTime, error) {
	if t, err := time.Parse("15:04", s); err == nil {
		return NewClockTime(t.Hour(), t.Minute()), nil
	}
	if t, err := time.Parse("15:04:05", s); err == nil && t.Second() == 0 {
		return NewClockTime(t.Hour(), t.Minute()), nil
	}
	return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, s)
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// =============================================================================
// INTERVAL - Half-open [Start, End) range within one day
// =============================================================================

type Interval struct {
	Start ClockTime
	End   ClockTime
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals ([9:00,12:00) and [12:00,14:00)) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Valid reports whether the interval is non-empty.
func (i Interval) Valid() bool { return i.Start < i.End }

func (i Interval) String() string { return i.Start.String() + "-" + i.End.String() }
