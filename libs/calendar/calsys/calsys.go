// Package calsys is the calendar arithmetic the picker core depends on.
//
// All instants handled by the picker live on a fixed UTC-based calendar so day
// boundaries do not move with the host timezone. Normalize converts a host
// wall clock into that calendar.
package calsys

import "time"

// Weekday numbering used across the picker: 1 = Sunday ... 7 = Saturday.
const (
	Sunday    = 1
	Monday    = 2
	Tuesday   = 3
	Wednesday = 4
	Thursday  = 5
	Friday    = 6
	Saturday  = 7
)

// DaysInWeek is the number of weekday columns in a month grid.
const DaysInWeek = 7

type Granularity int

const (
	Minute Granularity = iota
	Hour
	Day
	Month
	Year
)

// System is the injected calendar capability.
type System interface {
	// DayCount returns the number of days in month of year.
	DayCount(year int, month time.Month) int
	// Weekday returns 1 (Sunday) through 7 (Saturday).
	Weekday(t time.Time) int
	AddMinutes(t time.Time, n int) time.Time
	// Compare returns -1, 0 or +1 comparing a and b truncated to g.
	Compare(a, b time.Time, g Granularity) int
	Date(year int, month time.Month, day, hour, minute int) time.Time
}

// Gregorian is a System pinned to UTC.
type Gregorian struct{}

var _ System = Gregorian{}

func (Gregorian) DayCount(year int, month time.Month) int {
	// Day 0 of the following month is the last day of month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (Gregorian) Weekday(t time.Time) int {
	return int(t.UTC().Weekday()) + 1
}

func (Gregorian) AddMinutes(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * time.Minute)
}

func (Gregorian) Compare(a, b time.Time, g Granularity) int {
	return truncate(a, g).Compare(truncate(b, g))
}

func (Gregorian) Date(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func truncate(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch g {
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC)
	}
}

// Normalize re-expresses the wall clock of t (in its own location) as the same
// wall clock on the UTC calendar. 14:05 in Europe/Berlin becomes 14:05 UTC.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC)
}

// ValidWeekday reports whether wd lies in [Sunday, Saturday].
func ValidWeekday(wd int) bool {
	return wd >= Sunday && wd <= Saturday
}
