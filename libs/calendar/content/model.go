// Package content builds and owns the picker's year → month → day → slot tree.
//
// A Tree is not safe for concurrent mutation. ComputeMonth is the only method
// meant to run off the owning goroutine; everything else belongs to the owner.
package content

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
)

const MonthsPerYear = 12

type Year struct {
	Value int
	// Months is empty for placeholder years.
	Months      []Month
	Selected    bool
	Placeholder bool
}

type Month struct {
	Title string
	// Start is local midnight of the first day, on the UTC calendar.
	Start time.Time
	Days  []Day
}

type Day struct {
	// Title is the day of month, empty for padding days.
	Title       string
	Description string
	// Weekday is 1 (Sunday) through 7 (Saturday), 0 for padding days.
	Weekday  int
	Date     *time.Time
	Slots    []availability.Slot
	Disabled bool
	Selected bool
}

func (d Day) Padding() bool { return d.Date == nil }

// MonthKey identifies a month by its position in the tree.
type MonthKey struct {
	Year  int
	Month int
}

func (k MonthKey) String() string { return fmt.Sprintf("%d:%d", k.Year, k.Month) }

// DayRef identifies a day by its position in the tree.
type DayRef struct {
	Year  int
	Month int
	Day   int
}

func (r DayRef) MonthKey() MonthKey { return MonthKey{Year: r.Year, Month: r.Month} }
