package content

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/calsys"
)

type Tree struct {
	cfg    Config
	sys    calsys.System
	today  time.Time
	cutoff *time.Time

	// values is written once by Build and read by ComputeMonth off the owner.
	values []int
	years  []Year
	filled map[MonthKey]bool

	computed atomic.Int64

	initialYear int
	initialDay  *DayRef
}

// Build validates cfg and generates the full tree, including the two
// placeholder years that bracket the range. Only the month containing today is
// filled with time slots; the others wait for FillMonth.
func Build(cfg Config, sys calsys.System) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sys == nil {
		sys = calsys.Gregorian{}
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	t := &Tree{
		cfg:    cfg,
		sys:    sys,
		today:  calsys.Normalize(now),
		filled: make(map[MonthKey]bool),
	}
	if cfg.Timed() {
		t.cutoff = availability.LeadCutoff(sys, t.today, cfg.LeadMinutes)
	}

	selected := cfg.ToYear - cfg.SelectingYearGap
	if selected < cfg.FromYear || selected > cfg.ToYear {
		selected = cfg.FromYear
	}

	t.years = make([]Year, 0, cfg.ToYear-cfg.FromYear+3)
	t.values = make([]int, 0, cap(t.years))
	t.appendPlaceholder()

	for y := cfg.FromYear; y <= cfg.ToYear; y++ {
		yi := len(t.years)
		months := make([]Month, 0, MonthsPerYear)
		for mi := 0; mi < MonthsPerYear; mi++ {
			m := time.Month(mi + 1)
			start := sys.Date(y, m, 1, 0, 0)
			eager := sys.Compare(start, t.today, calsys.Month) == 0
			months = append(months, Month{
				Title: cfg.monthTitle(m),
				Start: start,
				Days:  t.buildDays(y, m, eager),
			})
			if eager || !cfg.Timed() {
				t.filled[MonthKey{Year: yi, Month: mi}] = true
			}
		}
		t.years = append(t.years, Year{Value: y, Months: months, Selected: y == selected})
		t.values = append(t.values, y)
		if y == selected {
			t.initialYear = yi
		}
	}
	t.appendPlaceholder()

	t.selectToday()
	return t, nil
}

func (t *Tree) appendPlaceholder() {
	t.years = append(t.years, Year{Placeholder: true})
	t.values = append(t.values, 0)
}

func (t *Tree) selectToday() {
	key, ok := t.TodayMonth()
	if !ok || key.Year != t.initialYear {
		return
	}
	days := t.years[key.Year].Months[key.Month].Days
	for i, d := range days {
		if d.Date == nil || t.sys.Compare(*d.Date, t.today, calsys.Day) != 0 {
			continue
		}
		if d.Disabled {
			return
		}
		days[i].Selected = true
		t.initialDay = &DayRef{Year: key.Year, Month: key.Month, Day: i}
		return
	}
}

func (t *Tree) buildDays(year int, month time.Month, fill bool) []Day {
	count := t.sys.DayCount(year, month)
	first := t.sys.Weekday(t.sys.Date(year, month, 1, 0, 0))
	pad := (first - t.cfg.weekStart() + calsys.DaysInWeek) % calsys.DaysInWeek

	days := make([]Day, pad, pad+count)
	for i := range days {
		days[i] = Day{Disabled: true}
	}
	for d := 1; d <= count; d++ {
		date := t.sys.Date(year, month, d, 0, 0)
		wd := t.sys.Weekday(date)
		day := Day{
			Title:    strconv.Itoa(d),
			Weekday:  wd,
			Date:     &date,
			Disabled: t.staticallyDisabled(date, wd),
		}
		if t.sys.Compare(date, t.today, calsys.Day) == 0 {
			day.Description = t.cfg.TodayMarker
		}
		if fill && t.cfg.Timed() {
			day.Slots = availability.DaySlots(t.sys, date, t.cfg.Windows, t.cfg.StepMinutes, t.today, t.cutoff)
			if len(day.Slots) == 0 {
				day.Disabled = true
			}
		}
		days = append(days, day)
	}
	return days
}

func (t *Tree) staticallyDisabled(date time.Time, weekday int) bool {
	if t.cfg.DisablePreviousDays && t.sys.Compare(date, t.today, calsys.Day) < 0 {
		return true
	}
	if t.cfg.DisableWeekends && (weekday == calsys.Saturday || weekday == calsys.Sunday) {
		return true
	}
	return false
}

// ComputeMonth generates the slot-filled days of key without touching the
// tree. It is safe to call from any goroutine.
func (t *Tree) ComputeMonth(key MonthKey) []Day {
	if t.isPlaceholder(key.Year) {
		panic(fmt.Sprintf("content: month %s belongs to a placeholder year", key))
	}
	t.computed.Add(1)
	return t.buildDays(t.values[key.Year], time.Month(key.Month+1), true)
}

// StoreMonth writes computed days into the tree. The first store for a month
// wins; later stores return false and change nothing. Selection flags already
// set on the month survive the store.
func (t *Tree) StoreMonth(key MonthKey, days []Day) bool {
	if t.filled[key] {
		return false
	}
	month := &t.years[key.Year].Months[key.Month]
	for i := range days {
		if i < len(month.Days) {
			days[i].Selected = month.Days[i].Selected
		}
	}
	month.Days = days
	t.filled[key] = true
	return true
}

// FillMonth returns the slot-filled month, computing it on the first call only.
func (t *Tree) FillMonth(key MonthKey) Month {
	if !t.filled[key] {
		t.StoreMonth(key, t.ComputeMonth(key))
	}
	return t.years[key.Year].Months[key.Month]
}

func (t *Tree) Filled(key MonthKey) bool { return t.filled[key] }

// Computations counts ComputeMonth calls.
func (t *Tree) Computations() int64 { return t.computed.Load() }

// SetDaySelected sets only the targeted day's flag.
func (t *Tree) SetDaySelected(ref DayRef, selected bool) {
	t.years[ref.Year].Months[ref.Month].Days[ref.Day].Selected = selected
}

// ToggleYearSelected flips the flag of both years. prev and next must differ
// and both must be real years.
func (t *Tree) ToggleYearSelected(prev, next int) {
	if prev == next {
		panic(fmt.Sprintf("content: toggling year %d against itself", prev))
	}
	if t.isPlaceholder(prev) || t.isPlaceholder(next) {
		panic(fmt.Sprintf("content: toggling placeholder year (%d, %d)", prev, next))
	}
	t.years[prev].Selected = !t.years[prev].Selected
	t.years[next].Selected = !t.years[next].Selected
}

// SelectSlot makes slot the only selected slot of the day. Placeholders are
// not selectable.
func (t *Tree) SelectSlot(ref DayRef, slot int) bool {
	slots := t.years[ref.Year].Months[ref.Month].Days[ref.Day].Slots
	if slots[slot].Placeholder {
		return false
	}
	for i := range slots {
		slots[i].Selected = i == slot
	}
	return true
}

// SelectedSlot returns the index of the selected slot of the day, or -1.
func (t *Tree) SelectedSlot(ref DayRef) int {
	for i, s := range t.Day(ref).Slots {
		if s.Selected && !s.Placeholder {
			return i
		}
	}
	return -1
}

// ResolveDateTime combines the day's date with the hour and minute of one of
// its slots. It reports false for padding days, out-of-range indices and
// placeholder slots.
func (t *Tree) ResolveDateTime(ref DayRef, slot int) (time.Time, bool) {
	day := t.Day(ref)
	if day.Date == nil || slot < 0 || slot >= len(day.Slots) {
		return time.Time{}, false
	}
	s := day.Slots[slot]
	if s.Placeholder {
		return time.Time{}, false
	}
	y, m, d := day.Date.Date()
	return t.sys.Date(y, m, d, s.Instant.Hour(), s.Instant.Minute()), true
}

// ResolveDate returns the day's date, or false for padding days.
func (t *Tree) ResolveDate(ref DayRef) (time.Time, bool) {
	day := t.Day(ref)
	if day.Date == nil {
		return time.Time{}, false
	}
	return *day.Date, true
}

func (t *Tree) Years() []Year { return t.years }

func (t *Tree) Year(i int) Year { return t.years[i] }

func (t *Tree) Month(key MonthKey) Month { return t.years[key.Year].Months[key.Month] }

func (t *Tree) Day(ref DayRef) Day {
	return t.years[ref.Year].Months[ref.Month].Days[ref.Day]
}

func (t *Tree) IsPlaceholder(year int) bool { return t.isPlaceholder(year) }

func (t *Tree) isPlaceholder(year int) bool {
	return year <= 0 || year >= len(t.values)-1
}

// TodayMonth returns the position of the month containing today, if it lies
// in the configured range.
func (t *Tree) TodayMonth() (MonthKey, bool) {
	y := t.today.Year()
	if y < t.cfg.FromYear || y > t.cfg.ToYear {
		return MonthKey{}, false
	}
	return MonthKey{Year: y - t.cfg.FromYear + 1, Month: int(t.today.Month()) - 1}, true
}

func (t *Tree) InitialYear() int { return t.initialYear }

// InitialDay is the day selected by Build, if any.
func (t *Tree) InitialDay() *DayRef {
	if t.initialDay == nil {
		return nil
	}
	ref := *t.initialDay
	return &ref
}

func (t *Tree) Today() time.Time { return t.today }

func (t *Tree) Timed() bool { return t.cfg.Timed() }

func (t *Tree) Config() Config { return t.cfg }
