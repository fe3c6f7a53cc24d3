package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/calsys"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
)

var june15 = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type recorder struct {
	months    []int
	dates     []*time.Time
	completed []time.Time
}

func (r *recorder) MonthChanged(month int)           { r.months = append(r.months, month) }
func (r *recorder) SelectedDateChanged(d *time.Time) { r.dates = append(r.dates, d) }
func (r *recorder) Completed(at time.Time)           { r.completed = append(r.completed, at) }
func (r *recorder) events() int                      { return len(r.months) + len(r.dates) + len(r.completed) }

func newMachine(t *testing.T, cfg content.Config) (*Machine, *content.Tree, *recorder) {
	t.Helper()
	tree, err := content.Build(cfg, calsys.Gregorian{})
	require.NoError(t, err)
	rec := &recorder{}
	return New(tree, tree.InitialYear(), tree.InitialDay(), rec), tree, rec
}

func dayIndex(t *testing.T, tree *content.Tree, key content.MonthKey, n int) int {
	t.Helper()
	for i, d := range tree.Month(key).Days {
		if d.Date != nil && d.Date.Day() == n {
			return i
		}
	}
	t.Fatalf("day %d not found", n)
	return -1
}

func dateOnly(from, to int) content.Config {
	cfg := content.NewConfig(from, to)
	cfg.Now = june15
	return cfg
}

func TestNew_StartsAtInitialSelection(t *testing.T) {
	m, tree, _ := newMachine(t, dateOnly(2024, 2024))
	assert.Equal(t, Cursor{Year: 1, Month: 5}, m.Cursor())
	require.NotNil(t, m.SelectedDay())
	assert.Equal(t, *tree.InitialDay(), *m.SelectedDay())
}

func TestSelectDay_ClearsPreviousAcrossMonths(t *testing.T) {
	m, tree, rec := newMachine(t, dateOnly(2024, 2024))

	june := content.MonthKey{Year: 1, Month: 5}
	d := dayIndex(t, tree, june, 20)
	require.True(t, m.SelectDay(d))
	refD := content.DayRef{Year: 1, Month: 5, Day: d}
	assert.True(t, tree.Day(refD).Selected)

	require.True(t, m.NextMonth())
	july := content.MonthKey{Year: 1, Month: 6}
	d2 := dayIndex(t, tree, july, 3)
	require.True(t, m.SelectDay(d2))

	assert.False(t, tree.Day(refD).Selected)
	assert.True(t, tree.Day(content.DayRef{Year: 1, Month: 6, Day: d2}).Selected)
	assert.Equal(t, content.DayRef{Year: 1, Month: 6, Day: d2}, *m.SelectedDay())

	// Date-only pickers complete on day selection.
	require.Len(t, rec.completed, 2)
	assert.Equal(t, time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC), rec.completed[1])
	require.Len(t, rec.dates, 2)
	assert.Equal(t, time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), *rec.dates[0])
}

func TestSelectDay_SkipsDisabledAndPadding(t *testing.T) {
	cfg := dateOnly(2024, 2024)
	cfg.DisablePreviousDays = true
	m, tree, rec := newMachine(t, cfg)

	june := content.MonthKey{Year: 1, Month: 5}
	assert.False(t, m.SelectDay(0), "padding")
	assert.False(t, m.SelectDay(dayIndex(t, tree, june, 10)), "past day")
	assert.Zero(t, rec.events())
	assert.True(t, tree.Day(*m.SelectedDay()).Selected)
}

func TestSelectYear_ResetsMonthAndClearsDay(t *testing.T) {
	m, tree, rec := newMachine(t, dateOnly(2020, 2024))
	start := m.SelectedYear()
	require.Equal(t, 1, start)

	m.ItemScrolled(4)
	d := dayIndex(t, tree, content.MonthKey{Year: start, Month: 4}, 12)
	require.True(t, m.SelectDay(d))
	old := content.DayRef{Year: start, Month: 4, Day: d}

	require.True(t, m.SelectYear(3))
	assert.Equal(t, Cursor{Year: 3, Month: 0}, m.Cursor())
	assert.Nil(t, m.SelectedDay())
	assert.False(t, tree.Day(old).Selected, "old day flag is cleared, not just the pointer")
	assert.False(t, tree.Year(start).Selected)
	assert.True(t, tree.Year(3).Selected)
	assert.Nil(t, rec.dates[len(rec.dates)-1])

	m.ItemScrolled(7)
	require.True(t, m.SelectYear(start))
	assert.Equal(t, 0, m.Cursor().Month)
	assert.True(t, tree.Year(start).Selected)
	assert.False(t, tree.Year(3).Selected)

	before := rec.events()
	assert.False(t, m.SelectYear(start))
	assert.Equal(t, before, rec.events(), "selecting the selected year fires nothing")
}

func TestSelectYear_PlaceholderIsNoop(t *testing.T) {
	m, tree, rec := newMachine(t, dateOnly(2020, 2021))
	assert.False(t, m.SelectYear(0))
	assert.False(t, m.SelectYear(len(tree.Years())-1))
	assert.Zero(t, rec.events())
}

func TestMonthNavigation_RollsOverYears(t *testing.T) {
	m, tree, rec := newMachine(t, dateOnly(2023, 2024))
	require.Equal(t, 1, m.SelectedYear())

	assert.False(t, m.PrevMonth(), "January of the first year")
	assert.Equal(t, Cursor{Year: 1, Month: 0}, m.Cursor())

	for i := 0; i < 11; i++ {
		require.True(t, m.NextMonth())
	}
	assert.Equal(t, Cursor{Year: 1, Month: 11}, m.Cursor())

	require.True(t, m.NextMonth())
	assert.Equal(t, Cursor{Year: 2, Month: 0}, m.Cursor())
	assert.True(t, tree.Year(2).Selected)

	require.True(t, m.PrevMonth())
	assert.Equal(t, Cursor{Year: 1, Month: 11}, m.Cursor())
	assert.True(t, tree.Year(1).Selected)
	assert.Equal(t, 11, rec.months[len(rec.months)-1])

	require.True(t, m.NextMonth())
	for i := 0; i < 11; i++ {
		require.True(t, m.NextMonth())
	}
	assert.False(t, m.NextMonth(), "December of the last year")
	assert.Equal(t, Cursor{Year: 2, Month: 11}, m.Cursor())
}

func TestItemScrolled(t *testing.T) {
	m, _, rec := newMachine(t, dateOnly(2024, 2024))
	sel := m.SelectedDay()

	m.ItemScrolled(5)
	assert.Empty(t, rec.months, "already viewing June")
	m.ItemScrolled(9)
	assert.Equal(t, []int{9}, rec.months)
	assert.Equal(t, sel, m.SelectedDay())

	assert.Panics(t, func() { m.ItemScrolled(12) })
}

func timedJune(t *testing.T) content.Config {
	t.Helper()
	cfg := dateOnly(2024, 2024)
	w, err := availability.NewWindow(calsys.Thursday, "09:00", "10:00")
	require.NoError(t, err)
	cfg.Windows = []availability.Window{w}
	cfg.StepMinutes = 15
	return cfg
}

func TestSelectSlot_CompletesWithTime(t *testing.T) {
	m, tree, rec := newMachine(t, timedJune(t))

	assert.Nil(t, m.SelectedDay(), "Saturday has no window")
	assert.False(t, m.SelectSlot(1))

	m.ItemScrolled(5)
	june := content.MonthKey{Year: 1, Month: 5}
	d := dayIndex(t, tree, june, 20) // Thursday
	require.True(t, m.SelectDay(d))
	assert.Empty(t, rec.completed, "timed pickers wait for a slot")
	require.Len(t, rec.dates, 1)
	assert.Equal(t, time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC), *rec.dates[0], "first slot is preselected")
	at, ok := m.SelectedAt()
	require.True(t, ok)
	assert.Equal(t, *rec.dates[0], at)

	assert.False(t, m.SelectSlot(0), "placeholder")
	require.True(t, m.SelectSlot(3))
	require.Len(t, rec.completed, 1)
	assert.Equal(t, time.Date(2024, 6, 20, 9, 30, 0, 0, time.UTC), rec.completed[0])
	require.Len(t, rec.dates, 2)
	assert.Equal(t, rec.completed[0], *rec.dates[1])

	at, ok = m.Confirm()
	require.True(t, ok)
	assert.Equal(t, rec.completed[0], at)
	assert.Len(t, rec.completed, 1, "confirming a completed pick does not repeat it")

	require.True(t, m.SelectSlot(3))
	assert.Len(t, rec.completed, 1)
	assert.Len(t, rec.dates, 2)

	require.True(t, m.SelectSlot(2))
	require.Len(t, rec.completed, 2)
	assert.Equal(t, time.Date(2024, 6, 20, 9, 15, 0, 0, time.UTC), rec.completed[1])
}

func TestSelectDay_WaitsForTimedFill(t *testing.T) {
	m, tree, rec := newMachine(t, timedJune(t))

	m.ItemScrolled(8)
	sept := content.MonthKey{Year: 1, Month: 8}
	require.False(t, tree.Filled(sept))
	sunday := dayIndex(t, tree, sept, 1)
	thursday := dayIndex(t, tree, sept, 5)
	before := rec.events()

	assert.False(t, m.SelectDay(sunday), "slots unknown before the fill")
	assert.False(t, m.SelectDay(thursday))
	assert.Nil(t, m.SelectedDay())
	assert.Equal(t, before, rec.events())

	tree.FillMonth(sept)
	assert.False(t, m.SelectDay(sunday), "no window on Sundays")
	assert.False(t, tree.Day(content.DayRef{Year: 1, Month: 8, Day: sunday}).Selected)
	require.True(t, m.SelectDay(thursday))
	assert.Equal(t, time.Date(2024, 9, 5, 9, 0, 0, 0, time.UTC), *rec.dates[len(rec.dates)-1])
}

func TestConfirm_DateOnlyCompletesOnce(t *testing.T) {
	m, tree, rec := newMachine(t, dateOnly(2024, 2024))

	// The initial selection has not been reported yet.
	at, ok := m.Confirm()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), at)
	require.Len(t, rec.completed, 1)

	_, ok = m.Confirm()
	require.True(t, ok)
	assert.Len(t, rec.completed, 1)

	require.True(t, m.SelectDay(dayIndex(t, tree, content.MonthKey{Year: 1, Month: 5}, 21)))
	require.Len(t, rec.completed, 2)
	_, ok = m.Confirm()
	require.True(t, ok)
	assert.Len(t, rec.completed, 2)
}
