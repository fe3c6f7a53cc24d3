// Package selection tracks which year, month, day and slot are current and
// keeps the content tree's selection flags consistent with that state.
package selection

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
)

const lastMonth = content.MonthsPerYear - 1

// Model is the part of the content tree the machine drives.
type Model interface {
	Year(i int) content.Year
	Day(ref content.DayRef) content.Day
	IsPlaceholder(year int) bool
	SetDaySelected(ref content.DayRef, selected bool)
	ToggleYearSelected(prev, next int)
	SelectSlot(ref content.DayRef, slot int) bool
	SelectedSlot(ref content.DayRef) int
	ResolveDateTime(ref content.DayRef, slot int) (time.Time, bool)
	ResolveDate(ref content.DayRef) (time.Time, bool)
	Filled(key content.MonthKey) bool
	Timed() bool
}

// Observer receives state changes. Calls happen synchronously on the goroutine
// driving the machine.
type Observer interface {
	MonthChanged(month int)
	// SelectedDateChanged carries nil when the day selection is cleared.
	SelectedDateChanged(date *time.Time)
	// Completed carries the composed result of a finished pick.
	Completed(at time.Time)
}

// Cursor is the year and month being viewed.
type Cursor struct {
	Year  int
	Month int
}

type Machine struct {
	model    Model
	observer Observer

	year  int
	month int
	day   *content.DayRef

	// completed is set once the current selection has been reported through
	// Completed and reset by any selection change.
	completed bool
}

// New starts the machine at the tree's initial selection. The viewed month is
// the initially selected day's month, or January when there is none.
func New(model Model, year int, day *content.DayRef, observer Observer) *Machine {
	m := &Machine{model: model, observer: observer, year: year}
	if day != nil {
		ref := *day
		m.day = &ref
		m.month = ref.Month
	}
	return m
}

func (m *Machine) Cursor() Cursor { return Cursor{Year: m.year, Month: m.month} }

func (m *Machine) SelectedYear() int { return m.year }

// SelectedDay returns the selected day, or nil.
func (m *Machine) SelectedDay() *content.DayRef {
	if m.day == nil {
		return nil
	}
	ref := *m.day
	return &ref
}

// SelectDay selects day index in the viewed month, clearing the previous
// selection first. Disabled days are not selectable and report false, and so
// are the days of a timed month whose slots are not filled yet.
func (m *Machine) SelectDay(index int) bool {
	ref := content.DayRef{Year: m.year, Month: m.month, Day: index}
	if m.model.Timed() && !m.model.Filled(content.MonthKey{Year: m.year, Month: m.month}) {
		return false
	}
	day := m.model.Day(ref)
	if day.Disabled || day.Padding() {
		return false
	}

	m.clearDay()
	m.model.SetDaySelected(ref, true)
	m.day = &ref

	date, _ := m.SelectedAt()
	m.observer.SelectedDateChanged(&date)
	if !m.model.Timed() {
		m.complete(date)
	}
	return true
}

// SelectedAt is the current selection as an instant: the selected slot's time
// on timed pickers, midnight of the selected day otherwise.
func (m *Machine) SelectedAt() (time.Time, bool) {
	if m.day == nil {
		return time.Time{}, false
	}
	if m.model.Timed() {
		if at, ok := m.model.ResolveDateTime(*m.day, m.model.SelectedSlot(*m.day)); ok {
			return at, true
		}
	}
	return m.model.ResolveDate(*m.day)
}

// SelectSlot picks a time slot of the selected day and completes the pick.
// It reports false without a selected day or for a placeholder slot.
// Selecting the slot of an already completed pick again reports true and
// fires nothing.
func (m *Machine) SelectSlot(index int) bool {
	if m.day == nil {
		return false
	}
	if m.completed && m.model.SelectedSlot(*m.day) == index {
		return true
	}
	if !m.model.SelectSlot(*m.day, index) {
		return false
	}
	at, ok := m.model.ResolveDateTime(*m.day, index)
	if !ok {
		return false
	}
	m.completed = false
	m.observer.SelectedDateChanged(&at)
	m.complete(at)
	return true
}

// Confirm completes the pick with the current selection: the selected slot
// of the selected day, or the day alone for date-only pickers. A selection
// that already completed is returned again without a second Completed.
func (m *Machine) Confirm() (time.Time, bool) {
	if m.day == nil {
		return time.Time{}, false
	}
	var (
		at time.Time
		ok bool
	)
	if m.model.Timed() {
		at, ok = m.model.ResolveDateTime(*m.day, m.model.SelectedSlot(*m.day))
	} else {
		at, ok = m.model.ResolveDate(*m.day)
	}
	if ok && !m.completed {
		m.complete(at)
	}
	return at, ok
}

func (m *Machine) complete(at time.Time) {
	m.completed = true
	m.observer.Completed(at)
}

// SelectYear makes index the selected year, resets the viewed month to
// January and clears the day selection. Selecting the current year or a
// placeholder is a no-op.
func (m *Machine) SelectYear(index int) bool {
	return m.selectYear(index, 0)
}

func (m *Machine) selectYear(index, month int) bool {
	if index == m.year || m.model.IsPlaceholder(index) {
		return false
	}
	m.model.ToggleYearSelected(m.year, index)
	m.year = index

	if m.clearDay() {
		m.observer.SelectedDateChanged(nil)
	}
	m.month = month
	m.observer.MonthChanged(month)
	return true
}

// NextMonth advances the viewed month, rolling into the next year after
// December. It reports false at the end of the range.
func (m *Machine) NextMonth() bool {
	if m.month < lastMonth {
		m.month++
		m.observer.MonthChanged(m.month)
		return true
	}
	return m.selectYear(m.year+1, 0)
}

// PrevMonth steps the viewed month back, rolling into December of the
// previous year. It reports false at the start of the range.
func (m *Machine) PrevMonth() bool {
	if m.month > 0 {
		m.month--
		m.observer.MonthChanged(m.month)
		return true
	}
	return m.selectYear(m.year-1, lastMonth)
}

// ItemScrolled syncs the viewed month with the month the presentation layer
// settled on.
func (m *Machine) ItemScrolled(index int) {
	if index < 0 || index > lastMonth {
		panic(fmt.Sprintf("selection: month index %d out of range", index))
	}
	if index == m.month {
		return
	}
	m.month = index
	m.observer.MonthChanged(index)
}

func (m *Machine) clearDay() bool {
	if m.day == nil {
		return false
	}
	m.model.SetDaySelected(*m.day, false)
	m.day = nil
	m.completed = false
	return true
}
