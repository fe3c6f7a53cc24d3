package picker

import (
	"slices"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/selection"
)

// YearItem is a year as shown in the year strip.
type YearItem struct {
	Value       int  `json:"value"`
	Selected    bool `json:"selected"`
	Placeholder bool `json:"placeholder"`
}

// State is a snapshot of the selection.
type State struct {
	Ready       bool              `json:"ready"`
	Cursor      selection.Cursor  `json:"cursor"`
	SelectedDay *content.DayRef   `json:"selected_day,omitempty"`
	SelectedAt  *time.Time        `json:"selected_at,omitempty"`
	TodayMonth  *content.MonthKey `json:"today_month,omitempty"`
}

func (p *Picker) State() (State, error) {
	var st State
	err := p.do(func() error {
		if p.machine == nil {
			return nil
		}
		st.Ready = true
		st.Cursor = p.machine.Cursor()
		if ref := p.machine.SelectedDay(); ref != nil {
			st.SelectedDay = ref
			if at, ok := p.machine.SelectedAt(); ok {
				st.SelectedAt = &at
			}
		}
		if key, ok := p.tree.TodayMonth(); ok {
			st.TodayMonth = &key
		}
		return nil
	})
	return st, err
}

func (p *Picker) Years() ([]YearItem, error) {
	var out []YearItem
	err := p.withMachine(func() error {
		years := p.tree.Years()
		out = make([]YearItem, len(years))
		for i, y := range years {
			out[i] = YearItem{Value: y.Value, Selected: y.Selected, Placeholder: y.Placeholder}
		}
		return nil
	})
	return out, err
}

// Month returns month index of the selected year. A month whose slots are not
// computed yet is returned as is and filled in the background; MonthFilled
// fires when the filled version is available.
func (p *Picker) Month(index int) (content.Month, error) {
	var out content.Month
	err := p.withMachine(func() error {
		if err := checkIndex(index, content.MonthsPerYear, "month"); err != nil {
			return err
		}
		key := content.MonthKey{Year: p.machine.SelectedYear(), Month: index}
		p.scheduleFill(key)
		out = cloneMonth(p.tree.Month(key))
		return nil
	})
	return out, err
}

// MonthFilled reports whether month index of the selected year carries slots.
func (p *Picker) MonthFilled(index int) (bool, error) {
	var filled bool
	err := p.withMachine(func() error {
		if err := checkIndex(index, content.MonthsPerYear, "month"); err != nil {
			return err
		}
		filled = p.tree.Filled(content.MonthKey{Year: p.machine.SelectedYear(), Month: index})
		return nil
	})
	return filled, err
}

// DaySlots returns the slots of the selected day, empty when nothing is selected.
func (p *Picker) DaySlots() ([]availability.Slot, error) {
	var out []availability.Slot
	err := p.withMachine(func() error {
		if ref := p.machine.SelectedDay(); ref != nil {
			out = slices.Clone(p.tree.Day(*ref).Slots)
		}
		return nil
	})
	return out, err
}

// SelectDay selects day index of the viewed month. On timed pickers a month
// without slots yet returns ErrMonthPending and gets filled in the background.
func (p *Picker) SelectDay(index int) (bool, error) {
	var ok bool
	err := p.withMachine(func() error {
		cur := p.machine.Cursor()
		key := content.MonthKey{Year: cur.Year, Month: cur.Month}
		if err := checkIndex(index, len(p.tree.Month(key).Days), "day"); err != nil {
			return err
		}
		if p.tree.Timed() && !p.tree.Filled(key) {
			p.scheduleFill(key)
			return ErrMonthPending
		}
		ok = p.machine.SelectDay(index)
		return nil
	})
	return ok, err
}

func (p *Picker) SelectSlot(index int) (bool, error) {
	var ok bool
	err := p.withMachine(func() error {
		if ref := p.machine.SelectedDay(); ref != nil {
			if err := checkIndex(index, len(p.tree.Day(*ref).Slots), "slot"); err != nil {
				return err
			}
		}
		ok = p.machine.SelectSlot(index)
		return nil
	})
	return ok, err
}

func (p *Picker) SelectYear(index int) (bool, error) {
	var ok bool
	err := p.withMachine(func() error {
		if err := checkIndex(index, len(p.tree.Years()), "year"); err != nil {
			return err
		}
		ok = p.machine.SelectYear(index)
		return nil
	})
	return ok, err
}

func (p *Picker) NextMonth() (bool, error) {
	var ok bool
	err := p.withMachine(func() error {
		ok = p.machine.NextMonth()
		return nil
	})
	return ok, err
}

func (p *Picker) PrevMonth() (bool, error) {
	var ok bool
	err := p.withMachine(func() error {
		ok = p.machine.PrevMonth()
		return nil
	})
	return ok, err
}

func (p *Picker) ItemScrolled(index int) error {
	return p.withMachine(func() error {
		if err := checkIndex(index, content.MonthsPerYear, "month"); err != nil {
			return err
		}
		p.machine.ItemScrolled(index)
		return nil
	})
}

// Confirm completes the pick with the current selection.
func (p *Picker) Confirm() (time.Time, bool, error) {
	var (
		at time.Time
		ok bool
	)
	err := p.withMachine(func() error {
		at, ok = p.machine.Confirm()
		return nil
	})
	return at, ok, err
}

func cloneMonth(m content.Month) content.Month {
	days := make([]content.Day, len(m.Days))
	for i, d := range m.Days {
		d.Slots = slices.Clone(d.Slots)
		if d.Date != nil {
			date := *d.Date
			d.Date = &date
		}
		days[i] = d
	}
	m.Days = days
	return m
}
