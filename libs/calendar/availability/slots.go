package availability

import (
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/calsys"
)

const labelLayout = "15:04"

// Slot is one bookable time of day. Placeholder slots carry no time and only
// bracket the real ones so a scrolling list can center its first and last item.
type Slot struct {
	Label       string
	Instant     time.Time
	Selected    bool
	Placeholder bool
}

// DaySlots returns the bookable slots of the calendar day containing day.
//
// The window matching the day's weekday is anchored on that day and walked in
// steps of stepMinutes while the candidate is strictly before the window end
// and still on the same calendar day. A candidate at or before now, or at or
// before leadCutoff when set, is skipped. Comparisons are at minute
// granularity.
//
// The result is empty or has the shape [placeholder, real..., placeholder]
// with the first real slot selected.
func DaySlots(sys calsys.System, day time.Time, windows []Window, stepMinutes int, now time.Time, leadCutoff *time.Time) []Slot {
	if stepMinutes < 1 {
		return nil
	}
	w, ok := windowFor(windows, sys.Weekday(day))
	if !ok {
		return nil
	}

	y, m, d := day.UTC().Date()
	start := sys.Date(y, m, d, w.Start.Hour, w.Start.Minute)
	end := sys.Date(y, m, d, w.End.Hour, w.End.Minute)

	slots := []Slot{{Placeholder: true}}
	for t := start; sys.Compare(t, end, calsys.Minute) < 0; t = sys.AddMinutes(t, stepMinutes) {
		if sys.Compare(t, start, calsys.Day) != 0 {
			break
		}
		if !bookable(sys, t, now, leadCutoff) {
			continue
		}
		slots = append(slots, Slot{Label: t.Format(labelLayout), Instant: t})
	}
	if len(slots) == 1 {
		return nil
	}
	slots = append(slots, Slot{Placeholder: true})
	slots[1].Selected = true
	return slots
}

// LeadCutoff returns now shifted by minutes, or nil when no lead time applies.
func LeadCutoff(sys calsys.System, now time.Time, minutes int) *time.Time {
	if minutes <= 0 {
		return nil
	}
	cutoff := sys.AddMinutes(now, minutes)
	return &cutoff
}

// Real returns the non-placeholder slots.
func Real(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if !s.Placeholder {
			out = append(out, s)
		}
	}
	return out
}

func bookable(sys calsys.System, t, now time.Time, leadCutoff *time.Time) bool {
	if sys.Compare(t, now, calsys.Minute) <= 0 {
		return false
	}
	if leadCutoff != nil && sys.Compare(t, *leadCutoff, calsys.Minute) <= 0 {
		return false
	}
	return true
}

func windowFor(windows []Window, weekday int) (Window, bool) {
	for _, w := range windows {
		if w.Weekday == weekday {
			return w, true
		}
	}
	return Window{}, false
}
