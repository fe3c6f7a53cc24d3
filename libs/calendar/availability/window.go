package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/calsys"
)

var (
	ErrInvalidWeekday    = errors.New("weekday must be between 1 (Sunday) and 7 (Saturday)")
	ErrInvalidTimeWindow = errors.New("window start must be before window end")
	ErrInvalidTimeFormat = errors.New("time of day must be formatted as HH:mm")
)

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(labelLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w (got %q)", ErrInvalidTimeFormat, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText and UnmarshalText let windows round-trip through YAML and JSON as "HH:mm".
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window is the bookable span of one weekday.
type Window struct {
	Weekday int       `json:"weekday" yaml:"weekday"`
	Start   TimeOfDay `json:"start" yaml:"start"`
	End     TimeOfDay `json:"end" yaml:"end"`
}

func (w Window) Validate() error {
	if !calsys.ValidWeekday(w.Weekday) {
		return fmt.Errorf("%w (got %d)", ErrInvalidWeekday, w.Weekday)
	}
	if w.Start.Minutes() >= w.End.Minutes() {
		return fmt.Errorf("%w (weekday %d: %s-%s)", ErrInvalidTimeWindow, w.Weekday, w.Start, w.End)
	}
	return nil
}

// NewWindow parses "HH:mm" bounds and validates the result.
func NewWindow(weekday int, start, end string) (Window, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Weekday: weekday, Start: s, End: e}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}
