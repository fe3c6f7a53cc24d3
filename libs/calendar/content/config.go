package content

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/calsys"
)

// DefaultSelectingYearGap is how far back from the last year of the range the
// initially selected year sits (a birth-date style default).
const DefaultSelectingYearGap = 18

var (
	ErrInvalidYearRange  = errors.New("'from' year must be equal or less than 'to' year")
	ErrInvalidWeekday    = availability.ErrInvalidWeekday
	ErrInvalidTimeWindow = availability.ErrInvalidTimeWindow
	ErrInvalidInterval   = errors.New("slot interval must be at least 1 minute")
)

// ConfigError reports a misconfigured picker. Use errors.Is with the Err*
// sentinels to classify it.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("calendar config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config drives Build. Windows empty means date-only picking: days carry no
// slots and are only disabled by the past-day and weekend rules.
type Config struct {
	FromYear int
	ToYear   int

	Windows     []availability.Window
	StepMinutes int
	LeadMinutes int

	// WeekStart is the weekday shown in the first grid column (1 = Sunday).
	WeekStart           int
	DisablePreviousDays bool
	DisableWeekends     bool
	SelectingYearGap    int

	// Now is the reference instant; it is normalised onto the UTC calendar.
	Now time.Time

	// Opaque, already localised strings.
	MonthTitles [12]string
	TodayMarker string
}

// NewConfig returns a Config for [from, to] with the component defaults:
// Monday week start, the default selecting gap and English titles.
func NewConfig(from, to int) Config {
	cfg := Config{
		FromYear:         from,
		ToYear:           to,
		StepMinutes:      30,
		WeekStart:        calsys.Monday,
		SelectingYearGap: DefaultSelectingYearGap,
		TodayMarker:      "Today",
	}
	for i := range cfg.MonthTitles {
		cfg.MonthTitles[i] = time.Month(i + 1).String()
	}
	return cfg
}

// Timed reports whether days carry time slots.
func (c Config) Timed() bool { return len(c.Windows) > 0 }

func (c Config) Validate() error {
	if c.FromYear > c.ToYear {
		return &ConfigError{Field: "years", Err: fmt.Errorf("%w (from %d, to %d)", ErrInvalidYearRange, c.FromYear, c.ToYear)}
	}
	if c.WeekStart != 0 && !calsys.ValidWeekday(c.WeekStart) {
		return &ConfigError{Field: "week_start", Err: fmt.Errorf("%w (got %d)", ErrInvalidWeekday, c.WeekStart)}
	}
	if !c.Timed() {
		return nil
	}
	if c.StepMinutes < 1 {
		return &ConfigError{Field: "interval", Err: fmt.Errorf("%w (got %d)", ErrInvalidInterval, c.StepMinutes)}
	}
	for _, w := range c.Windows {
		if err := w.Validate(); err != nil {
			return &ConfigError{Field: "windows", Err: err}
		}
	}
	return nil
}

func (c Config) weekStart() int {
	if c.WeekStart == 0 {
		return calsys.Monday
	}
	return c.WeekStart
}

func (c Config) monthTitle(m time.Month) string {
	if t := c.MonthTitles[m-1]; t != "" {
		return t
	}
	return m.String()
}
