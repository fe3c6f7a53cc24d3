// Package presets holds the named picker configurations the service offers.
// Presets come from a YAML file; the time windows of a preset can be replaced
// at runtime when business hours change.
package presets

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/picker"
)

const DefaultName = "default"

var ErrNotFound = errors.New("preset not found")

// WindowSpec is a weekly window as written in the presets file and in
// business-hours events.
type WindowSpec struct {
	Weekday int    `yaml:"weekday" json:"weekday"`
	Start   string `yaml:"start" json:"start"`
	End     string `yaml:"end" json:"end"`
}

type Preset struct {
	FromYear            int          `yaml:"from_year"`
	ToYear              int          `yaml:"to_year"`
	ShowTime            bool         `yaml:"show_time"`
	IntervalMinutes     int          `yaml:"interval_minutes"`
	LeadMinutes         int          `yaml:"lead_minutes"`
	WeekStart           int          `yaml:"week_start"`
	DisablePreviousDays bool         `yaml:"disable_previous_days"`
	DisableWeekends     bool         `yaml:"disable_weekends"`
	SelectingYearGap    *int         `yaml:"selecting_year_gap"`
	TodayMarker         string       `yaml:"today_marker"`
	MonthTitles         []string     `yaml:"month_titles"`
	Windows             []WindowSpec `yaml:"windows"`
	Theme               picker.Theme `yaml:"theme"`
}

type file struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Options turns p into picker options anchored at now.
func (p Preset) Options(now time.Time) (picker.Options, error) {
	cfg := content.NewConfig(p.FromYear, p.ToYear)
	cfg.Now = now
	cfg.LeadMinutes = p.LeadMinutes
	cfg.DisablePreviousDays = p.DisablePreviousDays
	cfg.DisableWeekends = p.DisableWeekends
	if p.IntervalMinutes != 0 {
		cfg.StepMinutes = p.IntervalMinutes
	}
	if p.WeekStart != 0 {
		cfg.WeekStart = p.WeekStart
	}
	if p.SelectingYearGap != nil {
		cfg.SelectingYearGap = *p.SelectingYearGap
	}
	if p.TodayMarker != "" {
		cfg.TodayMarker = p.TodayMarker
	}
	if len(p.MonthTitles) > 0 {
		if len(p.MonthTitles) != content.MonthsPerYear {
			return picker.Options{}, fmt.Errorf("month_titles: want %d entries, got %d", content.MonthsPerYear, len(p.MonthTitles))
		}
		copy(cfg.MonthTitles[:], p.MonthTitles)
	}

	windows, err := parseWindows(p.Windows)
	if err != nil {
		return picker.Options{}, err
	}
	cfg.Windows = windows

	opts := picker.Options{Content: cfg, ShowTime: p.ShowTime, Theme: p.Theme}
	if !opts.ShowTime {
		opts.Content.Windows = nil
	}
	if err := opts.Content.Validate(); err != nil {
		return picker.Options{}, err
	}
	return opts, nil
}

func parseWindows(specs []WindowSpec) ([]availability.Window, error) {
	out := make([]availability.Window, 0, len(specs))
	for i, s := range specs {
		w, err := availability.NewWindow(s.Weekday, s.Start, s.End)
		if err != nil {
			return nil, fmt.Errorf("windows[%d]: %w", i, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// Default is the preset served when no presets file is configured: this year
// and next, weekday office hours in half-hour slots.
func Default(now time.Time) Preset {
	year := now.UTC().Year()
	var windows []WindowSpec
	for wd := 2; wd <= 6; wd++ {
		windows = append(windows, WindowSpec{Weekday: wd, Start: "09:00", End: "17:00"})
	}
	gap := 1
	return Preset{
		FromYear:            year,
		ToYear:              year + 1,
		ShowTime:            true,
		IntervalMinutes:     30,
		LeadMinutes:         60,
		DisablePreviousDays: true,
		SelectingYearGap:    &gap,
		Windows:             windows,
	}
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

func NewRegistry(presets map[string]Preset) *Registry {
	r := &Registry{presets: make(map[string]Preset, len(presets))}
	for name, p := range presets {
		r.presets[name] = p
	}
	return r
}

// Parse reads a presets document and checks that every preset builds.
func Parse(data []byte, now time.Time) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, errors.New("parse presets: no presets defined")
	}
	for name, p := range f.Presets {
		if _, err := p.Options(now); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return NewRegistry(f.Presets), nil
}

// Load reads path, or serves the built-in default preset when path is empty.
func Load(path string, now time.Time) (*Registry, error) {
	if path == "" {
		return NewRegistry(map[string]Preset{DefaultName: Default(now)}), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return Parse(data, now)
}

func (r *Registry) Get(name string) (Preset, error) {
	if name == "" {
		name = DefaultName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	p.Windows = slices.Clone(p.Windows)
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ReplaceWindows swaps the weekly windows and, when interval > 0, the slot
// interval of a preset. Pickers already open keep the content they were
// built with.
func (r *Registry) ReplaceWindows(name string, windows []WindowSpec, interval int) error {
	if _, err := parseWindows(windows); err != nil {
		return err
	}
	if interval < 0 {
		return content.ErrInvalidInterval
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	p.Windows = slices.Clone(windows)
	if interval > 0 {
		p.IntervalMinutes = interval
	}
	r.presets[name] = p
	return nil
}
