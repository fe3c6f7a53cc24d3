// Package picker is the embeddable date/time picker component.
//
// A Picker owns one content tree and one selection machine and serialises
// every mutation through a single owner goroutine. The initial build and the
// lazy per-month slot fills run on background goroutines; their results are
// written back on the owner goroutine and announced through the Listener.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/calsys"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/selection"
)

const tracerName = "github.com/md-rashed-zaman/deltacal/libs/calendar/picker"

var (
	ErrNotConfigured = errors.New("picker: content is still being built")
	ErrClosed        = errors.New("picker: closed")
	ErrOutOfRange    = errors.New("picker: index out of range")

	// ErrMonthPending is returned when a day of a timed month is selected
	// before the month's slots are filled. A fill is scheduled; retry after
	// MonthFilled.
	ErrMonthPending = errors.New("picker: month slots are still being filled")
)

// Theme is passed through to the presentation layer untouched.
type Theme struct {
	Text          string `json:"text" yaml:"text"`
	Main          string `json:"main" yaml:"main"`
	SecondaryText string `json:"secondary_text" yaml:"secondary_text"`
	Background    string `json:"background" yaml:"background"`
}

type Options struct {
	Content content.Config
	// ShowTime enables slot picking. Without it Content.Windows is ignored and
	// a pick completes as soon as a day is selected.
	ShowTime bool
	Theme    Theme
}

// Listener receives presentation updates. Callbacks run in order on a
// dedicated goroutine and may call back into the Picker.
type Listener interface {
	Configured()
	MonthFilled(key content.MonthKey)
	MonthChanged(month int)
	SelectedDateChanged(date *time.Time)
}

// NopListener ignores every update. Embed it to implement part of Listener.
type NopListener struct{}

func (NopListener) Configured()                    {}
func (NopListener) MonthFilled(content.MonthKey)   {}
func (NopListener) MonthChanged(int)               {}
func (NopListener) SelectedDateChanged(*time.Time) {}

type Option func(*Picker)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Picker) { p.logger = logger }
}

func WithListener(l Listener) Option {
	return func(p *Picker) { p.listener = l }
}

// WithPickHandler sets the completion callback. It runs once per completed
// pick with the composed date (and time, for timed pickers), on the listener
// goroutine and in order with the listener updates.
func WithPickHandler(fn func(time.Time)) Option {
	return func(p *Picker) { p.onPicked = fn }
}

func WithCalendar(sys calsys.System) Option {
	return func(p *Picker) { p.sys = sys }
}

type Picker struct {
	opts     Options
	sys      calsys.System
	logger   *slog.Logger
	listener Listener
	onPicked func(time.Time)
	tracer   trace.Tracer
	ctx      context.Context

	ops       chan func()
	stop      chan struct{}
	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once
	events    *dispatcher

	// Owned by the loop goroutine.
	tree     *content.Tree
	machine  *selection.Machine
	inflight map[content.MonthKey]bool
}

// New validates opts and starts building the content tree in the background.
// Configuration errors are returned before any state exists.
func New(ctx context.Context, opts Options, options ...Option) (*Picker, error) {
	if !opts.ShowTime {
		opts.Content.Windows = nil
	}
	if err := opts.Content.Validate(); err != nil {
		return nil, err
	}

	p := &Picker{
		opts:     opts,
		sys:      calsys.Gregorian{},
		logger:   slog.New(slog.DiscardHandler),
		listener: NopListener{},
		tracer:   otel.Tracer(tracerName),
		ctx:      context.WithoutCancel(ctx),
		ops:      make(chan func()),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		drained:  make(chan struct{}),
		events:   newDispatcher(),
		inflight: make(map[content.MonthKey]bool),
	}
	for _, o := range options {
		o(p)
	}

	go p.loop()
	go func() {
		p.events.run(p.stop, p.done)
		close(p.drained)
	}()
	go p.build()
	return p, nil
}

// MustNew is New for hosts that treat misconfiguration as fatal.
func MustNew(ctx context.Context, opts Options, options ...Option) *Picker {
	p, err := New(ctx, opts, options...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Picker) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case fn := <-p.ops:
			fn()
		}
	}
}

// Close stops the owner loop. Background work still in flight completes and
// is discarded, as are queued listener updates. Picks completed before Close
// still reach the pick handler.
func (p *Picker) Close() {
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Drained is closed after Close once the pick handler has seen every pick
// completed before it.
func (p *Picker) Drained() <-chan struct{} { return p.drained }

func (p *Picker) build() {
	cfg := p.opts.Content
	_, span := p.tracer.Start(p.ctx, "calendar.build", trace.WithAttributes(
		attribute.Int("calendar.from_year", cfg.FromYear),
		attribute.Int("calendar.to_year", cfg.ToYear),
		attribute.Bool("calendar.timed", cfg.Timed()),
	))
	start := time.Now()
	tree, err := content.Build(cfg, p.sys)
	span.End()
	if err != nil {
		// Options were validated in New.
		p.logger.Error("calendar build failed", "err", err)
		return
	}

	p.post(func() {
		p.tree = tree
		p.machine = selection.New(tree, tree.InitialYear(), tree.InitialDay(), observer{p: p})
		p.logger.Info("calendar configured",
			"from_year", cfg.FromYear,
			"to_year", cfg.ToYear,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		p.emit(p.listener.Configured)
	})
}

func (p *Picker) post(fn func()) bool {
	select {
	case <-p.stop:
		return false
	default:
	}
	select {
	case p.ops <- fn:
		return true
	case <-p.stop:
		return false
	}
}

// do runs fn on the owner goroutine and waits for it.
func (p *Picker) do(fn func() error) error {
	errc := make(chan error, 1)
	if !p.post(func() { errc <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-p.done:
		// The loop may have run fn right before stopping.
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	}
}

// withMachine is do for operations that need the built tree.
func (p *Picker) withMachine(fn func() error) error {
	return p.do(func() error {
		if p.machine == nil {
			return ErrNotConfigured
		}
		return fn()
	})
}

func (p *Picker) emit(fn func()) {
	p.events.post(fn)
}

func (p *Picker) scheduleFill(key content.MonthKey) {
	if p.tree.Filled(key) || p.inflight[key] {
		return
	}
	p.inflight[key] = true
	tree := p.tree

	go func() {
		_, span := p.tracer.Start(p.ctx, "calendar.fill_month", trace.WithAttributes(
			attribute.String("calendar.month", key.String()),
		))
		days := tree.ComputeMonth(key)
		span.End()

		p.post(func() {
			delete(p.inflight, key)
			if !tree.StoreMonth(key, days) {
				return
			}
			p.logger.Debug("month filled", "month", key.String())
			p.emit(func() { p.listener.MonthFilled(key) })
		})
	}()
}

// observer forwards machine events to the listener and the pick handler.
type observer struct {
	p *Picker
}

func (o observer) MonthChanged(month int) {
	o.p.emit(func() { o.p.listener.MonthChanged(month) })
}

func (o observer) SelectedDateChanged(date *time.Time) {
	o.p.emit(func() { o.p.listener.SelectedDateChanged(date) })
}

func (o observer) Completed(at time.Time) {
	o.p.logger.Info("date picked", "at", at.Format(time.RFC3339))
	if o.p.onPicked == nil {
		return
	}
	o.p.events.postAlways(func() { o.p.onPicked(at) })
}

func (p *Picker) Theme() Theme { return p.opts.Theme }

func (p *Picker) ShowTime() bool { return p.opts.ShowTime }

func checkIndex(i, n int, what string) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %s %d (0..%d)", ErrOutOfRange, what, i, n-1)
	}
	return nil
}
