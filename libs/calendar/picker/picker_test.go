package picker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/availability"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/calsys"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
)

const wait = 2 * time.Second

var june15 = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type chanListener struct {
	configured chan struct{}
	filled     chan content.MonthKey
	months     chan int
	dates      chan *time.Time
}

func newChanListener() *chanListener {
	return &chanListener{
		configured: make(chan struct{}, 4),
		filled:     make(chan content.MonthKey, 64),
		months:     make(chan int, 64),
		dates:      make(chan *time.Time, 64),
	}
}

func (l *chanListener) Configured()                      { l.configured <- struct{}{} }
func (l *chanListener) MonthFilled(key content.MonthKey) { l.filled <- key }
func (l *chanListener) MonthChanged(month int)           { l.months <- month }
func (l *chanListener) SelectedDateChanged(d *time.Time) { l.dates <- d }

func dayIndex(t *testing.T, m content.Month, n int) int {
	t.Helper()
	for i, d := range m.Days {
		if d.Date != nil && d.Date.Day() == n {
			return i
		}
	}
	t.Fatalf("day %d not found", n)
	return -1
}

func nextDate(t *testing.T, l *chanListener) *time.Time {
	t.Helper()
	select {
	case d := <-l.dates:
		require.NotNil(t, d)
		return d
	case <-time.After(wait):
		t.Fatal("SelectedDateChanged never fired")
		return nil
	}
}

func timedOptions(t *testing.T) Options {
	t.Helper()
	cfg := content.NewConfig(2024, 2025)
	cfg.Now = june15
	cfg.StepMinutes = 30
	for wd := calsys.Monday; wd <= calsys.Friday; wd++ {
		w, err := availability.NewWindow(wd, "09:00", "11:00")
		require.NoError(t, err)
		cfg.Windows = append(cfg.Windows, w)
	}
	return Options{Content: cfg, ShowTime: true}
}

func start(t *testing.T, opts Options, extra ...Option) (*Picker, *chanListener) {
	t.Helper()
	l := newChanListener()
	p, err := New(context.Background(), opts, append([]Option{WithListener(l)}, extra...)...)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	select {
	case <-l.configured:
	case <-time.After(wait):
		t.Fatal("picker was never configured")
	}
	return p, l
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	opts := timedOptions(t)
	opts.Content.FromYear = 2030
	_, err := New(context.Background(), opts)
	assert.ErrorIs(t, err, content.ErrInvalidYearRange)

	opts = timedOptions(t)
	opts.Content.StepMinutes = 0
	_, err = New(context.Background(), opts)
	assert.ErrorIs(t, err, content.ErrInvalidInterval)

	assert.Panics(t, func() { MustNew(context.Background(), opts) })

	// Without time picking the windows and interval are not consulted.
	opts.ShowTime = false
	p, err := New(context.Background(), opts)
	require.NoError(t, err)
	p.Close()
}

func TestPicker_ConfiguredOnce(t *testing.T) {
	p, l := start(t, timedOptions(t))

	st, err := p.State()
	require.NoError(t, err)
	assert.True(t, st.Ready)
	require.NotNil(t, st.TodayMonth)
	assert.Equal(t, content.MonthKey{Year: 1, Month: 5}, *st.TodayMonth)

	years, err := p.Years()
	require.NoError(t, err)
	require.Len(t, years, 4)
	assert.True(t, years[0].Placeholder)
	assert.True(t, years[3].Placeholder)

	select {
	case <-l.configured:
		t.Fatal("Configured fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPicker_LazyFillOncePerMonth(t *testing.T) {
	opts := timedOptions(t)
	opts.Content.FromYear, opts.Content.ToYear = 2024, 2024
	p, l := start(t, opts)

	require.NoError(t, p.ItemScrolled(8))
	m, err := p.Month(8)
	require.NoError(t, err)
	for _, d := range m.Days {
		assert.Empty(t, d.Slots, "September is not filled yet")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Month(8)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	select {
	case key := <-l.filled:
		assert.Equal(t, content.MonthKey{Year: 1, Month: 8}, key)
	case <-time.After(wait):
		t.Fatal("MonthFilled never fired")
	}
	select {
	case key := <-l.filled:
		t.Fatalf("month %s filled twice", key)
	case <-time.After(100 * time.Millisecond):
	}

	filled, err := p.MonthFilled(8)
	require.NoError(t, err)
	assert.True(t, filled)

	m, err = p.Month(8)
	require.NoError(t, err)
	withSlots := 0
	for _, d := range m.Days {
		if len(d.Slots) > 0 {
			assert.Len(t, d.Slots, 6)
			withSlots++
		}
	}
	assert.Equal(t, 21, withSlots, "weekdays of September 2024")
}

func TestPicker_TimedPickCompletesOnSlot(t *testing.T) {
	picked := make(chan time.Time, 4)
	p, l := start(t, timedOptions(t), WithPickHandler(func(at time.Time) { picked <- at }))

	st, err := p.State()
	require.NoError(t, err)
	assert.Nil(t, st.SelectedDay, "today is a Saturday without slots")

	// The initial year is 2024 (2025 - 18 is out of range).
	require.NoError(t, p.ItemScrolled(5))
	m, err := p.Month(5)
	require.NoError(t, err)

	ok, err := p.SelectDay(dayIndex(t, m, 19))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 19, 9, 0, 0, 0, time.UTC), *nextDate(t, l), "first slot is preselected")

	st, err = p.State()
	require.NoError(t, err)
	require.NotNil(t, st.SelectedAt)
	assert.Equal(t, time.Date(2024, 6, 19, 9, 0, 0, 0, time.UTC), *st.SelectedAt)

	slots, err := p.DaySlots()
	require.NoError(t, err)
	require.Len(t, slots, 6)

	ok, err = p.SelectSlot(2)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, time.Date(2024, 6, 19, 9, 30, 0, 0, time.UTC), *nextDate(t, l))
	select {
	case at := <-picked:
		assert.Equal(t, time.Date(2024, 6, 19, 9, 30, 0, 0, time.UTC), at)
	case <-time.After(wait):
		t.Fatal("pick handler never ran")
	}

	at, ok, err := p.Confirm()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 19, 9, 30, 0, 0, time.UTC), at)
	select {
	case at := <-picked:
		t.Fatalf("pick %s reported twice", at)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = p.SelectSlot(40)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestPicker_DateOnlyCompletesOnDay(t *testing.T) {
	picked := make(chan time.Time, 4)
	opts := timedOptions(t)
	opts.ShowTime = false
	opts.Content.FromYear, opts.Content.ToYear = 2024, 2024
	p, _ := start(t, opts, WithPickHandler(func(at time.Time) { picked <- at }))

	ok, err := p.NextMonth()
	require.NoError(t, err)
	require.True(t, ok)
	st, err := p.State()
	require.NoError(t, err)
	assert.Equal(t, 6, st.Cursor.Month)

	ok, err = p.SelectDay(10)
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case at := <-picked:
		// July 2024 starts on a Monday, so index 10 is the 11th.
		assert.Equal(t, time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC), at)
	case <-time.After(wait):
		t.Fatal("pick handler never ran")
	}
}

func TestPicker_SelectDayWaitsForFill(t *testing.T) {
	opts := timedOptions(t)
	opts.Content.FromYear, opts.Content.ToYear = 2024, 2024
	p, l := start(t, opts)

	require.NoError(t, p.ItemScrolled(8))
	// September 2024 starts on a Sunday: six padding days with a Monday start.
	const sunday, thursday = 6, 10

	ok, err := p.SelectDay(sunday)
	assert.ErrorIs(t, err, ErrMonthPending)
	assert.False(t, ok)

	select {
	case key := <-l.filled:
		assert.Equal(t, content.MonthKey{Year: 1, Month: 8}, key)
	case <-time.After(wait):
		t.Fatal("MonthFilled never fired")
	}

	ok, err = p.SelectDay(sunday)
	require.NoError(t, err)
	assert.False(t, ok, "Sundays have no slots")
	st, err := p.State()
	require.NoError(t, err)
	assert.Nil(t, st.SelectedDay)

	m, err := p.Month(8)
	require.NoError(t, err)
	require.Equal(t, sunday, dayIndex(t, m, 1))
	require.Equal(t, thursday, dayIndex(t, m, 5))
	assert.True(t, m.Days[sunday].Disabled)
	assert.False(t, m.Days[sunday].Selected)

	ok, err = p.SelectDay(thursday)
	require.NoError(t, err)
	require.True(t, ok)
	at, ok, err := p.Confirm()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 9, 5, 9, 0, 0, 0, time.UTC), at)
}

type blockingListener struct {
	NopListener
	configured chan struct{}
	entered    chan struct{}
	release    chan struct{}
}

func (l *blockingListener) Configured() { close(l.configured) }

func (l *blockingListener) SelectedDateChanged(*time.Time) {
	l.entered <- struct{}{}
	<-l.release
}

func TestPicker_CloseDeliversCompletedPick(t *testing.T) {
	opts := timedOptions(t)
	opts.ShowTime = false
	l := &blockingListener{
		configured: make(chan struct{}),
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	picked := make(chan time.Time, 1)
	p, err := New(context.Background(), opts,
		WithListener(l),
		WithPickHandler(func(at time.Time) { picked <- at }),
	)
	require.NoError(t, err)

	select {
	case <-l.configured:
	case <-time.After(wait):
		t.Fatal("picker was never configured")
	}

	// June 2024 starts on a Saturday: five padding days with a Monday start.
	ok, err := p.SelectDay(5 + 19)
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-l.entered:
	case <-time.After(wait):
		t.Fatal("SelectedDateChanged never fired")
	}
	p.Close()
	select {
	case <-picked:
		t.Fatal("pick delivered ahead of the pending update")
	default:
	}
	close(l.release)

	select {
	case at := <-picked:
		assert.Equal(t, time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), at)
	case <-time.After(wait):
		t.Fatal("completed pick was lost on Close")
	}
	select {
	case <-p.Drained():
	case <-time.After(wait):
		t.Fatal("picker never drained")
	}
}

func TestPicker_IndexValidation(t *testing.T) {
	p, _ := start(t, timedOptions(t))

	_, err := p.Month(12)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, p.ItemScrolled(-1), ErrOutOfRange)
	_, err = p.SelectYear(99)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = p.SelectDay(60)
	assert.ErrorIs(t, err, ErrOutOfRange)

	ok, err := p.SelectYear(0)
	require.NoError(t, err)
	assert.False(t, ok, "placeholder year")
}

func TestPicker_ClosedIgnoresLateWork(t *testing.T) {
	opts := timedOptions(t)
	p, err := New(context.Background(), opts)
	require.NoError(t, err)
	p.Close()
	p.Close()

	_, err = p.State()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.Month(3)
	assert.ErrorIs(t, err, ErrClosed)
}
