package sessions

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
	"github.com/md-rashed-zaman/deltacal/libs/calendar/picker"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/model"
)

var june15 = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type memRecorder struct {
	mu    sync.Mutex
	picks []model.Pick
}

func (r *memRecorder) RecordPick(_ context.Context, p model.Pick) (model.Pick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = "pick-1"
	r.picks = append(r.picks, p)
	return p, nil
}

func (r *memRecorder) recorded() []model.Pick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Pick(nil), r.picks...)
}

type slowRecorder struct {
	memRecorder
	release chan struct{}
}

func (r *slowRecorder) RecordPick(ctx context.Context, p model.Pick) (model.Pick, error) {
	<-r.release
	return r.memRecorder.RecordPick(ctx, p)
}

func dateOnlyOptions() picker.Options {
	cfg := content.NewConfig(2024, 2024)
	cfg.Now = june15
	return picker.Options{Content: cfg}
}

func newManager(rec Recorder, cfg Config) *Manager {
	return NewManager(slog.New(slog.DiscardHandler), rec, cfg)
}

func hasEvent(events []Event, typ string) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestManager_CreatePickRecords(t *testing.T) {
	rec := &memRecorder{}
	m := newManager(rec, Config{})
	s, err := m.Create(context.Background(), "birthday", dateOnlyOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Delete(s.ID) })

	require.Eventually(t, func() bool { return hasEvent(s.Events(0), EventConfigured) },
		2*time.Second, 10*time.Millisecond)

	// June 2024 starts on a Saturday: five padding days with a Monday start.
	ok, err := s.Picker.SelectDay(5 + 19)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool { return len(rec.recorded()) == 1 }, 2*time.Second, 10*time.Millisecond)
	pick := rec.recorded()[0]
	assert.Equal(t, s.ID, pick.PickerID)
	assert.Equal(t, "birthday", pick.Preset)
	assert.True(t, pick.DateOnly)
	assert.Equal(t, time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), pick.PickedAt)

	events := s.Events(0)
	assert.True(t, hasEvent(events, EventSelectedDateChanged))
	assert.True(t, hasEvent(events, EventPicked))
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
	last := events[len(events)-1].Seq
	assert.Empty(t, s.Events(last))
}

func TestManager_RejectsInvalidOptions(t *testing.T) {
	m := newManager(nil, Config{})
	opts := dateOnlyOptions()
	opts.Content.ToYear = 2000
	_, err := m.Create(context.Background(), "x", opts)
	assert.ErrorIs(t, err, content.ErrInvalidYearRange)
	assert.Zero(t, m.Len())
}

func TestManager_MaxSessions(t *testing.T) {
	m := newManager(nil, Config{MaxSessions: 1})
	s, err := m.Create(context.Background(), "a", dateOnlyOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Delete(s.ID) })

	_, err = m.Create(context.Background(), "b", dateOnlyOptions())
	assert.ErrorIs(t, err, ErrTooMany)
}

func TestManager_SweepEvictsIdle(t *testing.T) {
	now := june15
	m := newManager(nil, Config{IdleTTL: time.Minute})
	m.now = func() time.Time { return now }

	idle, err := m.Create(context.Background(), "a", dateOnlyOptions())
	require.NoError(t, err)
	busy, err := m.Create(context.Background(), "b", dateOnlyOptions())
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	_, err = m.Get(busy.ID)
	require.NoError(t, err)

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(idle.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = idle.Picker.State()
	assert.ErrorIs(t, err, picker.ErrClosed)

	require.NoError(t, m.Delete(busy.ID))
	assert.ErrorIs(t, m.Delete(busy.ID), ErrNotFound)
}

func TestManager_RunClosesOnShutdown(t *testing.T) {
	m := newManager(nil, Config{SweepEvery: time.Hour})
	s, err := m.Create(context.Background(), "a", dateOnlyOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.Zero(t, m.Len())
	_, err = s.Picker.State()
	assert.ErrorIs(t, err, picker.ErrClosed)
}

func TestManager_SlowRecordDoesNotStallEvents(t *testing.T) {
	rec := &slowRecorder{release: make(chan struct{})}
	m := newManager(rec, Config{SweepEvery: time.Hour})
	s, err := m.Create(context.Background(), "a", dateOnlyOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return hasEvent(s.Events(0), EventConfigured) },
		2*time.Second, 10*time.Millisecond)

	ok, err := s.Picker.SelectDay(5 + 19)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Picker.NextMonth()
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool { return hasEvent(s.Events(0), EventMonthChanged) },
		2*time.Second, 10*time.Millisecond)
	assert.True(t, hasEvent(s.Events(0), EventPicked))
	assert.Empty(t, rec.recorded(), "the write is still blocked")

	cancel()
	select {
	case <-done:
		t.Fatal("shutdown did not wait for the pending write")
	case <-time.After(50 * time.Millisecond):
	}
	close(rec.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manager never stopped")
	}
	assert.Len(t, rec.recorded(), 1)
}

func TestEventLog_DropsOldest(t *testing.T) {
	l := newEventLog(3)
	for i := 0; i < 5; i++ {
		l.append(Event{Type: EventMonthChanged})
	}
	events := l.since(0)
	require.Len(t, events, 3)
	assert.Equal(t, int64(3), events[0].Seq)
	assert.Equal(t, int64(5), events[2].Seq)
	assert.Len(t, l.since(4), 1)
}
