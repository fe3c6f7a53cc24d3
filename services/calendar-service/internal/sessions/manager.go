// Package sessions keeps the live picker of every client session and closes
// the ones that go idle.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/picker"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/model"
)

var (
	ErrNotFound = errors.New("picker session not found")
	ErrTooMany  = errors.New("too many open picker sessions")
)

// Recorder persists completed picks.
type Recorder interface {
	RecordPick(ctx context.Context, p model.Pick) (model.Pick, error)
}

type Session struct {
	ID        string
	Preset    string
	CreatedAt time.Time
	Picker    *picker.Picker

	events   *eventLog
	lastSeen atomic.Int64
}

// Events returns the buffered notifications after seq.
func (s *Session) Events(after int64) []Event {
	return s.events.since(after)
}

type Config struct {
	IdleTTL     time.Duration
	SweepEvery  time.Duration
	MaxSessions int
	MaxEvents   int
	// RecordTimeout bounds the write of one completed pick.
	RecordTimeout time.Duration
}

type Manager struct {
	logger   *slog.Logger
	recorder Recorder
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	// writes tracks pick records still being written.
	writes sync.WaitGroup
}

// NewManager creates a manager. recorder may be nil, in which case picks are
// only logged and kept in the session's event log.
func NewManager(logger *slog.Logger, recorder Recorder, cfg Config) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10000
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 256
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}
	return &Manager{
		logger:   logger,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// Create starts a picker for opts and registers it under a new id.
func (m *Manager) Create(ctx context.Context, preset string, opts picker.Options) (*Session, error) {
	m.mu.Lock()
	full := len(m.sessions) >= m.cfg.MaxSessions
	m.mu.Unlock()
	if full {
		return nil, ErrTooMany
	}

	s := &Session{
		ID:        uuid.NewString(),
		Preset:    preset,
		CreatedAt: m.now(),
		events:    newEventLog(m.cfg.MaxEvents),
	}
	s.lastSeen.Store(s.CreatedAt.UnixNano())

	logger := m.logger.With("picker_id", s.ID, "preset", preset)
	p, err := picker.New(ctx, opts,
		picker.WithLogger(logger),
		picker.WithListener(listener{log: s.events}),
		picker.WithPickHandler(func(at time.Time) { m.picked(ctx, s, at, !opts.ShowTime) }),
	)
	if err != nil {
		return nil, err
	}
	s.Picker = p

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.Info("picker session opened")
	return s, nil
}

// picked runs on the picker's listener goroutine. The record is written on
// its own goroutine.
func (m *Manager) picked(ctx context.Context, s *Session, at time.Time, dateOnly bool) {
	s.events.append(Event{Type: EventPicked, Date: &at, At: time.Now()})
	if m.recorder == nil {
		return
	}

	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		m.record(ctx, model.Pick{
			PickerID: s.ID,
			Preset:   s.Preset,
			PickedAt: at,
			DateOnly: dateOnly,
		})
	}()
}

func (m *Manager) record(ctx context.Context, p model.Pick) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RecordTimeout)
	defer cancel()
	pick, err := m.recorder.RecordPick(ctx, p)
	if err != nil {
		m.logger.Error("record pick failed", "err", err, "picker_id", p.PickerID)
		return
	}
	m.logger.Info("pick recorded", "pick_id", pick.ID, "picker_id", p.PickerID)
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.lastSeen.Store(m.now().UnixNano())
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Picker.Close()
	m.logger.Info("picker session closed", "picker_id", id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run evicts idle sessions until ctx is done, then closes the rest and waits
// for picks still being recorded.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("idle picker sessions evicted", "count", n)
			}
		}
	}
}

// Sweep closes sessions unused for longer than the idle TTL.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL).UnixNano()

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Load() < cutoff {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Picker.Close()
	}
	return len(idle)
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range all {
		s.Picker.Close()
	}
	for _, s := range all {
		<-s.Picker.Drained()
	}
	m.writes.Wait()
}
