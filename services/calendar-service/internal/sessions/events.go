package sessions

import (
	"sync"
	"time"

	"github.com/md-rashed-zaman/deltacal/libs/calendar/content"
)

const (
	EventConfigured          = "configured"
	EventMonthFilled         = "month_filled"
	EventMonthChanged        = "month_changed"
	EventSelectedDateChanged = "selected_date_changed"
	EventPicked              = "picked"
)

// Event is a picker notification kept for clients that poll.
type Event struct {
	Seq   int64  `json:"seq"`
	Type  string `json:"type"`
	Month *int   `json:"month,omitempty"`
	// Key is the filled month as "year:month" tree indices.
	Key  string     `json:"key,omitempty"`
	Date *time.Time `json:"date,omitempty"`
	At   time.Time  `json:"at"`
}

// eventLog keeps the most recent events; older ones are dropped.
type eventLog struct {
	mu     sync.Mutex
	max    int
	next   int64
	events []Event
}

func newEventLog(max int) *eventLog {
	return &eventLog{max: max, next: 1}
}

func (l *eventLog) append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Seq = l.next
	l.next++
	l.events = append(l.events, e)
	if over := len(l.events) - l.max; over > 0 {
		l.events = append(l.events[:0], l.events[over:]...)
	}
}

// since returns the events with Seq > after, oldest first.
func (l *eventLog) since(after int64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Event{}
	for _, e := range l.events {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// listener feeds a session's event log from the picker.
type listener struct {
	log *eventLog
}

func (l listener) Configured() {
	l.log.append(Event{Type: EventConfigured, At: time.Now()})
}

func (l listener) MonthFilled(key content.MonthKey) {
	l.log.append(Event{Type: EventMonthFilled, Key: key.String(), At: time.Now()})
}

func (l listener) MonthChanged(month int) {
	l.log.append(Event{Type: EventMonthChanged, Month: &month, At: time.Now()})
}

func (l listener) SelectedDateChanged(date *time.Time) {
	l.log.append(Event{Type: EventSelectedDateChanged, Date: date, At: time.Now()})
}
