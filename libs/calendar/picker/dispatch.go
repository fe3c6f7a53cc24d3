package picker

import "sync"

type event struct {
	fn func()

	// always marks callbacks that still run after the picker is closed.
	always bool
}

// dispatcher runs listener callbacks in order on its own goroutine so that a
// listener may call back into the picker without deadlocking the owner loop.
type dispatcher struct {
	mu    sync.Mutex
	queue []event
	wake  chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{wake: make(chan struct{}, 1)}
}

func (d *dispatcher) post(fn func()) { d.enqueue(event{fn: fn}) }

// postAlways queues fn so that it runs even if the picker closes first.
func (d *dispatcher) postAlways(fn func()) { d.enqueue(event{fn: fn, always: true}) }

func (d *dispatcher) enqueue(ev event) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) next() (event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return event{}, false
	}
	ev := d.queue[0]
	d.queue[0] = event{}
	d.queue = d.queue[1:]
	return ev, true
}

// run delivers callbacks until stop closes. It then waits for the owner loop
// to exit (done), so nothing is queued any more, and runs the remaining
// always callbacks.
func (d *dispatcher) run(stop, done <-chan struct{}) {
	for {
		select {
		case <-stop:
			d.drain(done)
			return
		case <-d.wake:
		}
		for {
			select {
			case <-stop:
				d.drain(done)
				return
			default:
			}
			ev, ok := d.next()
			if !ok {
				break
			}
			ev.fn()
		}
	}
}

func (d *dispatcher) drain(done <-chan struct{}) {
	<-done
	for {
		ev, ok := d.next()
		if !ok {
			return
		}
		if ev.always {
			ev.fn()
		}
	}
}
