package player

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/njyeung/vlayer/render"
)

// eventQueue buffers engine events until the client drains them. Every push
// fires the wakeup callback outside the lock.
type eventQueue struct {
	mu     sync.Mutex
	events []render.Event
	ready  chan struct{}

	wakeup  atomic.Pointer[func()]
	observe atomic.Pointer[func(render.Event)]
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev render.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	if fn := q.observe.Load(); fn != nil {
		(*fn)(ev)
	}
	if fn := q.wakeup.Load(); fn != nil {
		(*fn)()
	}
}

func (q *eventQueue) pop() (render.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return render.Event{}, false
	}
	ev := q.events[0]
	q.events[0] = render.Event{}
	q.events = q.events[1:]
	return ev, true
}

// wait returns the next event, waiting up to timeout for one to arrive. A
// zero timeout never waits; the empty result has kind EventNone.
func (q *eventQueue) wait(timeout time.Duration) render.Event {
	if ev, ok := q.pop(); ok || timeout <= 0 {
		return ev
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case <-q.ready:
			if ev, ok := q.pop(); ok {
				return ev
			}
		case <-t.C:
			ev, _ := q.pop()
			return ev
		}
	}
}

func (q *eventQueue) setWakeup(fn func()) {
	if fn == nil {
		q.wakeup.Store(nil)
		return
	}
	q.wakeup.Store(&fn)
}

func (q *eventQueue) setObserver(fn func(render.Event)) {
	if fn == nil {
		q.observe.Store(nil)
		return
	}
	q.observe.Store(&fn)
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
