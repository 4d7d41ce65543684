package player

import (
	"sync"
	"sync/atomic"
	"time"
)

// pacer decides which decoded frame is on screen. Decoders push frames
// into a queue of at most MaxQueuedFrames; on every display refresh the
// newest frame that is due against the master clock becomes current and
// the frames it overtook are counted as drops.
type pacer struct {
	mu    sync.Mutex
	queue []*Frame
	clock Clock
	slots chan struct{}

	current  atomic.Pointer[Frame]
	drops    atomic.Uint64
	lastFlip atomic.Int64

	flip     chan struct{}
	update   atomic.Pointer[func()]
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newPacer(displayFPS float64) *pacer {
	if displayFPS <= 0 {
		displayFPS = 60
	}
	return &pacer{
		slots:    make(chan struct{}, MaxQueuedFrames),
		flip:     make(chan struct{}, 1),
		interval: time.Duration(float64(time.Second) / displayFPS),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// start runs the pacing loop. Without refresh reports the pacer falls back
// to its own display-fps timer.
func (p *pacer) start() {
	go func() {
		defer close(p.done)
		fallback := time.NewTicker(p.interval)
		defer fallback.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-p.flip:
			case now := <-fallback.C:
				if now.UnixMicro()-p.lastFlip.Load() < 2*p.interval.Microseconds() {
					continue
				}
			}
			p.tick()
		}
	}()
}

func (p *pacer) close() {
	p.stopOnce.Do(func() {
		close(p.stop)
		<-p.done
	})
}

// reportFlip wakes the pacer. It never blocks.
func (p *pacer) reportFlip(ts int64) {
	if ts == 0 {
		ts = time.Now().UnixMicro()
	}
	p.lastFlip.Store(ts)
	select {
	case p.flip <- struct{}{}:
	default:
	}
}

func (p *pacer) setUpdateCallback(fn func()) {
	if fn == nil {
		p.update.Store(nil)
		return
	}
	p.update.Store(&fn)
}

// tick presents the next due frame and fires the update callback when the
// current frame changed.
func (p *pacer) tick() {
	if !p.present() {
		return
	}
	if fn := p.update.Load(); fn != nil {
		(*fn)()
	}
}

func (p *pacer) present() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clock == nil || len(p.queue) == 0 {
		return false
	}
	i := dueFrame(p.queue, p.clock.Time())
	if i < 0 {
		return false
	}
	p.current.Store(p.queue[i])
	p.drops.Add(uint64(i))
	clear(p.queue[:i+1])
	p.queue = p.queue[i+1:]
	for range i + 1 {
		<-p.slots
	}
	return true
}

// dueFrame returns the index of the newest frame whose timestamp has been
// reached at clock time t, or -1 if none is due yet.
func dueFrame(queue []*Frame, t float64) int {
	due := -1
	for i, f := range queue {
		if f.PTS > t+SyncThreshold {
			break
		}
		due = i
	}
	return due
}

// push queues f for presentation, waiting for room. It returns false if
// stop closed first.
func (p *pacer) push(f *Frame, stop <-chan struct{}) bool {
	select {
	case p.slots <- struct{}{}:
	case <-stop:
		return false
	case <-p.stop:
		return false
	}
	p.mu.Lock()
	p.queue = append(p.queue, f)
	p.mu.Unlock()
	return true
}

// reset drops queued frames and switches to clock. The current frame stays
// on screen until a new one is due.
func (p *pacer) reset(clock Clock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for range p.queue {
		<-p.slots
	}
	p.queue = nil
	p.clock = clock
}

// clearCurrent removes the frame on screen.
func (p *pacer) clearCurrent() {
	p.current.Store(nil)
	if fn := p.update.Load(); fn != nil {
		(*fn)()
	}
}

// pending returns how many frames wait for presentation.
func (p *pacer) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
