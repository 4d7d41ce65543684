package render

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RefreshTimer is a display refresh source. Start calls tick once per
// refresh interval on the timer's own goroutine until Stop returns.
type RefreshTimer interface {
	Start(tick func(now time.Time)) error
	Stop()
}

// TickerTimer is a RefreshTimer driven by a time.Ticker at the display's
// refresh rate.
type TickerTimer struct {
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewTickerTimer returns a timer ticking hz times per second. Rates that are
// not positive fall back to 60Hz.
func NewTickerTimer(hz float64) *TickerTimer {
	if hz <= 0 {
		hz = 60
	}
	return &TickerTimer{
		interval: time.Duration(float64(time.Second) / hz),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Interval returns the tick interval.
func (t *TickerTimer) Interval() time.Duration { return t.interval }

func (t *TickerTimer) Start(tick func(now time.Time)) error {
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				tick(now)
			case <-t.stop:
				return
			}
		}
	}()
	return nil
}

func (t *TickerTimer) Stop() {
	close(t.stop)
	<-t.done
}

// RefreshState is the lifecycle state of a RefreshDriver.
type RefreshState int32

const (
	RefreshUninitialized RefreshState = iota
	RefreshRunning
	RefreshStopped
)

func (s RefreshState) String() string {
	switch s {
	case RefreshUninitialized:
		return "uninitialized"
	case RefreshRunning:
		return "running"
	case RefreshStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RefreshDriver reports every display refresh to the engine so it can pace
// frames. It never draws. It goes uninitialized -> running -> stopped and
// never runs again once stopped.
type RefreshDriver struct {
	timer   RefreshTimer
	bridge  *Bridge
	binding func() *GraphicsBinding
	log     *zap.Logger

	state    atomic.Int32
	stopOnce sync.Once
	ticks    atomic.Uint64
	flips    atomic.Uint64
}

// NewRefreshDriver returns a driver that ticks with timer. binding looks up
// the current graphics binding on every tick; the driver does not own it.
func NewRefreshDriver(timer RefreshTimer, bridge *Bridge, binding func() *GraphicsBinding, log *zap.Logger) *RefreshDriver {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefreshDriver{
		timer:   timer,
		bridge:  bridge,
		binding: binding,
		log:     log.Named("refresh"),
	}
}

// Start starts the timer. Starting a running driver is a no-op; starting a
// stopped one fails with ErrRefreshStopped.
func (d *RefreshDriver) Start() error {
	if !d.state.CompareAndSwap(int32(RefreshUninitialized), int32(RefreshRunning)) {
		if d.State() == RefreshStopped {
			return ErrRefreshStopped
		}
		return nil
	}
	if err := d.timer.Start(d.tick); err != nil {
		d.state.Store(int32(RefreshStopped))
		return err
	}
	d.log.Debug("display refresh started")
	return nil
}

// tick runs on the timer goroutine and must stay O(1) and non-blocking.
func (d *RefreshDriver) tick(now time.Time) {
	d.ticks.Add(1)
	if d.State() != RefreshRunning {
		return
	}
	g := d.binding()
	if !g.Bound() {
		return
	}
	d.flips.Add(1)
	d.bridge.ReportFlip(g, now.UnixMicro())
}

// Stop stops the timer. Only the first call has any effect.
func (d *RefreshDriver) Stop() {
	d.stopOnce.Do(func() {
		prev := RefreshState(d.state.Swap(int32(RefreshStopped)))
		if prev == RefreshRunning {
			d.timer.Stop()
			d.log.Debug("display refresh stopped", zap.Uint64("ticks", d.ticks.Load()), zap.Uint64("flips", d.flips.Load()))
		}
	})
}

// State returns the current lifecycle state.
func (d *RefreshDriver) State() RefreshState {
	return RefreshState(d.state.Load())
}

// Flips returns how many ticks were reported to the engine.
func (d *RefreshDriver) Flips() uint64 { return d.flips.Load() }
