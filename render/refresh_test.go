package render

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefreshDriverLifecycle(t *testing.T) {
	timer := &fakeTimer{}
	d := NewRefreshDriver(timer, NewBridge(nil, nil), func() *GraphicsBinding { return nil }, nil)

	if d.State() != RefreshUninitialized {
		t.Fatalf("state = %v", d.State())
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if timer.started != 1 {
		t.Errorf("timer started %d times, want 1", timer.started)
	}
	if d.State() != RefreshRunning {
		t.Fatalf("state = %v", d.State())
	}

	d.Stop()
	d.Stop()
	if timer.stopped != 1 {
		t.Errorf("timer stopped %d times, want 1", timer.stopped)
	}
	if d.State() != RefreshStopped {
		t.Fatalf("state = %v", d.State())
	}
	if err := d.Start(); !errors.Is(err, ErrRefreshStopped) {
		t.Errorf("Start after Stop = %v, want ErrRefreshStopped", err)
	}
}

func TestRefreshDriverStopBeforeStart(t *testing.T) {
	timer := &fakeTimer{}
	d := NewRefreshDriver(timer, NewBridge(nil, nil), func() *GraphicsBinding { return nil }, nil)
	d.Stop()
	if timer.stopped != 0 {
		t.Error("stopped a timer that never started")
	}
	if err := d.Start(); !errors.Is(err, ErrRefreshStopped) {
		t.Errorf("Start = %v, want ErrRefreshStopped", err)
	}
}

func TestRefreshDriverTickWithoutBinding(t *testing.T) {
	timer := &fakeTimer{}
	d := NewRefreshDriver(timer, NewBridge(nil, nil), func() *GraphicsBinding { return nil }, nil)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	timer.fire(time.Now())
	if d.Flips() != 0 {
		t.Errorf("flips = %d with no binding", d.Flips())
	}
}

func TestRefreshDriverReportsFlips(t *testing.T) {
	e := newFakeEngine()
	b := NewBridge(e.factory(), nil)
	h, err := b.Initialize(nil, "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	g, err := b.BindGraphics(h, GraphicsAPI{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var binding atomic.Pointer[GraphicsBinding]
	timer := &fakeTimer{}
	d := NewRefreshDriver(timer, b, binding.Load, nil)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	// Binding appears after the driver is running.
	timer.fire(time.Now())
	binding.Store(g)
	now := time.Unix(1700000000, 123456000)
	timer.fire(now)
	timer.fire(now.Add(16 * time.Millisecond))

	if d.Flips() != 2 {
		t.Errorf("flips = %d, want 2", d.Flips())
	}
	if e.rc.flips[0] != now.UnixMicro() {
		t.Errorf("flip timestamp = %d, want %d", e.rc.flips[0], now.UnixMicro())
	}

	// Ticks after the binding is released reach nothing.
	b.UnbindGraphics(g)
	timer.fire(now.Add(32 * time.Millisecond))
	if e.rc.flipCount() != 2 {
		t.Errorf("engine saw %d flips, want 2", e.rc.flipCount())
	}
	if d.Flips() != 2 {
		t.Errorf("flips = %d after unbind, want 2", d.Flips())
	}

	// And ticks after Stop are ignored even if the timer fires late.
	d.Stop()
	binding.Store(g)
	timer.fire(now.Add(48 * time.Millisecond))
	if d.Flips() != 2 {
		t.Errorf("flips = %d after stop, want 2", d.Flips())
	}
}

func TestTickerTimer(t *testing.T) {
	if got, want := NewTickerTimer(0).Interval(), time.Second/60; got != want {
		t.Errorf("Interval() = %v, want %v", got, want)
	}
	if got, want := NewTickerTimer(120).Interval(), time.Second/120; got != want {
		t.Errorf("Interval() = %v, want %v", got, want)
	}

	timer := NewTickerTimer(1000)
	ticks := make(chan time.Time, 16)
	if err := timer.Start(func(now time.Time) {
		select {
		case ticks <- now:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ticks:
	case <-time.After(5 * time.Second):
		t.Fatal("no tick")
	}
	timer.Stop()
}
