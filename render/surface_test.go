package render

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type surfaceFixture struct {
	engine *fakeEngine
	host   *fakeHost
	timer  *fakeTimer
	queue  *Queue
	bridge *Bridge
	s      *Surface
	ctx    Context
}

func newSurfaceFixture(t *testing.T, log *zap.Logger) *surfaceFixture {
	t.Helper()
	f := &surfaceFixture{
		engine: newFakeEngine(),
		host:   newFakeHost(800, 600),
		timer:  &fakeTimer{},
		queue:  NewQueue(),
	}
	t.Cleanup(f.queue.Close)
	f.bridge = NewBridge(f.engine.factory(), log)
	f.s = NewSurface(f.host, f.bridge, f.queue, SurfaceConfig{
		Options:  Options{}.Set(OptVideoOutput, VideoOutputCallback).Set(OptDisplayFPS, "60"),
		Target:   "movie.mkv",
		NewTimer: func() RefreshTimer { return f.timer },
		Logger:   log,
	})
	return f
}

func (f *surfaceFixture) bringUp(t *testing.T) {
	t.Helper()
	cfg := f.s.NegotiatePixelConfiguration(1)
	ctx, err := f.s.CreateContext(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f.ctx = ctx
}

func TestNegotiatePixelConfigurationDeterministic(t *testing.T) {
	a := NegotiatePixelConfiguration(3)
	for range 10 {
		if diff := cmp.Diff(a, NegotiatePixelConfiguration(3)); diff != "" {
			t.Fatalf("configuration changed (-first, +again):\n%s", diff)
		}
	}
	if a.Profile != ProfileCore32 || !a.DoubleBuffer || !a.Accelerated {
		t.Errorf("configuration = %+v", a)
	}
	if !a.AllowOfflineRenderers || !a.AutomaticGraphicsSwitching {
		t.Errorf("configuration = %+v", a)
	}

	want := []AttributeValue{
		{AttrProfile, int(ProfileCore32)},
		{AttrDoubleBuffer, 1},
		{AttrAllowOfflineRenderers, 1},
		{AttrBackingStore, 1},
		{AttrAccelerated, 1},
		{AttrAutomaticGraphicsSwitching, 1},
		{AttrColorSize, 8},
		{AttrAlphaSize, 8},
		{AttrDepthSize, 0},
	}
	if diff := cmp.Diff(want, a.Attributes()); diff != "" {
		t.Errorf("attributes mismatch (-want, +got):\n%s", diff)
	}
}

func TestSurfaceCreateContextBringsEngineUpOnce(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	f.bringUp(t)

	fc := f.host.ctx
	if fc.swapInterval != 1 || !fc.multiEngine || !fc.current {
		t.Errorf("context setup: interval=%d multiEngine=%v current=%v", fc.swapInterval, fc.multiEngine, fc.current)
	}
	if !f.s.Handle().Alive() || !f.s.Binding().Bound() {
		t.Fatal("engine not bound after CreateContext")
	}
	if f.s.RefreshDriver().State() != RefreshRunning {
		t.Errorf("refresh driver %v", f.s.RefreshDriver().State())
	}

	// A second context (e.g. after a display change) does not re-init.
	if _, err := f.s.CreateContext(f.s.NegotiatePixelConfiguration(1)); err != nil {
		t.Fatal(err)
	}
	if f.host.created != 2 {
		t.Errorf("host created %d contexts, want 2", f.host.created)
	}
	if got := f.engine.commandCount("loadfile"); got != 1 {
		t.Errorf("loadfile sent %d times, want 1", got)
	}
	if f.timer.started != 1 {
		t.Errorf("timer started %d times, want 1", f.timer.started)
	}
}

func TestSurfaceLoadfileAfterInitializeBeforeDraw(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	f.bringUp(t)
	f.s.RenderFrame(f.ctx, PixelConfiguration{})

	if diff := cmp.Diff([]string{"initialize", "loadfile"}, f.engine.calls()); diff != "" {
		t.Errorf("engine calls (-want, +got):\n%s", diff)
	}
	if len(f.engine.rc.drawCalls()) != 1 {
		t.Fatal("no draw after loadfile")
	}
	if diff := cmp.Diff([]string{"loadfile", "movie.mkv"}, f.engine.commands[0]); diff != "" {
		t.Errorf("loadfile args (-want, +got):\n%s", diff)
	}
}

func TestSurfaceCreateContextFailures(t *testing.T) {
	t.Run("host", func(t *testing.T) {
		f := newSurfaceFixture(t, nil)
		f.host.createErr = errors.New("no pixel format")
		_, err := f.s.CreateContext(PixelConfiguration{})
		var fe *FatalError
		if !errors.As(err, &fe) || fe.Stage != StageContext {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("make current", func(t *testing.T) {
		f := newSurfaceFixture(t, nil)
		f.host.ctx.currentErr = errors.New("lost")
		_, err := f.s.CreateContext(PixelConfiguration{})
		var fe *FatalError
		if !errors.As(err, &fe) || fe.Stage != StageContext {
			t.Errorf("err = %v", err)
		}
		if f.engine.calls() != nil {
			t.Error("engine brought up without a current context")
		}
	})
	t.Run("initialize", func(t *testing.T) {
		f := newSurfaceFixture(t, nil)
		f.engine.initErr = errors.New("bad vo")
		_, err := f.s.CreateContext(PixelConfiguration{})
		var fe *FatalError
		if !errors.As(err, &fe) || fe.Stage != StageInitialize {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("bind", func(t *testing.T) {
		f := newSurfaceFixture(t, nil)
		f.engine.rcErr = errors.New("no opengl-cb")
		_, err := f.s.CreateContext(PixelConfiguration{})
		var fe *FatalError
		if !errors.As(err, &fe) || fe.Stage != StageSubAPI {
			t.Errorf("err = %v", err)
		}
		if f.s.Handle() != nil {
			t.Error("handle kept after failed bind")
		}
		if f.engine.destroyCount() != 1 {
			t.Error("engine not destroyed after failed bind")
		}
	})
	t.Run("loadfile", func(t *testing.T) {
		f := newSurfaceFixture(t, nil)
		f.engine.cmdErr = errors.New("boom")
		_, err := f.s.CreateContext(PixelConfiguration{})
		var fe *FatalError
		if !errors.As(err, &fe) || fe.Stage != StageInitialize {
			t.Errorf("err = %v", err)
		}
		if f.s.Handle() != nil || f.s.Binding() != nil || f.s.RefreshDriver() != nil {
			t.Error("engine state kept after failed loadfile")
		}
		if got := f.engine.destroyCount(); got != 1 {
			t.Errorf("destroyed %d times, want 1", got)
		}
		if f.engine.rc.uninit != 1 {
			t.Errorf("renderer released %d times, want 1", f.engine.rc.uninit)
		}
		if f.timer.stopped != 1 {
			t.Errorf("timer stopped %d times, want 1", f.timer.stopped)
		}

		f.timer.fire(time.Unix(1, 0))
		if n := f.engine.rc.flipCount(); n != 0 {
			t.Errorf("flips after failed loadfile = %d", n)
		}
	})
}

func TestSurfaceRenderFrameWithoutBindingClears(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	ctx := f.host.ctx

	f.s.RenderFrame(ctx, PixelConfiguration{})
	f.s.RenderFrame(ctx, PixelConfiguration{})

	want := [][4]float32{{0, 0, 0, 1}, {0, 0, 0, 1}}
	if diff := cmp.Diff(want, ctx.clears); diff != "" {
		t.Errorf("clears (-want, +got):\n%s", diff)
	}
	if ctx.flushes != 2 {
		t.Errorf("flushes = %d, want 2", ctx.flushes)
	}
	if len(f.engine.rc.drawCalls()) != 0 {
		t.Error("engine draw path used without a binding")
	}
}

func TestSurfaceRenderFrameDrawsFlipped(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	f.bringUp(t)

	f.s.RenderFrame(f.ctx, PixelConfiguration{})
	f.host.resize(1024, 768)
	f.s.RenderFrame(f.ctx, PixelConfiguration{})

	want := []drawCall{{7, 800, -600}, {7, 1024, -768}}
	if diff := cmp.Diff(want, f.engine.rc.drawCalls()); diff != "" {
		t.Errorf("draws (-want, +got):\n%s", diff)
	}
	if len(f.host.ctx.clears) != 0 {
		t.Error("cleared while bound")
	}
	if f.s.Frames() != 2 {
		t.Errorf("Frames() = %d", f.s.Frames())
	}
}

func TestSurfaceUpdateCallbackRequestsRedraw(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	f.bringUp(t)

	f.engine.rc.frameReady()
	f.engine.rc.frameReady()
	f.queue.Sync()
	if got := f.host.displayCount(); got != 2 {
		t.Errorf("displays = %d, want 2", got)
	}
}

func TestSurfaceForwardsEngineLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newSurfaceFixture(t, zap.New(core))
	f.bringUp(t)

	f.engine.emit(LogEvent("demux", "warn", "stream 2 ignored"), NamedEvent("file-loaded"))
	f.engine.wake()
	f.queue.Sync()

	warn := logs.FilterMessage("stream 2 ignored").All()
	if len(warn) != 1 || warn[0].Level != zapcore.WarnLevel {
		t.Errorf("forwarded log = %+v", warn)
	}
	ev := logs.FilterMessage("event").FilterField(zap.String("name", "file-loaded"))
	if ev.Len() != 1 {
		t.Error("generic event not logged")
	}
	if f.host.terminateCount() != 0 {
		t.Error("non-shutdown event terminated the host")
	}
}

// Three redraws are queued before the shutdown event is drained: all three
// reach the host, then teardown runs.
func TestSurfaceShutdownAfterQueuedRedraws(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	f.bringUp(t)

	gate := make(chan struct{})
	f.queue.Post(func() { <-gate })
	for range 3 {
		f.engine.rc.frameReady()
	}
	f.s.Quit()
	close(gate)
	f.queue.Sync()
	f.queue.Sync()

	if got := f.host.displayCount(); got != 3 {
		t.Errorf("displays = %d, want 3", got)
	}
	if got := f.host.terminateCount(); got != 1 {
		t.Errorf("terminated %d times, want 1", got)
	}
	if f.s.Handle() != nil || f.s.Binding() != nil {
		t.Error("capabilities survived shutdown")
	}
	if !f.s.Closed() {
		t.Error("Closed() = false after shutdown")
	}
	assertPostShutdownNoOps(t, f)
}

// Shutdown drained first: the redraws behind it do nothing.
func TestSurfaceShutdownBeforeQueuedRedraws(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	f.bringUp(t)

	gate := make(chan struct{})
	f.queue.Post(func() { <-gate })
	f.engine.emit(ShutdownEvent())
	f.engine.wake()
	f.engine.rc.frameReady()
	f.engine.rc.frameReady()
	close(gate)
	f.queue.Sync()

	if got := f.host.displayCount(); got != 0 {
		t.Errorf("displays = %d, want 0", got)
	}
	if got := f.host.terminateCount(); got != 1 {
		t.Errorf("terminated %d times, want 1", got)
	}
	assertPostShutdownNoOps(t, f)
}

func assertPostShutdownNoOps(t *testing.T, f *surfaceFixture) {
	t.Helper()
	draws := len(f.engine.rc.drawCalls())
	flips := f.engine.rc.flipCount()

	f.timer.fire(time.Now())
	f.s.RenderFrame(f.ctx, PixelConfiguration{})
	f.engine.emit(ShutdownEvent())
	f.engine.wake()
	f.s.RequestRedraw()
	f.s.Quit()
	f.queue.Sync()

	if got := len(f.engine.rc.drawCalls()); got != draws {
		t.Errorf("draws after shutdown: %d -> %d", draws, got)
	}
	if got := f.engine.rc.flipCount(); got != flips {
		t.Errorf("flips after shutdown: %d -> %d", flips, got)
	}
	if got := f.host.terminateCount(); got != 1 {
		t.Errorf("shutdown re-triggered: terminated %d times", got)
	}
	if got := f.engine.destroyCount(); got != 1 {
		t.Errorf("engine destroyed %d times, want 1", got)
	}
	if f.engine.rc.uninit != 1 {
		t.Errorf("renderer uninitialized %d times, want 1", f.engine.rc.uninit)
	}
}

func TestSurfaceClose(t *testing.T) {
	f := newSurfaceFixture(t, nil)
	f.bringUp(t)

	f.s.Close()
	f.s.Close()

	if f.timer.stopped != 1 {
		t.Errorf("timer stopped %d times, want 1", f.timer.stopped)
	}
	if f.s.RefreshDriver().State() != RefreshStopped {
		t.Errorf("refresh driver %v", f.s.RefreshDriver().State())
	}
	if f.engine.destroyCount() != 1 {
		t.Errorf("engine destroyed %d times", f.engine.destroyCount())
	}
	if f.host.terminateCount() != 0 {
		t.Error("Close terminated the host")
	}
}

func TestSurfaceDefaultTimerUsesDisplayFPS(t *testing.T) {
	s := NewSurface(newFakeHost(1, 1), NewBridge(nil, nil), nil, SurfaceConfig{
		Options: Options{}.Set(OptDisplayFPS, "120"),
	})
	tt, ok := s.cfg.NewTimer().(*TickerTimer)
	if !ok {
		t.Fatalf("default timer is %T", s.cfg.NewTimer())
	}
	if tt.Interval() != time.Second/120 {
		t.Errorf("interval = %v", tt.Interval())
	}
}

func TestPackSize(t *testing.T) {
	for _, sz := range [][2]int{{0, 0}, {800, 600}, {1, 1 << 20}, {-5, 7}} {
		w, h := unpackSize(packSize(sz[0], sz[1]))
		if w != sz[0] || h != sz[1] {
			t.Errorf("unpack(pack(%d, %d)) = %d, %d", sz[0], sz[1], w, h)
		}
	}
}
