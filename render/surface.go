package render

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/njyeung/vlayer/internal/logging"
)

// Host is the windowing side of a Surface: it creates graphics contexts,
// knows the drawable bounds and schedules redraws through its compositor.
type Host interface {
	// CreateContext creates a graphics context for cfg. A failure to find a
	// matching configuration is returned as an error.
	CreateContext(cfg PixelConfiguration) (Context, error)

	// Bounds returns the current drawable size in device pixels.
	Bounds() (width, height int)

	// Display asks the compositor to redraw the surface. It must not block.
	Display()

	// Terminate ends the host application.
	Terminate()
}

// Context is a host graphics context.
type Context interface {
	SetSwapInterval(interval int) error
	EnableMultiEngine() error
	MakeCurrent() error

	// DrawFramebuffer returns the framebuffer currently bound for drawing.
	DrawFramebuffer() uint32

	// Clear clears the bound framebuffer to the given colour.
	Clear(r, g, b, a float32)

	// FlushDrawable presents the drawable.
	FlushDrawable()

	// Graphics returns the API an engine renderer draws through.
	Graphics() GraphicsAPI
}

// SurfaceConfig configures a Surface.
type SurfaceConfig struct {
	// Options are applied to the engine, in order, when it is created.
	Options Options

	// Target is the media loaded once the engine is bound.
	Target string

	// NewTimer returns the refresh source for the refresh driver. The
	// default ticks at the display-fps option.
	NewTimer func() RefreshTimer

	Logger *zap.Logger
}

// Surface is the hardware-backed drawable. The compositor calls
// ShouldRedraw and RenderFrame from its own thread; engine events and redraw
// requests are serialized through the queue.
//
// Target size and synchronization mode are the only state the render path
// shares with other threads. Both are single atomic words: the mode is
// written by the ResizeController on the UI thread, and the size is written
// by the render path itself while synchronous and only read while
// asynchronous, which freezes it for the duration of a live resize.
type Surface struct {
	host   Host
	bridge *Bridge
	queue  *Queue
	cfg    SurfaceConfig
	log    *zap.Logger

	async atomic.Bool
	size  atomic.Uint64

	bringUp  sync.Once
	handle   atomic.Pointer[Handle]
	binding  atomic.Pointer[GraphicsBinding]
	driver   atomic.Pointer[RefreshDriver]
	shutdown atomic.Bool

	closeOnce sync.Once

	frames  atomic.Uint64
	redraws atomic.Uint64
	clearBG [4]float32
}

// NewSurface returns a surface that draws into host and serializes engine
// work on queue.
func NewSurface(host Host, bridge *Bridge, queue *Queue, cfg SurfaceConfig) *Surface {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewTimer == nil {
		fps := cfg.Options.DisplayFPS(60)
		cfg.NewTimer = func() RefreshTimer { return NewTickerTimer(fps) }
	}
	return &Surface{
		host:    host,
		bridge:  bridge,
		queue:   queue,
		cfg:     cfg,
		log:     cfg.Logger.Named("surface"),
		clearBG: [4]float32{0, 0, 0, 1},
	}
}

// NegotiatePixelConfiguration returns the configuration contexts for mask
// are created with.
func (s *Surface) NegotiatePixelConfiguration(mask uint32) PixelConfiguration {
	return NegotiatePixelConfiguration(mask)
}

// CreateContext creates the graphics context, locks presentation to the
// display refresh and makes it current. The first successful call also
// brings the engine up: initialize, bind graphics, start the refresh driver
// and load the target. Bring-up failures are returned as *FatalError.
func (s *Surface) CreateContext(cfg PixelConfiguration) (Context, error) {
	ctx, err := s.host.CreateContext(cfg)
	if err != nil {
		return nil, fatal(StageContext, err)
	}
	if err := ctx.SetSwapInterval(1); err != nil {
		s.log.Warn("cannot lock presentation to vsync", zap.Error(err))
	}
	if err := ctx.EnableMultiEngine(); err != nil {
		s.log.Debug("multi-engine hint unavailable", zap.Error(err))
	}
	if err := ctx.MakeCurrent(); err != nil {
		return nil, fatal(StageContext, err)
	}

	var bringErr error
	s.bringUp.Do(func() { bringErr = s.startEngine(ctx) })
	if bringErr != nil {
		return nil, bringErr
	}
	return ctx, nil
}

func (s *Surface) startEngine(ctx Context) error {
	h, err := s.bridge.Initialize(s.cfg.Options, s.cfg.Target)
	if err != nil {
		return err
	}
	s.handle.Store(h)
	s.bridge.OnWakeup(h, func() { s.queue.Post(s.drainEvents) })

	g, err := s.bridge.BindGraphics(h, ctx.Graphics(), func() { s.queue.Post(s.redraw) })
	if err != nil {
		s.handle.Store(nil)
		s.bridge.Destroy(h)
		return err
	}
	s.binding.Store(g)

	d := NewRefreshDriver(s.cfg.NewTimer(), s.bridge, s.Binding, s.cfg.Logger)
	s.driver.Store(d)
	if err := d.Start(); err != nil {
		s.log.Warn("display refresh unavailable", zap.Error(err))
	}

	if err := s.bridge.SendCommand(h, "loadfile", h.Target()); err != nil {
		s.abortEngine()
		return fatal(StageInitialize, err)
	}
	return nil
}

// abortEngine undoes a partial bring-up so nothing outlives a fatal error.
func (s *Surface) abortEngine() {
	if d := s.driver.Swap(nil); d != nil {
		d.Stop()
	}
	if g := s.binding.Swap(nil); g != nil {
		s.bridge.UnbindGraphics(g)
	}
	if h := s.handle.Swap(nil); h != nil {
		s.bridge.Destroy(h)
	}
}

// ShouldRedraw always reports true. Redraw cadence is bounded by the
// compositor's scheduling and the engine's update callback.
func (s *Surface) ShouldRedraw() bool { return true }

// RenderFrame draws into the bound framebuffer and presents it. While
// synchronous it re-measures the target size from the host bounds; while
// asynchronous it reuses the size frozen at mode entry.
func (s *Surface) RenderFrame(ctx Context, _ PixelConfiguration) {
	fbo := ctx.DrawFramebuffer()
	w, h := s.targetSize()

	if g := s.binding.Load(); g.Bound() {
		if err := s.bridge.DrawFrame(g, fbo, w, -h); err != nil {
			s.log.Warn("draw failed", zap.Error(err))
		}
	} else {
		ctx.Clear(s.clearBG[0], s.clearBG[1], s.clearBG[2], s.clearBG[3])
	}

	ctx.FlushDrawable()
	s.frames.Add(1)
}

func (s *Surface) targetSize() (int, int) {
	if s.async.Load() {
		return unpackSize(s.size.Load())
	}
	w, h := s.host.Bounds()
	s.size.Store(packSize(w, h))
	return w, h
}

// Asynchronous reports whether the surface redraws on the compositor's own
// cadence rather than on explicit requests.
func (s *Surface) Asynchronous() bool { return s.async.Load() }

func (s *Surface) setAsynchronous(async bool) {
	if async {
		// Nothing presented yet: freeze the bounds at mode entry.
		if s.size.Load() == 0 {
			s.size.Store(packSize(s.host.Bounds()))
		}
	}
	s.async.Store(async)
}

// TargetSize returns the size the render path last presented at, or the
// frozen size during a live resize.
func (s *Surface) TargetSize() (int, int) { return unpackSize(s.size.Load()) }

// Binding returns the current graphics binding, or nil.
func (s *Surface) Binding() *GraphicsBinding { return s.binding.Load() }

// Handle returns the current engine handle, or nil.
func (s *Surface) Handle() *Handle { return s.handle.Load() }

// RefreshDriver returns the refresh driver once the engine is up.
func (s *Surface) RefreshDriver() *RefreshDriver { return s.driver.Load() }

// Frames returns how many frames the render path has presented.
func (s *Surface) Frames() uint64 { return s.frames.Load() }

// Redraws returns how many redraw requests reached the host.
func (s *Surface) Redraws() uint64 { return s.redraws.Load() }

// RequestRedraw queues a redraw request.
func (s *Surface) RequestRedraw() { s.queue.Post(s.redraw) }

// redraw is the task posted by the engine's update callback. While
// asynchronous the compositor redraws on its own, so the request is dropped.
func (s *Surface) redraw() {
	if s.shutdown.Load() || s.async.Load() {
		return
	}
	s.display()
}

// forceRedraw is posted when a live resize ends.
func (s *Surface) forceRedraw() {
	if s.shutdown.Load() {
		return
	}
	s.display()
}

func (s *Surface) display() {
	s.redraws.Add(1)
	s.host.Display()
}

// Command queues an engine command behind every pending task.
func (s *Surface) Command(args ...string) {
	s.queue.Post(func() {
		s.bridge.SendCommand(s.handle.Load(), args...)
	})
}

// Quit asks the engine to shut down. The application terminates once the
// engine's shutdown event is handled.
func (s *Surface) Quit() { s.Command("quit") }

func (s *Surface) drainEvents() {
	for ev := range s.bridge.PollEvents(s.handle.Load()) {
		s.handleEvent(ev)
	}
}

func (s *Surface) handleEvent(ev Event) {
	switch ev.Kind {
	case EventShutdown:
		s.teardownEngine()
		s.host.Terminate()
	case EventLogMessage:
		if ev.Log == nil {
			return
		}
		s.log.Check(logging.EngineLevel(ev.Log.Level), ev.Log.Text).Write(
			zap.String("prefix", ev.Log.Prefix),
			zap.String("level", ev.Log.Level),
		)
	default:
		s.log.Debug("event", zap.String("name", ev.Name))
	}
}

// teardownEngine releases the graphics binding and the engine. It runs on
// the queue and is idempotent.
func (s *Surface) teardownEngine() {
	s.shutdown.Store(true)
	if g := s.binding.Swap(nil); g != nil {
		s.bridge.UnbindGraphics(g)
	}
	if h := s.handle.Swap(nil); h != nil {
		s.bridge.Destroy(h)
	}
}

// Closed reports whether the engine has been torn down.
func (s *Surface) Closed() bool { return s.shutdown.Load() }

// Close stops the refresh driver and releases whatever the engine still
// holds. Teardown is serialized behind pending queue tasks, so the host
// must still service graphics work while Close runs.
func (s *Surface) Close() {
	s.closeOnce.Do(func() {
		if d := s.driver.Load(); d != nil {
			d.Stop()
		}
		s.queue.Post(s.teardownEngine)
		s.queue.Sync()
	})
}

func packSize(w, h int) uint64 {
	return uint64(uint32(w))<<32 | uint64(uint32(h))
}

func unpackSize(v uint64) (int, int) {
	return int(int32(uint32(v >> 32))), int(int32(uint32(v)))
}
