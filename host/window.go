// Package host puts a render.Surface on screen with SDL2: it owns the
// window, the GL context and the main-thread loop, and plays the role of
// the platform compositor.
package host

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"
	"golang.org/x/mobile/gl"

	"github.com/njyeung/vlayer/render"
)

const (
	minWindowSize = 200

	// liveResizeQuiet is how long the window size must stay unchanged
	// before a live resize ends.
	liveResizeQuiet = 150 * time.Millisecond
)

func init() {
	// SDL and the GL worker must run on the main thread.
	runtime.LockOSThread()
}

// Config configures a Window.
type Config struct {
	Title         string
	Width, Height int
	Logger        *zap.Logger
}

// Input receives what the user does to the window. *render.Surface and
// *render.ResizeController together satisfy it.
type Input interface {
	Command(args ...string)
	Quit()
	Closed() bool
	BeginLiveResize()
	EndLiveResize()
}

// Window is an SDL window with a GL context. It implements render.Host.
//
// Every SDL and GL call happens on the goroutine running Run, which must be
// the main thread. Other goroutines reach it through the GL worker, swap
// requests and ui closures, the same way shiny's x11 driver does.
type Window struct {
	log    *zap.Logger
	win    *sdl.Window
	sdlctx sdl.GLContext
	glctx  gl.Context
	worker gl.Worker

	uic     chan func()
	swapc   chan chan struct{}
	display chan struct{}

	bounds     atomic.Uint64
	terminated chan struct{}
	termOnce   sync.Once

	// main thread only
	fullscreen bool
	resize     debouncer
	closeAsked bool
}

var _ render.Host = (*Window)(nil)

// NewWindow initializes SDL and opens the window. It must be called on the
// main thread.
func NewWindow(cfg Config) (*Window, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1280, 720
	}

	sdl.SetHint(sdl.HINT_VIDEO_MINIMIZE_ON_FOCUS_LOSS, "0")
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("SDL_INIT_VIDEO failed: %w", err)
	}
	if driver, err := sdl.GetCurrentVideoDriver(); err == nil {
		log.Debug("video driver initialized", zap.String("driver", driver))
	}

	win, err := sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		int32(cfg.Width),
		int32(cfg.Height),
		sdl.WINDOW_OPENGL|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI|sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	win.SetMinimumSize(minWindowSize, minWindowSize)

	glctx, worker := gl.NewContext()
	w := &Window{
		log:        log.Named("host"),
		win:        win,
		glctx:      glctx,
		worker:     worker,
		uic:        make(chan func()),
		swapc:      make(chan chan struct{}),
		display:    make(chan struct{}, 1),
		terminated: make(chan struct{}),
		resize:     debouncer{quiet: liveResizeQuiet},
	}
	w.updateBounds()
	return w, nil
}

// RefreshRate returns the refresh rate of the display the window is on, or
// fallback when SDL does not know it. Main thread only.
func (w *Window) RefreshRate(fallback float64) float64 {
	idx, err := w.win.GetDisplayIndex()
	if err != nil {
		return fallback
	}
	mode, err := sdl.GetCurrentDisplayMode(idx)
	if err != nil || mode.RefreshRate <= 0 {
		return fallback
	}
	w.log.Debug("display mode",
		zap.Int32("width", mode.W),
		zap.Int32("height", mode.H),
		zap.Int32("refresh", mode.RefreshRate),
	)
	return float64(mode.RefreshRate)
}

// CreateContext creates the GL context on the main thread. The request is
// always for OpenGL ES 2.0, which is what the gl package drives; cfg
// decides buffering, acceleration and channel sizes.
func (w *Window) CreateContext(cfg render.PixelConfiguration) (render.Context, error) {
	var ctx *Context
	var err error
	w.do(func() {
		if w.sdlctx != nil {
			err = errors.New("window already has a GL context")
			return
		}
		if err = w.applyAttributes(cfg); err != nil {
			return
		}
		var sdlctx sdl.GLContext
		sdlctx, err = w.win.GLCreateContext()
		if err != nil {
			err = fmt.Errorf("failed to create GL context (%s): %w", cfg.Profile, err)
			return
		}
		w.sdlctx = sdlctx
		ctx = &Context{w: w}
	})
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

type glAttr struct {
	attr sdl.GLattr
	v    int
}

// glAttributes translates a pixel configuration into SDL attributes. The
// context is always OpenGL ES 2.0, so the requested profile is replaced;
// attributes SDL has no equivalent for are returned as ignored.
func glAttributes(cfg render.PixelConfiguration) (attrs []glAttr, ignored []render.AttributeValue) {
	attrs = []glAttr{{sdl.GL_DOUBLEBUFFER, 0}}
	offline := false
	for _, a := range cfg.Attributes() {
		switch a.Attr {
		case render.AttrProfile:
			attrs = append(attrs,
				glAttr{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_ES},
				glAttr{sdl.GL_CONTEXT_MAJOR_VERSION, 2},
				glAttr{sdl.GL_CONTEXT_MINOR_VERSION, 0},
			)
			ignored = append(ignored, a)
		case render.AttrDoubleBuffer:
			attrs = append(attrs, glAttr{sdl.GL_DOUBLEBUFFER, a.Value})
		case render.AttrAllowOfflineRenderers:
			offline = a.Value != 0
		case render.AttrAccelerated:
			// Offline renderers allowed means software rendering is
			// acceptable, so acceleration is only a preference.
			if !offline {
				attrs = append(attrs, glAttr{sdl.GL_ACCELERATED_VISUAL, a.Value})
			}
		case render.AttrColorSize:
			attrs = append(attrs,
				glAttr{sdl.GL_RED_SIZE, a.Value},
				glAttr{sdl.GL_GREEN_SIZE, a.Value},
				glAttr{sdl.GL_BLUE_SIZE, a.Value},
			)
		case render.AttrAlphaSize:
			attrs = append(attrs, glAttr{sdl.GL_ALPHA_SIZE, a.Value})
		case render.AttrDepthSize:
			attrs = append(attrs, glAttr{sdl.GL_DEPTH_SIZE, a.Value})
		default:
			ignored = append(ignored, a)
		}
	}
	return attrs, ignored
}

func (w *Window) applyAttributes(cfg render.PixelConfiguration) error {
	attrs, ignored := glAttributes(cfg)
	for _, a := range ignored {
		w.log.Debug("pixel attribute not applied", zap.Stringer("attr", a.Attr), zap.Int("value", a.Value))
	}
	for _, a := range attrs {
		if err := sdl.GLSetAttribute(a.attr, a.v); err != nil {
			return fmt.Errorf("GL attribute %d=%d: %w", a.attr, a.v, err)
		}
	}
	return nil
}

// Bounds returns the drawable size in pixels as of the last window event.
func (w *Window) Bounds() (int, int) {
	v := w.bounds.Load()
	return int(int32(uint32(v >> 32))), int(int32(uint32(v)))
}

func (w *Window) updateBounds() {
	dw, dh := w.win.GLGetDrawableSize()
	w.bounds.Store(uint64(uint32(dw))<<32 | uint64(uint32(dh)))
}

// Display asks the compositor for a redraw. Requests made while one is
// pending are merged.
func (w *Window) Display() {
	select {
	case w.display <- struct{}{}:
	default:
	}
}

// DisplayRequests is the channel a Compositor redraws on.
func (w *Window) DisplayRequests() <-chan struct{} { return w.display }

// Terminate ends the application: Terminated is closed.
func (w *Window) Terminate() {
	w.termOnce.Do(func() {
		w.log.Debug("terminate")
		close(w.terminated)
	})
}

// Terminated is closed once the application should end.
func (w *Window) Terminated() <-chan struct{} { return w.terminated }

// do runs f on the main thread and waits for it.
func (w *Window) do(f func()) {
	done := make(chan struct{})
	w.uic <- func() {
		f()
		close(done)
	}
	<-done
}

// swap presents the back buffer on the main thread.
func (w *Window) swap() {
	done := make(chan struct{})
	w.swapc <- done
	<-done
}

// Run services SDL and GL on the calling goroutine, which must be the main
// thread, until app returns. app runs on its own goroutine; window input
// goes to in.
func (w *Window) Run(in Input, app func() error) error {
	appErr := make(chan error, 1)
	go func() { appErr <- app() }()

	heartbeat := time.NewTicker(time.Second / 120)
	defer heartbeat.Stop()
	workAvailable := w.worker.WorkAvailable()

	for {
		select {
		case err := <-appErr:
			return err
		case <-workAvailable:
			w.worker.DoWork()
		case done := <-w.swapc:
			w.win.GLSwap()
			close(done)
		case f := <-w.uic:
			f()
		case now := <-heartbeat.C:
			for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
				w.handleEvent(in, ev, now)
			}
			if w.resize.tick(now) {
				in.EndLiveResize()
			}
		}
	}
}

func (w *Window) handleEvent(in Input, ev sdl.Event, now time.Time) {
	switch ev := ev.(type) {
	case *sdl.QuitEvent:
		w.requestClose(in)
	case *sdl.WindowEvent:
		switch ev.Event {
		case sdl.WINDOWEVENT_CLOSE:
			w.requestClose(in)
		case sdl.WINDOWEVENT_SIZE_CHANGED:
			w.updateBounds()
			if w.resize.changed(now) {
				in.BeginLiveResize()
			}
		case sdl.WINDOWEVENT_EXPOSED:
			w.Display()
		}
	case *sdl.KeyboardEvent:
		if ev.Type != sdl.KEYDOWN {
			return
		}
		if ev.Keysym.Sym == sdl.K_f && ev.Repeat == 0 {
			w.toggleFullscreen(in, now)
			return
		}
		if name, ok := keyName(ev.Keysym.Sym); ok {
			in.Command("keypress", name)
		}
	}
}

// requestClose asks the engine to quit; the engine's shutdown event then
// terminates the application. A second request, or one after the engine is
// gone, terminates directly.
func (w *Window) requestClose(in Input) {
	if w.closeAsked || in.Closed() {
		w.Terminate()
		return
	}
	w.closeAsked = true
	in.Quit()
}

func (w *Window) toggleFullscreen(in Input, now time.Time) {
	if w.resize.changed(now) {
		in.BeginLiveResize()
	}
	var flags uint32
	if !w.fullscreen {
		flags = sdl.WINDOW_FULLSCREEN_DESKTOP
	}
	if err := w.win.SetFullscreen(flags); err != nil {
		w.log.Warn("fullscreen", zap.Error(err))
		return
	}
	w.fullscreen = !w.fullscreen
}

// Destroy releases the GL context and the window and shuts SDL down. Main
// thread only, after Run returned.
func (w *Window) Destroy() {
	if w.sdlctx != nil {
		sdl.GLDeleteContext(w.sdlctx)
		w.sdlctx = nil
	}
	w.win.Destroy()
	sdl.Quit()
}

// Context is the window's GL context. It implements render.Context.
type Context struct {
	w *Window
}

var _ render.Context = (*Context)(nil)

func (c *Context) SetSwapInterval(interval int) error {
	var err error
	c.w.do(func() { err = sdl.GLSetSwapInterval(interval) })
	return err
}

// EnableMultiEngine has no SDL equivalent.
func (c *Context) EnableMultiEngine() error {
	return fmt.Errorf("multi-threaded GL engine: %w", errors.ErrUnsupported)
}

func (c *Context) MakeCurrent() error {
	var err error
	c.w.do(func() { err = c.w.win.GLMakeCurrent(c.w.sdlctx) })
	return err
}

func (c *Context) DrawFramebuffer() uint32 {
	return uint32(c.w.glctx.GetInteger(gl.FRAMEBUFFER_BINDING))
}

func (c *Context) Clear(r, g, b, a float32) {
	c.w.glctx.ClearColor(r, g, b, a)
	c.w.glctx.Clear(gl.COLOR_BUFFER_BIT)
}

// FlushDrawable hands pending GL calls to the driver and swaps buffers.
func (c *Context) FlushDrawable() {
	// gl.Flush blocks until the worker has run every queued call.
	c.w.glctx.Flush()
	c.w.swap()
}

func (c *Context) Graphics() render.GraphicsAPI {
	return render.GraphicsAPI{
		ProcAddress: func(name string) unsafe.Pointer {
			var p unsafe.Pointer
			c.w.do(func() { p = sdl.GLGetProcAddress(name) })
			return p
		},
		Functions: c.w.glctx,
	}
}
