package render

import (
	"fmt"
	"iter"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// Bridge is a thin adapter over the playback engine. Engine state is held
// in Handle and GraphicsBinding capabilities; once released they stay nil
// and every bridge call made through them is a no-op.
type Bridge struct {
	newEngine EngineFactory
	log       *zap.Logger
}

// Handle is a non-owning reference to an initialized engine.
type Handle struct {
	ref    atomic.Pointer[engineRef]
	target string
}

type engineRef struct{ e Engine }

func (h *Handle) engine() Engine {
	if h == nil {
		return nil
	}
	if r := h.ref.Load(); r != nil {
		return r.e
	}
	return nil
}

// Alive reports whether the handle still refers to an engine.
func (h *Handle) Alive() bool { return h.engine() != nil }

// Target returns the media target the engine was initialized for.
func (h *Handle) Target() string {
	if h == nil {
		return ""
	}
	return h.target
}

// GraphicsBinding is the engine renderer bound to a host graphics context.
type GraphicsBinding struct {
	ref atomic.Pointer[renderRef]
}

type renderRef struct{ rc RenderContext }

func (g *GraphicsBinding) renderContext() RenderContext {
	if g == nil {
		return nil
	}
	if r := g.ref.Load(); r != nil {
		return r.rc
	}
	return nil
}

// Bound reports whether the binding still refers to a renderer.
func (g *GraphicsBinding) Bound() bool { return g.renderContext() != nil }

// NewBridge creates a bridge that creates engines with factory.
func NewBridge(factory EngineFactory, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{newEngine: factory, log: log.Named("bridge")}
}

// Initialize creates an engine, applies opts in order and initializes it.
// Every failure is fatal; the partially configured engine is destroyed.
func (b *Bridge) Initialize(opts Options, target string) (*Handle, error) {
	if target == "" {
		return nil, fatal(StageMedia, ErrMissingMedia)
	}

	e, err := b.newEngine()
	if err != nil {
		return nil, fatal(StageCreate, fmt.Errorf("%w: failed creating context: %v", ErrInit, err))
	}
	if e == nil {
		return nil, fatal(StageCreate, fmt.Errorf("%w: failed creating context", ErrInit))
	}

	for _, o := range opts {
		if err := e.SetOptionString(o.Name, o.Value); err != nil {
			e.Destroy()
			return nil, fatal(StageOption, fmt.Errorf("%w: option %s=%q: %v", ErrInit, o.Name, o.Value, err))
		}
	}

	if err := e.Initialize(); err != nil {
		e.Destroy()
		return nil, fatal(StageInitialize, fmt.Errorf("%w: %v", ErrInit, err))
	}

	h := &Handle{target: target}
	h.ref.Store(&engineRef{e: e})
	b.log.Info("engine initialized", zap.Int("options", len(opts)), zap.String("target", target))
	return h, nil
}

// OnWakeup registers fn to be called whenever the engine has new events.
func (b *Bridge) OnWakeup(h *Handle, fn func()) {
	if e := h.engine(); e != nil {
		e.SetWakeupCallback(fn)
	}
}

// BindGraphics binds the engine's renderer to the host graphics context.
// Symbols the resolver cannot find are logged and reported to the engine as
// nil. onUpdate is registered as the engine's update callback; it may be
// called from an engine goroutine and must only enqueue work.
func (b *Bridge) BindGraphics(h *Handle, api GraphicsAPI, onUpdate func()) (*GraphicsBinding, error) {
	e := h.engine()
	if e == nil {
		return nil, fatal(StageBind, fmt.Errorf("%w: engine is shut down", ErrBind))
	}

	rc, err := e.RenderContext()
	if err != nil {
		return nil, fatal(StageSubAPI, fmt.Errorf("%w: engine has no graphics sub-API: %v", ErrBind, err))
	}

	resolve := api.ProcAddress
	api.ProcAddress = func(name string) unsafe.Pointer {
		var addr unsafe.Pointer
		if resolve != nil {
			addr = resolve(name)
		}
		if addr == nil {
			b.log.Warn("cannot get graphics function pointer", zap.String("symbol", name))
		}
		return addr
	}

	if err := rc.InitGL(api); err != nil {
		return nil, fatal(StageBind, fmt.Errorf("%w: gl init has failed: %v", ErrBind, err))
	}
	rc.SetUpdateCallback(onUpdate)

	g := &GraphicsBinding{}
	g.ref.Store(&renderRef{rc: rc})
	return g, nil
}

// ReportFlip tells the engine a presentation boundary occurred.
func (b *Bridge) ReportFlip(g *GraphicsBinding, timestamp int64) {
	if rc := g.renderContext(); rc != nil {
		rc.ReportFlip(timestamp)
	}
}

// DrawFrame blits the current frame into framebuffer fbo.
func (b *Bridge) DrawFrame(g *GraphicsBinding, fbo uint32, width, height int) error {
	rc := g.renderContext()
	if rc == nil {
		return nil
	}
	return rc.Draw(fbo, width, height)
}

// PollEvents returns the events queued right now. Each iteration drains the
// engine queue until it is empty or the handle is released; ranging over the
// result again picks up events queued since.
func (b *Bridge) PollEvents(h *Handle) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			e := h.engine()
			if e == nil {
				return
			}
			ev := e.WaitEvent(0)
			if ev.Kind == EventNone {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// SendCommand submits an argv-style command. Failures are logged and
// returned; a released handle makes it a no-op.
func (b *Bridge) SendCommand(h *Handle, args ...string) error {
	e := h.engine()
	if e == nil {
		return nil
	}
	if err := e.Command(args...); err != nil {
		b.log.Warn("engine command failed", zap.Strings("command", args), zap.Error(err))
		return err
	}
	return nil
}

// Shutdown asks the engine to quit. The engine answers with a shutdown
// event; teardown happens when that event is handled.
func (b *Bridge) Shutdown(h *Handle) {
	b.SendCommand(h, "quit")
}

// UnbindGraphics releases the renderer. Later calls are no-ops.
func (b *Bridge) UnbindGraphics(g *GraphicsBinding) {
	if g == nil {
		return
	}
	if r := g.ref.Swap(nil); r != nil {
		r.rc.SetUpdateCallback(nil)
		r.rc.UninitGL()
	}
}

// Destroy releases the engine and nils the handle. Later calls are no-ops.
func (b *Bridge) Destroy(h *Handle) {
	if h == nil {
		return
	}
	if r := h.ref.Swap(nil); r != nil {
		r.e.SetWakeupCallback(nil)
		r.e.Destroy()
		b.log.Info("engine destroyed")
	}
}
