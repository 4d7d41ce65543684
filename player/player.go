package player

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/njyeung/vlayer/ipc"
	"github.com/njyeung/vlayer/render"
)

const (
	stateCreated int32 = iota
	stateInitialized
	stateShutdown
)

// Engine is the FFmpeg-backed playback engine. It implements render.Engine:
// options are set before Initialize, then playback is driven with textual
// commands and observed through the event queue.
type Engine struct {
	mu       sync.Mutex
	st       settings
	explicit map[string]bool
	bindings keyBindings
	cur      *playback

	state    atomic.Int32
	events   *eventQueue
	log      *zap.Logger
	pacer    *pacer
	renderer *GLRenderer
	ipc      *ipc.Server
	status   *statusLine

	paused atomic.Bool
	muted  atomic.Bool
	volume atomic.Uint64
	idle   atomic.Bool

	playing     sync.WaitGroup
	bg          sync.WaitGroup
	quit        chan struct{}
	quitOnce    sync.Once
	destroyOnce sync.Once
}

var _ render.Engine = (*Engine)(nil)

// New creates an uninitialized engine.
func New() *Engine {
	e := &Engine{
		st:       defaultSettings(),
		explicit: make(map[string]bool),
		events:   newEventQueue(),
		quit:     make(chan struct{}),
	}
	e.log = zap.New(newEventCore(e.events, zapcore.DebugLevel))
	return e
}

// Factory creates engines for render.NewBridge.
func Factory() (render.Engine, error) {
	return New(), nil
}

// SetOptionString sets an option. Options can only be set before
// Initialize.
func (e *Engine) SetOptionString(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Load() != stateCreated {
		return ErrInitialized
	}
	if err := e.st.set(name, value); err != nil {
		return err
	}
	e.explicit[name] = true
	return nil
}

// Initialize reads the config directory, starts frame pacing and the
// control socket, and leaves the engine idle, waiting for loadfile.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Load() != stateCreated {
		return ErrInitialized
	}

	var user keyBindings
	if e.st.config {
		opts, err := readConfigFile(e.st.configPath("vlayer.conf"))
		if err != nil {
			e.log.Warn("config file", zap.Error(err))
		}
		for _, err := range applyConfigFile(&e.st, opts, e.explicit) {
			e.log.Warn("config file", zap.Error(err))
		}
		var errs []error
		user, errs = readInputConf(e.st.configPath("input.conf"))
		for _, err := range errs {
			e.log.Warn("input.conf", zap.Error(err))
		}
	}
	e.bindings = buildBindings(e.st.defaultBindings, e.st.mediaKeys, user)

	e.paused.Store(e.st.pause)
	e.muted.Store(e.st.mute)
	e.volume.Store(math.Float64bits(e.st.volume))
	e.idle.Store(true)

	e.pacer = newPacer(e.st.displayFPS)
	e.pacer.start()
	if e.st.vo == "opengl-cb" {
		e.renderer = newGLRenderer(e.pacer, e.log)
	}

	if e.st.ipcServer != "" {
		srv, err := ipc.Listen(e.st.ipcServer, e, e.log.Named("ipc"))
		if err != nil {
			e.log.Warn("control socket disabled", zap.Error(err))
		} else {
			e.ipc = srv
			e.events.setObserver(func(ev render.Event) {
				if ev.Kind != render.EventLogMessage {
					srv.Broadcast(ev.Name)
				}
			})
		}
	}

	if e.st.terminal {
		e.status = newStatusLine(os.Stderr)
		e.bg.Add(1)
		go e.statusLoop()
	}

	e.state.Store(stateInitialized)
	e.log.Info("initialized",
		zap.String("vo", e.st.vo),
		zap.String("ao", e.st.ao),
		zap.Float64("display-fps", e.st.displayFPS),
	)
	return nil
}

// Command runs an argv-style command.
func (e *Engine) Command(args ...string) error {
	switch e.state.Load() {
	case stateCreated:
		return ErrNotInitialized
	case stateShutdown:
		return ErrShutdown
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}

	name, args := args[0], args[1:]
	switch name {
	case "loadfile":
		if len(args) != 1 || args[0] == "" {
			return fmt.Errorf("%w: loadfile takes one path", ErrBadValue)
		}
		return e.loadfile(args[0])
	case "stop":
		e.stop()
		return nil
	case "quit":
		e.shutdown(true)
		return nil
	case "cycle":
		if len(args) != 1 {
			return fmt.Errorf("%w: cycle takes one property", ErrBadValue)
		}
		return e.cycle(args[0])
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("%w: set takes a property and a value", ErrBadValue)
		}
		return e.set(args[0], args[1])
	case "add":
		if len(args) != 2 {
			return fmt.Errorf("%w: add takes a property and a delta", ErrBadValue)
		}
		return e.add(args[0], args[1])
	case "keypress":
		if len(args) != 1 {
			return fmt.Errorf("%w: keypress takes one key", ErrBadValue)
		}
		return e.keypress(args[0])
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func (e *Engine) keypress(key string) error {
	e.mu.Lock()
	cmd, ok := e.bindings.lookup(key)
	e.mu.Unlock()
	if !ok {
		e.log.Debug("unbound key", zap.String("key", key))
		return nil
	}
	if cmd[0] == "keypress" {
		return fmt.Errorf("%w: %s is bound to keypress", ErrBadValue, key)
	}
	return e.Command(cmd...)
}

func (e *Engine) cycle(prop string) error {
	switch prop {
	case "pause":
		e.setPaused(!e.paused.Load())
	case "mute":
		e.setMuted(!e.muted.Load())
	default:
		return fmt.Errorf("%w: cannot cycle %s", ErrBadValue, prop)
	}
	return nil
}

func (e *Engine) set(prop, value string) error {
	switch prop {
	case "pause", "mute":
		b, err := parseFlag(value)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrBadValue, prop, value)
		}
		if prop == "pause" {
			e.setPaused(b)
		} else {
			e.setMuted(b)
		}
	case "volume":
		v, err := parseVolume(value)
		if err != nil {
			return fmt.Errorf("%w: volume=%q", ErrBadValue, value)
		}
		e.setVolume(v)
	default:
		return fmt.Errorf("%w: cannot set %s", ErrBadValue, prop)
	}
	return nil
}

func (e *Engine) add(prop, delta string) error {
	if prop != "volume" {
		return fmt.Errorf("%w: cannot add to %s", ErrBadValue, prop)
	}
	d, err := strconv.ParseFloat(delta, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadValue, delta)
	}
	e.setVolume(clampVolume(e.currentVolume() + d))
	return nil
}

func (e *Engine) setPaused(paused bool) {
	if e.paused.Swap(paused) == paused {
		return
	}
	e.withSession(func(s *playSession) { s.setPaused(paused) })
	if paused {
		e.events.push(render.NamedEvent("pause"))
	} else {
		e.events.push(render.NamedEvent("unpause"))
	}
	e.events.push(render.NamedEvent("property-change"))
}

func (e *Engine) setMuted(muted bool) {
	if e.muted.Swap(muted) == muted {
		return
	}
	e.withSession(func(s *playSession) { s.setMuted(muted) })
	e.events.push(render.NamedEvent("property-change"))
}

func (e *Engine) setVolume(v float64) {
	if math.Float64frombits(e.volume.Swap(math.Float64bits(v))) == v {
		return
	}
	e.withSession(func(s *playSession) { s.setVolume(v) })
	e.events.push(render.NamedEvent("property-change"))
}

func (e *Engine) currentVolume() float64 {
	return math.Float64frombits(e.volume.Load())
}

// Property returns the current value of a property.
func (e *Engine) Property(name string) (any, error) {
	if e.state.Load() == stateCreated {
		return nil, ErrNotInitialized
	}
	switch name {
	case "pause":
		return e.paused.Load(), nil
	case "mute":
		return e.muted.Load(), nil
	case "volume":
		return e.currentVolume(), nil
	case "idle-active":
		return e.idle.Load(), nil
	case "frame-drop-count":
		return e.pacer.drops.Load(), nil
	case "path":
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.cur == nil {
			return nil, ErrUnavailable
		}
		return e.cur.path, nil
	case "time-pos", "duration":
		s := e.session()
		if s == nil {
			return nil, ErrUnavailable
		}
		if name == "duration" {
			return s.Duration(), nil
		}
		return s.Time(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProp, name)
	}
}

func (e *Engine) WaitEvent(timeout time.Duration) render.Event {
	return e.events.wait(timeout)
}

func (e *Engine) SetWakeupCallback(fn func()) {
	e.events.setWakeup(fn)
}

// RenderContext returns the GL renderer. It fails with vo=null.
func (e *Engine) RenderContext() (render.RenderContext, error) {
	if e.state.Load() == stateCreated {
		return nil, ErrNotInitialized
	}
	if e.renderer == nil {
		return nil, ErrNoRenderer
	}
	return e.renderer, nil
}

// Destroy stops playback and releases everything. No shutdown event is
// queued; the caller is done listening.
func (e *Engine) Destroy() {
	e.destroyOnce.Do(func() {
		e.shutdown(false)
		e.playing.Wait()
		e.bg.Wait()
		if e.pacer != nil {
			e.pacer.close()
		}
		if e.ipc != nil {
			e.ipc.Close()
		}
		if e.status != nil {
			e.status.clear()
		}
		e.events.setObserver(nil)
		e.events.setWakeup(nil)
	})
}

// shutdown moves the engine to its terminal state. Only the first call
// does anything, so at most one shutdown event is ever queued.
func (e *Engine) shutdown(notify bool) {
	prev := e.state.Swap(stateShutdown)
	if prev == stateShutdown {
		return
	}
	e.mu.Lock()
	pb := e.cur
	e.cur = nil
	e.mu.Unlock()
	if pb != nil {
		pb.halt()
	}
	e.quitOnce.Do(func() { close(e.quit) })
	if notify && prev == stateInitialized {
		e.log.Debug("shutting down")
		e.events.push(render.ShutdownEvent())
	}
}

func (e *Engine) statusLoop() {
	defer e.bg.Done()
	t := time.NewTicker(statusInterval)
	defer t.Stop()
	for {
		select {
		case <-e.quit:
			return
		case now := <-t.C:
			s := e.session()
			if s == nil {
				continue
			}
			e.status.update(now, s.Time(), s.Duration(), e.paused.Load(), e.pacer.drops.Load())
		}
	}
}
