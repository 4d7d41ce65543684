package render

import (
	"errors"
	"sync"
	"time"
	"unsafe"
)

// fakeEngine records every call and serves events from an in-memory queue.
// Command("quit") queues a shutdown event and wakes the client up.
type fakeEngine struct {
	mu sync.Mutex

	options  []Option
	commands [][]string
	events   []Event
	wakeup   func()
	log      []string // call order

	optErr  error
	initErr error
	rcErr   error
	cmdErr  error

	rc        *fakeRenderContext
	destroyed int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{rc: &fakeRenderContext{}}
}

func (e *fakeEngine) factory() EngineFactory {
	return func() (Engine, error) { return e, nil }
}

func (e *fakeEngine) SetOptionString(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.optErr != nil {
		return e.optErr
	}
	e.options = append(e.options, Option{name, value})
	return nil
}

func (e *fakeEngine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, "initialize")
	return e.initErr
}

func (e *fakeEngine) Command(args ...string) error {
	e.mu.Lock()
	if e.cmdErr != nil {
		e.mu.Unlock()
		return e.cmdErr
	}
	e.commands = append(e.commands, args)
	if len(args) > 0 {
		e.log = append(e.log, args[0])
	}
	var wake func()
	if len(args) > 0 && args[0] == "quit" {
		e.events = append(e.events, ShutdownEvent())
		wake = e.wakeup
	}
	e.mu.Unlock()
	if wake != nil {
		wake()
	}
	return nil
}

func (e *fakeEngine) WaitEvent(time.Duration) Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.events) == 0 {
		return Event{}
	}
	ev := e.events[0]
	e.events = e.events[1:]
	return ev
}

// emit queues events without waking the client.
func (e *fakeEngine) emit(evs ...Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evs...)
}

func (e *fakeEngine) wake() {
	e.mu.Lock()
	fn := e.wakeup
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *fakeEngine) SetWakeupCallback(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wakeup = fn
}

func (e *fakeEngine) RenderContext() (RenderContext, error) {
	if e.rcErr != nil {
		return nil, e.rcErr
	}
	return e.rc, nil
}

func (e *fakeEngine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed++
}

func (e *fakeEngine) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

func (e *fakeEngine) commandCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.commands {
		if len(c) > 0 && c[0] == name {
			n++
		}
	}
	return n
}

func (e *fakeEngine) destroyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

type drawCall struct {
	FBO           uint32
	Width, Height int
}

type fakeRenderContext struct {
	mu sync.Mutex

	initErr  error
	symbols  []string
	resolved []unsafe.Pointer
	update   func()
	flips    []int64
	draws    []drawCall
	uninit   int
}

func (rc *fakeRenderContext) InitGL(api GraphicsAPI) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, s := range rc.symbols {
		rc.resolved = append(rc.resolved, api.ProcAddress(s))
	}
	return rc.initErr
}

func (rc *fakeRenderContext) SetUpdateCallback(fn func()) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.update = fn
}

// frameReady fires the update callback like a decoder finishing a frame.
func (rc *fakeRenderContext) frameReady() {
	rc.mu.Lock()
	fn := rc.update
	rc.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (rc *fakeRenderContext) ReportFlip(ts int64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.flips = append(rc.flips, ts)
}

func (rc *fakeRenderContext) Draw(fbo uint32, w, h int) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.draws = append(rc.draws, drawCall{fbo, w, h})
	return nil
}

func (rc *fakeRenderContext) UninitGL() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.uninit++
}

func (rc *fakeRenderContext) drawCalls() []drawCall {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]drawCall(nil), rc.draws...)
}

func (rc *fakeRenderContext) flipCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.flips)
}

type fakeHost struct {
	mu sync.Mutex

	w, h       int
	createErr  error
	ctx        *fakeContext
	created    int
	displays   int
	terminated int
}

func newFakeHost(w, h int) *fakeHost {
	return &fakeHost{w: w, h: h, ctx: &fakeContext{fbo: 7}}
}

func (h *fakeHost) CreateContext(PixelConfiguration) (Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createErr != nil {
		return nil, h.createErr
	}
	h.created++
	return h.ctx, nil
}

func (h *fakeHost) Bounds() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w, h.h
}

func (h *fakeHost) resize(w, ht int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.w, h.h = w, ht
}

func (h *fakeHost) Display() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displays++
}

func (h *fakeHost) Terminate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminated++
}

func (h *fakeHost) displayCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.displays
}

func (h *fakeHost) terminateCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

type fakeContext struct {
	mu sync.Mutex

	fbo          uint32
	swapInterval int
	multiEngine  bool
	current      bool
	currentErr   error
	clears       [][4]float32
	flushes      int
}

func (c *fakeContext) SetSwapInterval(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swapInterval = n
	return nil
}

func (c *fakeContext) EnableMultiEngine() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.multiEngine = true
	return errors.New("unsupported")
}

func (c *fakeContext) MakeCurrent() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentErr != nil {
		return c.currentErr
	}
	c.current = true
	return nil
}

func (c *fakeContext) DrawFramebuffer() uint32 { return c.fbo }

func (c *fakeContext) Clear(r, g, b, a float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears = append(c.clears, [4]float32{r, g, b, a})
}

func (c *fakeContext) FlushDrawable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
}

func (c *fakeContext) Graphics() GraphicsAPI {
	return GraphicsAPI{ProcAddress: func(string) unsafe.Pointer { return nil }}
}

// fakeTimer only ticks when the test says so.
type fakeTimer struct {
	mu      sync.Mutex
	tick    func(time.Time)
	started int
	stopped int
}

func (t *fakeTimer) Start(tick func(time.Time)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started++
	t.tick = tick
	return nil
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped++
}

func (t *fakeTimer) fire(now time.Time) {
	t.mu.Lock()
	fn := t.tick
	t.mu.Unlock()
	if fn != nil {
		fn(now)
	}
}
