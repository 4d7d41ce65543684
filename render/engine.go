package render

import (
	"time"
	"unsafe"

	"golang.org/x/mobile/gl"
)

// Engine is the playback engine the bridge drives. Implementations decode
// and pace frames on their own goroutines; the bridge only configures them,
// sends commands and drains events.
type Engine interface {
	// SetOptionString sets an option. Only valid before Initialize.
	SetOptionString(name, value string) error

	// Initialize applies the options and starts the engine. It blocks until
	// the engine is ready to accept commands.
	Initialize() error

	// Command runs an argv-style command such as {"loadfile", path}.
	Command(args ...string) error

	// WaitEvent returns the next queued event, waiting up to timeout.
	// It returns an event of kind EventNone when the queue is empty.
	WaitEvent(timeout time.Duration) Event

	// SetWakeupCallback registers fn to be called, from any goroutine,
	// whenever new events are queued. fn must not block.
	SetWakeupCallback(fn func())

	// RenderContext returns the engine's graphics sub-API.
	RenderContext() (RenderContext, error)

	// Destroy releases the engine. It is called once, after shutdown.
	Destroy()
}

// RenderContext renders engine frames into a host-owned graphics context.
type RenderContext interface {
	// InitGL binds the renderer to the current graphics context.
	InitGL(api GraphicsAPI) error

	// SetUpdateCallback registers fn to be called, from any goroutine,
	// whenever a new frame is ready to be drawn. fn must not block.
	SetUpdateCallback(fn func())

	// ReportFlip tells the engine that a presentation boundary occurred.
	// A zero timestamp means "now".
	ReportFlip(timestamp int64)

	// Draw renders the current frame into framebuffer fbo. A negative
	// height flips the image vertically.
	Draw(fbo uint32, width, height int) error

	// UninitGL releases every graphics resource of the renderer.
	UninitGL()
}

// EngineFactory creates an uninitialized engine.
type EngineFactory func() (Engine, error)

// ProcAddressFunc resolves a graphics entry point by name. It returns nil
// when the symbol is unavailable.
type ProcAddressFunc func(name string) unsafe.Pointer

// GraphicsAPI is what a renderer needs to draw into the host's context: the
// symbol resolver and the function table bound to that context.
type GraphicsAPI struct {
	ProcAddress ProcAddressFunc
	Functions   gl.Context
}
