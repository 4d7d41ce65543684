package render

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// ResizeState is the state of a ResizeController.
type ResizeState int32

const (
	ResizeSteady ResizeState = iota
	ResizeLive
)

func (s ResizeState) String() string {
	if s == ResizeLive {
		return "live-resizing"
	}
	return "steady"
}

// ResizeController switches a Surface between synchronous and asynchronous
// redraw around an interactive resize. It is driven from the UI thread.
type ResizeController struct {
	surface *Surface
	queue   *Queue
	log     *zap.Logger

	state atomic.Int32
}

// NewResizeController returns a controller for s. Forced redraws are posted
// on the surface's queue.
func NewResizeController(s *Surface) *ResizeController {
	return &ResizeController{
		surface: s,
		queue:   s.queue,
		log:     s.log.Named("resize"),
	}
}

// BeginLiveResize switches the surface to asynchronous redraw. Calling it
// while a live resize is in progress does nothing.
func (c *ResizeController) BeginLiveResize() {
	if !c.state.CompareAndSwap(int32(ResizeSteady), int32(ResizeLive)) {
		return
	}
	c.surface.setAsynchronous(true)
	w, h := c.surface.TargetSize()
	c.log.Debug("live resize begin", zap.Int("width", w), zap.Int("height", h))
}

// EndLiveResize switches the surface back to synchronous redraw and queues
// exactly one redraw so the next frame is measured at the new bounds.
func (c *ResizeController) EndLiveResize() {
	c.state.Store(int32(ResizeSteady))
	c.surface.setAsynchronous(false)
	c.queue.Post(c.surface.forceRedraw)
	c.log.Debug("live resize end")
}

// SetLiveResize begins or ends a live resize.
func (c *ResizeController) SetLiveResize(live bool) {
	if live {
		c.BeginLiveResize()
	} else {
		c.EndLiveResize()
	}
}

// State returns the current state.
func (c *ResizeController) State() ResizeState {
	return ResizeState(c.state.Load())
}
