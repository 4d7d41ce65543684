package host

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/njyeung/vlayer/render"
)

// Drawable is the layer a Compositor draws. *render.Surface implements it.
type Drawable interface {
	NegotiatePixelConfiguration(mask uint32) render.PixelConfiguration
	CreateContext(cfg render.PixelConfiguration) (render.Context, error)
	ShouldRedraw() bool
	RenderFrame(ctx render.Context, cfg render.PixelConfiguration)
	Asynchronous() bool
}

// Compositor drives a Drawable from its own goroutine, the way a platform
// compositor drives a layer: it creates the layer's context once, then
// redraws on every display request and, while the layer is asynchronous,
// on every refresh interval.
type Compositor struct {
	layer    Drawable
	requests <-chan struct{}
	interval time.Duration
	fatal    func(error)
	log      *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCompositor returns a compositor for layer. fatal receives the error
// if the layer's context cannot be created.
func NewCompositor(layer Drawable, requests <-chan struct{}, refreshHz float64, fatal func(error), log *zap.Logger) *Compositor {
	if log == nil {
		log = zap.NewNop()
	}
	if refreshHz <= 0 {
		refreshHz = 60
	}
	return &Compositor{
		layer:    layer,
		requests: requests,
		interval: time.Duration(float64(time.Second) / refreshHz),
		fatal:    fatal,
		log:      log.Named("compositor"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *Compositor) Start() {
	go c.run()
}

// Stop stops compositing and waits for the current frame to finish.
func (c *Compositor) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Compositor) run() {
	defer close(c.done)

	cfg := c.layer.NegotiatePixelConfiguration(0)
	ctx, err := c.layer.CreateContext(cfg)
	if err != nil {
		c.log.Error("cannot create context", zap.Error(err))
		if c.fatal != nil {
			c.fatal(err)
		}
		return
	}
	c.log.Debug("context created", zap.Stringer("profile", cfg.Profile))

	t := time.NewTicker(c.interval)
	defer t.Stop()

	c.draw(ctx, cfg)
	for {
		select {
		case <-c.stop:
			return
		case <-c.requests:
		case <-t.C:
			if !c.layer.Asynchronous() {
				continue
			}
		}
		c.draw(ctx, cfg)
	}
}

func (c *Compositor) draw(ctx render.Context, cfg render.PixelConfiguration) {
	if c.layer.ShouldRedraw() {
		c.layer.RenderFrame(ctx, cfg)
	}
}
