package player

import (
	"sync"
	"time"
)

// wallClock is the master clock for media without audio. It advances with
// wall time while running and holds its value while paused.
type wallClock struct {
	mu      sync.Mutex
	now     func() time.Time
	base    float64
	started time.Time
	running bool
}

func newWallClock(now func() time.Time) *wallClock {
	if now == nil {
		now = time.Now
	}
	return &wallClock{now: now}
}

func (c *wallClock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return c.base
	}
	return c.base + c.now().Sub(c.started).Seconds()
}

func (c *wallClock) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetPaused stops or resumes the clock.
func (c *wallClock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case paused && c.running:
		c.base += c.now().Sub(c.started).Seconds()
		c.running = false
	case !paused && !c.running:
		c.started = c.now()
		c.running = true
	}
}

// Reset sets the clock to t without changing whether it runs.
func (c *wallClock) Reset(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = t
	c.started = c.now()
}

// drainingClock is a clock that can run out, like an audio output whose
// stream ended before the video.
type drainingClock interface {
	Clock
	exhausted() bool
}

// masterClock follows the audio clock until it runs out, then continues on
// the wall clock from the audio clock's last value. Without audio it is the
// wall clock.
type masterClock struct {
	audio drainingClock
	wall  *wallClock

	mu      sync.Mutex
	onWall  bool
	handoff func(at float64)
}

func newMasterClock(audio drainingClock, wall *wallClock) *masterClock {
	return &masterClock{audio: audio, wall: wall, onWall: audio == nil}
}

func (c *masterClock) source() Clock {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onWall {
		return c.wall
	}
	if !c.audio.exhausted() {
		return c.audio
	}
	at := c.audio.Time()
	c.wall.Reset(at)
	c.onWall = true
	if c.handoff != nil {
		c.handoff(at)
	}
	return c.wall
}

func (c *masterClock) Time() float64 { return c.source().Time() }

func (c *masterClock) IsPlaying() bool { return c.source().IsPlaying() }
