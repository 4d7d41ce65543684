package player

import (
	"sync"

	"go.uber.org/zap"

	"github.com/njyeung/vlayer/render"
)

// playback is one loadfile: the file plays once, or repeatedly with
// loop-file, until it ends or is halted.
type playback struct {
	path string
	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	session *playSession
}

func newPlayback(path string) *playback {
	return &playback{
		path: path,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// halt stops the playback for good. It does not wait.
func (pb *playback) halt() {
	pb.once.Do(func() { close(pb.stop) })
	pb.mu.Lock()
	s := pb.session
	pb.mu.Unlock()
	if s != nil {
		s.stop()
	}
}

func (pb *playback) halted() bool {
	select {
	case <-pb.stop:
		return true
	default:
		return false
	}
}

// attach makes s the running session. It fails if the playback was halted.
func (pb *playback) attach(s *playSession) bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.halted() {
		return false
	}
	pb.session = s
	return true
}

func (pb *playback) detach() {
	pb.mu.Lock()
	pb.session = nil
	pb.mu.Unlock()
}

func (e *Engine) loadfile(path string) error {
	pb := newPlayback(path)

	e.mu.Lock()
	if e.state.Load() == stateShutdown {
		e.mu.Unlock()
		return ErrShutdown
	}
	prev := e.cur
	e.cur = pb
	e.playing.Add(1)
	e.mu.Unlock()

	if prev != nil {
		prev.halt()
		<-prev.done
	}
	go e.play(pb)
	return nil
}

func (e *Engine) stop() {
	e.mu.Lock()
	pb := e.cur
	e.cur = nil
	e.mu.Unlock()

	if pb != nil {
		pb.halt()
		<-pb.done
	}
	e.pacer.clearCurrent()
	e.endOfPlayback()
}

func (e *Engine) play(pb *playback) {
	defer e.playing.Done()
	defer close(pb.done)

	e.idle.Store(false)
	for {
		e.events.push(render.NamedEvent("start-file"))
		ok := e.playOnce(pb)
		e.events.push(render.NamedEvent("end-file"))
		if !ok || pb.halted() || !e.st.loopFile {
			break
		}
	}
	if pb.halted() {
		return
	}

	e.mu.Lock()
	current := e.cur == pb
	if current {
		e.cur = nil
	}
	e.mu.Unlock()
	if current {
		e.pacer.clearCurrent()
		e.endOfPlayback()
	}
}

// playOnce plays the file once. It reports whether the file played to the
// end or was stopped, as opposed to failing.
func (e *Engine) playOnce(pb *playback) bool {
	s, err := newPlaySession(pb.path, e.pacer, e.sessionConfig(), e.log)
	if err != nil {
		e.log.Error("cannot play", zap.String("path", pb.path), zap.Error(err))
		return false
	}
	defer s.cleanup()

	if !pb.attach(s) {
		return true
	}
	defer pb.detach()

	e.events.push(render.NamedEvent("file-loaded"))
	e.events.push(render.NamedEvent("playback-restart"))
	if err := s.run(); err != nil {
		e.log.Error("playback failed", zap.String("path", pb.path), zap.Error(err))
		return false
	}
	return true
}

// endOfPlayback goes idle, or shuts the engine down with idle=no.
func (e *Engine) endOfPlayback() {
	if !e.st.idle {
		e.shutdown(true)
		return
	}
	e.idle.Store(true)
	e.events.push(render.NamedEvent("idle"))
}

func (e *Engine) sessionConfig() sessionConfig {
	return sessionConfig{
		audio:  e.st.ao != "null",
		paused: e.paused.Load(),
		muted:  e.muted.Load(),
		volume: e.currentVolume(),
	}
}

func (e *Engine) session() *playSession {
	e.mu.Lock()
	pb := e.cur
	e.mu.Unlock()
	if pb == nil {
		return nil
	}
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.session
}

func (e *Engine) withSession(fn func(*playSession)) {
	if s := e.session(); s != nil {
		fn(s)
	}
}
