package player

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"go.uber.org/zap"
)

// playSession plays one file once. Audio, when present, is the master
// clock; otherwise a wall clock stands in.
type playSession struct {
	source *mediaSource
	audio  *audioOutput
	video  *frameDecoder
	pacer  *pacer
	wall   *wallClock
	clock  *masterClock
	log    *zap.Logger

	audioPktCh chan *audioPacket
	videoPktCh chan *astiav.Packet

	stopCh   chan struct{}
	stopOnce sync.Once
}

type audioPacket struct {
	pkt *astiav.Packet
	pts float64
}

type sessionConfig struct {
	audio  bool
	paused bool
	muted  bool
	volume float64
}

func newPlaySession(url string, p *pacer, cfg sessionConfig, log *zap.Logger) (*playSession, error) {
	source, err := openSource(url)
	if err != nil {
		return nil, fmt.Errorf("failed to open media: %w", err)
	}

	video, err := openFrameDecoder(source.video)
	if err != nil {
		source.close()
		return nil, err
	}

	var audio *audioOutput
	if cfg.audio && source.audio != nil {
		audio, err = openAudioOutput(source.audio)
		if err == nil {
			audio.setVolume(cfg.volume)
			audio.setMuted(cfg.muted)
			audio.setPaused(cfg.paused)
			if err = audio.start(); err != nil {
				audio.close()
			}
		}
		if err != nil {
			log.Warn("audio disabled", zap.Error(err))
			audio = nil
		}
	}

	session := &playSession{
		source:     source,
		audio:      audio,
		video:      video,
		pacer:      p,
		wall:       newWallClock(nil),
		log:        log,
		stopCh:     make(chan struct{}),
		videoPktCh: make(chan *astiav.Packet, 30),
	}
	if audio != nil {
		session.audioPktCh = make(chan *audioPacket, 64)
		session.clock = newMasterClock(audio, session.wall)
		session.clock.handoff = func(at float64) {
			log.Debug("audio ended, continuing on wall clock", zap.Float64("at", at))
		}
	} else {
		session.clock = newMasterClock(nil, session.wall)
	}
	session.wall.SetPaused(cfg.paused)

	srcW, srcH := video.sourceSize()
	log.Info("file opened",
		zap.String("path", url),
		zap.Int("width", srcW),
		zap.Int("height", srcH),
		zap.Bool("audio", audio != nil),
		zap.Float64("duration", source.duration()),
	)
	return session, nil
}

// Time returns the master clock.
func (s *playSession) Time() float64 { return s.clock.Time() }

func (s *playSession) IsPlaying() bool { return s.clock.IsPlaying() }

func (s *playSession) Duration() float64 {
	return s.source.duration()
}

func (s *playSession) setPaused(paused bool) {
	if s.audio != nil {
		s.audio.setPaused(paused)
	}
	s.wall.SetPaused(paused)
}

func (s *playSession) setMuted(muted bool) {
	if s.audio != nil {
		s.audio.setMuted(muted)
	}
}

func (s *playSession) setVolume(v float64) {
	if s.audio != nil {
		s.audio.setVolume(v)
	}
}

// run plays the file until it ends or the session is stopped.
func (s *playSession) run() error {
	var demuxWg sync.WaitGroup
	var audioWg sync.WaitGroup

	s.pacer.reset(s)

	if s.audioPktCh != nil {
		audioWg.Add(1)
		go func() {
			defer audioWg.Done()
			s.audioDecodeLoop()
		}()
	}

	demuxWg.Add(1)
	go func() {
		defer demuxWg.Done()
		s.demuxLoop()
	}()

	err := s.videoDecodeLoop()
	if err != nil {
		s.stop()
	}

	demuxWg.Wait()
	audioWg.Wait()

	return err
}

func (s *playSession) stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *playSession) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// cleanup releases the decoders. The session's clock and duration stay
// readable afterwards.
func (s *playSession) cleanup() {
	if s.audio != nil {
		s.audio.close()
	}
	s.video.close()
	s.source.close()
}

// audioDecodeLoop runs in a separate goroutine to decode audio packets
func (s *playSession) audioDecodeLoop() {
	first := true
	for apkt := range s.audioPktCh {
		if apkt == nil {
			continue
		}
		if first {
			s.audio.setClock(apkt.pts)
			first = false
		}
		if err := s.audio.decode(apkt.pkt); err != nil {
			s.log.Debug("audio decode", zap.Error(err))
		}
		apkt.pkt.Free()
	}
	if !s.stopped() {
		if err := s.audio.decode(nil); err != nil {
			s.log.Debug("audio flush", zap.Error(err))
		}
	}
	s.audio.markEOF()
}

// demuxLoop reads packets and distributes them to audio/video channels
// Both packet channels are closed when it returns, so each decoder sees
// its end of stream as soon as the file runs out.
func (s *playSession) demuxLoop() {
	defer close(s.videoPktCh)
	if s.audioPktCh != nil {
		defer close(s.audioPktCh)
	}

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		pkt, kind, err := s.source.read()
		if err != nil {
			if !errors.Is(err, astiav.ErrEof) {
				s.log.Warn("demux", zap.Error(err))
			}
			return
		}

		switch {
		case kind == kindVideo:
			select {
			case s.videoPktCh <- pkt:
			case <-s.stopCh:
				pkt.Free()
				return
			}
		case kind == kindAudio && s.audioPktCh != nil:
			if !s.sendAudio(pkt) {
				return
			}
		default:
			pkt.Free()
		}
	}
}

func (s *playSession) sendAudio(pkt *astiav.Packet) bool {
	ap := &audioPacket{pkt: pkt, pts: s.source.audio.seconds(pkt.Pts())}
	select {
	case s.audioPktCh <- ap:
		return true
	case <-s.stopCh:
		pkt.Free()
		return false
	}
}

// videoDecodeLoop decodes video packets and hands frames to the pacer. At
// end of stream it flushes the decoder and waits for the pacer to present
// the last frame.
func (s *playSession) videoDecodeLoop() error {
	first := true
	push := func(frames []*Frame) bool {
		for _, f := range frames {
			if first && s.audio == nil {
				s.wall.Reset(f.PTS)
			}
			first = false
			if !s.pacer.push(f, s.stopCh) {
				return false
			}
		}
		return true
	}

	for pkt := range s.videoPktCh {
		if s.stopped() {
			pkt.Free()
			continue
		}
		frames, err := s.video.decode(pkt)
		pkt.Free()
		if err != nil {
			return fmt.Errorf("video decode error: %w", err)
		}
		if !push(frames) {
			return nil
		}
	}
	if s.stopped() {
		return nil
	}

	frames, err := s.video.decode(nil)
	if err != nil {
		return fmt.Errorf("video decode error: %w", err)
	}
	if !push(frames) {
		return nil
	}
	return s.drain()
}

func (s *playSession) drain() error {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for s.pacer.pending() > 0 {
		select {
		case <-s.stopCh:
			return nil
		case <-t.C:
		}
	}
	return nil
}
