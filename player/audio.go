package player

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	// bytesPerSample is one interleaved s16le stereo sample.
	bytesPerSample = 4

	speakerBuffer = 50 * time.Millisecond
)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// openSpeaker opens the audio device once per process.
func openSpeaker() error {
	speakerOnce.Do(func() {
		sr := beep.SampleRate(AudioSampleRate)
		speakerErr = speaker.Init(sr, sr.N(speakerBuffer))
	})
	return speakerErr
}

// pcmStream plays queued s16le stereo PCM and counts what it played: its
// clock is the timestamp of the next sample to reach the speaker. It
// streams silence while paused or starved, so it never ends.
type pcmStream struct {
	mu  sync.Mutex
	buf []byte

	paused atomic.Bool
	clock  atomic.Uint64 // float64 bits, seconds
}

func newPCMStream() *pcmStream {
	return &pcmStream{buf: make([]byte, 0, AudioSampleRate*bytesPerSample)}
}

func (p *pcmStream) Stream(samples [][2]float64) (int, bool) {
	clear(samples)
	if p.paused.Load() {
		return len(samples), true
	}

	p.mu.Lock()
	n := min(len(samples), len(p.buf)/bytesPerSample)
	for i := range n {
		s := p.buf[i*bytesPerSample:]
		samples[i][0] = float64(int16(binary.LittleEndian.Uint16(s[0:]))) / math.MaxInt16
		samples[i][1] = float64(int16(binary.LittleEndian.Uint16(s[2:]))) / math.MaxInt16
	}
	p.buf = p.buf[n*bytesPerSample:]
	p.mu.Unlock()

	if n > 0 {
		p.setTime(p.time() + float64(n)/AudioSampleRate)
	}
	return len(samples), true
}

func (p *pcmStream) Err() error { return nil }

func (p *pcmStream) write(pcm []byte) {
	p.mu.Lock()
	p.buf = append(p.buf, pcm...)
	p.mu.Unlock()
}

func (p *pcmStream) buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

func (p *pcmStream) time() float64 {
	return math.Float64frombits(p.clock.Load())
}

func (p *pcmStream) setTime(t float64) {
	p.clock.Store(math.Float64bits(t))
}

// audioOutput decodes an audio stream, resamples it to the speaker format
// and plays it. It is the master clock while it runs.
type audioOutput struct {
	pcm  *pcmStream
	gain *effects.Volume

	percent float64 // guarded by the speaker lock
	muted   bool    // guarded by the speaker lock

	playing atomic.Bool
	eof     atomic.Bool

	mu     sync.Mutex
	cc     *astiav.CodecContext
	swr    *astiav.SoftwareResampleContext
	frame  *astiav.Frame
	closed bool
}

func openAudioOutput(st *streamInfo) (*audioOutput, error) {
	cc, err := openDecoder(st.params)
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		cc.Free()
		return nil, fmt.Errorf("audio: failed to allocate resampler")
	}
	pcm := newPCMStream()
	return &audioOutput{
		pcm:     pcm,
		gain:    &effects.Volume{Streamer: pcm, Base: 2},
		percent: 100,
		cc:      cc,
		swr:     swr,
		frame:   astiav.AllocFrame(),
	}, nil
}

// start opens the speaker and starts streaming.
func (a *audioOutput) start() error {
	if err := openSpeaker(); err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	a.playing.Store(true)
	speaker.Play(a.gain)
	return nil
}

func (a *audioOutput) setVolume(percent float64) {
	speaker.Lock()
	defer speaker.Unlock()
	a.percent = percent
	a.gain.Volume, a.gain.Silent = volumeLevel(a.percent, a.muted)
}

func (a *audioOutput) setMuted(muted bool) {
	speaker.Lock()
	defer speaker.Unlock()
	a.muted = muted
	a.gain.Volume, a.gain.Silent = volumeLevel(a.percent, a.muted)
}

// volumeLevel maps a volume percentage onto a base-2 gain. Zero percent
// is silence regardless of mute.
func volumeLevel(percent float64, muted bool) (level float64, silent bool) {
	percent = clampVolume(percent)
	if percent == 0 {
		return 0, true
	}
	return math.Log2(percent / 100), muted
}

// setPaused stops the clock; the speaker plays silence meanwhile.
func (a *audioOutput) setPaused(paused bool) { a.pcm.paused.Store(paused) }

// setClock places the clock, e.g. at the first packet's timestamp.
func (a *audioOutput) setClock(t float64) { a.pcm.setTime(t) }

func (a *audioOutput) Time() float64 { return a.pcm.time() }

func (a *audioOutput) IsPlaying() bool {
	return a.playing.Load() && !a.pcm.paused.Load()
}

// markEOF records that no more samples will be queued.
func (a *audioOutput) markEOF() { a.eof.Store(true) }

// exhausted reports whether the stream ended and every queued sample has
// been played. The clock no longer advances after that.
func (a *audioOutput) exhausted() bool {
	return a.eof.Load() && a.pcm.buffered() == 0
}

// decode queues the samples of pkt for playback. Frames that cannot be
// resampled are skipped.
func (a *audioOutput) decode(pkt *astiav.Packet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errDecoderClosed
	}
	err := receiveAll(a.cc, pkt, a.frame, func(f *astiav.Frame) error {
		a.resample(f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	return nil
}

func (a *audioOutput) resample(f *astiav.Frame) {
	out := astiav.AllocFrame()
	defer out.Free()
	out.SetSampleFormat(astiav.SampleFormatS16)
	out.SetSampleRate(AudioSampleRate)
	out.SetChannelLayout(astiav.ChannelLayoutStereo)
	out.SetNbSamples(f.NbSamples())
	if err := out.AllocBuffer(0); err != nil {
		return
	}
	if err := a.swr.ConvertFrame(f, out); err != nil {
		return
	}
	plane, err := out.Data().Bytes(0)
	size := out.NbSamples() * bytesPerSample
	if err != nil || len(plane) < size {
		return
	}
	a.pcm.write(plane[:size])
}

func (a *audioOutput) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	if a.playing.Swap(false) {
		speaker.Clear()
	}
	a.frame.Free()
	a.swr.Free()
	a.cc.Free()
}
