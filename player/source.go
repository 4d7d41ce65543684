package player

import (
	"errors"
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
)

var errSourceClosed = errors.New("media source closed")

type streamKind int

const (
	kindOther streamKind = iota
	kindVideo
	kindAudio
)

// streamInfo describes the first stream of a kind in a container.
type streamInfo struct {
	index    int
	params   *astiav.CodecParameters
	timeBase astiav.Rational
}

// seconds converts a timestamp in the stream's time base.
func (s *streamInfo) seconds(ts int64) float64 {
	return float64(ts) * float64(s.timeBase.Num()) / float64(s.timeBase.Den())
}

// mediaSource reads packets from one container.
type mediaSource struct {
	mu     sync.Mutex
	fc     *astiav.FormatContext
	video  *streamInfo
	audio  *streamInfo
	closed bool
}

// openSource opens url (a local path or an http(s) URL) and selects the
// first video and audio streams. Media without video is refused.
func openSource(url string) (*mediaSource, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("failed to allocate format context")
	}
	if err := fc.OpenInput(url, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	src := &mediaSource{fc: fc}
	if err := fc.FindStreamInfo(nil); err != nil {
		src.close()
		return nil, fmt.Errorf("failed to find stream info: %w", err)
	}

	for _, st := range fc.Streams() {
		info := &streamInfo{index: st.Index(), params: st.CodecParameters(), timeBase: st.TimeBase()}
		switch info.params.MediaType() {
		case astiav.MediaTypeVideo:
			if src.video == nil {
				src.video = info
			}
		case astiav.MediaTypeAudio:
			if src.audio == nil {
				src.audio = info
			}
		}
	}
	if src.video == nil {
		src.close()
		return nil, ErrNoVideo
	}
	return src, nil
}

// read returns the next packet and the kind of stream it belongs to. The
// caller owns the packet. astiav.ErrEof marks the end of the container.
func (m *mediaSource) read() (*astiav.Packet, streamKind, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, kindOther, errSourceClosed
	}

	pkt := astiav.AllocPacket()
	if err := m.fc.ReadFrame(pkt); err != nil {
		pkt.Free()
		return nil, kindOther, err
	}
	switch pkt.StreamIndex() {
	case m.video.index:
		return pkt, kindVideo, nil
	case m.audioIndex():
		return pkt, kindAudio, nil
	}
	return pkt, kindOther, nil
}

func (m *mediaSource) audioIndex() int {
	if m.audio == nil {
		return -1
	}
	return m.audio.index
}

// duration is the container duration in seconds, 0 when unknown.
func (m *mediaSource) duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0
	}
	if us := m.fc.Duration(); us > 0 {
		return float64(us) / avTimeBase
	}
	return 0
}

func (m *mediaSource) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.fc.CloseInput()
	m.fc.Free()
}

// openDecoder opens a decoder for a stream's codec.
func openDecoder(params *astiav.CodecParameters) (*astiav.CodecContext, error) {
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("no decoder for %s", params.CodecID())
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("failed to allocate codec context")
	}
	if err := params.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("failed to copy codec parameters: %w", err)
	}
	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return nil, fmt.Errorf("failed to open %s decoder: %w", params.CodecID(), err)
	}
	return cc, nil
}

// receiveAll sends pkt (nil flushes) and hands every frame the decoder
// produces to fn. The frame is unreferenced after fn returns.
func receiveAll(cc *astiav.CodecContext, pkt *astiav.Packet, frame *astiav.Frame, fn func(*astiav.Frame) error) error {
	if err := cc.SendPacket(pkt); err != nil && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("failed to send packet: %w", err)
	}
	for {
		err := cc.ReceiveFrame(frame)
		if errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive frame: %w", err)
		}
		err = fn(frame)
		frame.Unref()
		if err != nil {
			return err
		}
	}
}
