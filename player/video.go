package player

import (
	"errors"
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
)

var errDecoderClosed = errors.New("decoder closed")

// frameDecoder turns video packets into RGB24 frames sized for upload as
// a single texture.
type frameDecoder struct {
	stream *streamInfo

	mu     sync.Mutex
	cc     *astiav.CodecContext
	raw    *astiav.Frame
	rgb    *astiav.Frame
	sws    *astiav.SoftwareScaleContext
	closed bool

	srcW, srcH int
	outW, outH int
}

func openFrameDecoder(st *streamInfo) (*frameDecoder, error) {
	cc, err := openDecoder(st.params)
	if err != nil {
		return nil, fmt.Errorf("video: %w", err)
	}
	d := &frameDecoder{
		stream: st,
		cc:     cc,
		raw:    astiav.AllocFrame(),
		rgb:    astiav.AllocFrame(),
		srcW:   st.params.Width(),
		srcH:   st.params.Height(),
	}
	d.outW, d.outH = textureSize(d.srcW, d.srcH)
	return d, nil
}

// textureSize clamps a frame size to MaxTextureSize, keeping the aspect ratio.
func textureSize(w, h int) (int, int) {
	if w <= MaxTextureSize && h <= MaxTextureSize {
		return w, h
	}
	return fitSize(w, h, MaxTextureSize, MaxTextureSize)
}

// sourceSize is the coded size of the stream.
func (d *frameDecoder) sourceSize() (int, int) { return d.srcW, d.srcH }

// decode returns the frames produced by pkt. A nil packet drains the
// decoder at end of stream.
func (d *frameDecoder) decode(pkt *astiav.Packet) ([]*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errDecoderClosed
	}

	var dur float64
	if pkt != nil {
		dur = d.stream.seconds(pkt.Duration())
	}
	var out []*Frame
	err := receiveAll(d.cc, pkt, d.raw, func(f *astiav.Frame) error {
		frame, err := d.toRGB(f, dur)
		if err != nil {
			return err
		}
		out = append(out, frame)
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("video: %w", err)
	}
	return out, nil
}

// toRGB scales f into the shared RGB frame and copies the pixels out.
func (d *frameDecoder) toRGB(f *astiav.Frame, dur float64) (*Frame, error) {
	if d.sws == nil {
		if err := d.initScaler(); err != nil {
			return nil, err
		}
	}
	if err := d.sws.ScaleFrame(f, d.rgb); err != nil {
		return nil, fmt.Errorf("failed to scale frame: %w", err)
	}
	pix, err := d.rgb.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("failed to read RGB plane: %w", err)
	}
	return &Frame{
		RGB:      append([]byte(nil), pix...),
		Width:    d.outW,
		Height:   d.outH,
		PTS:      d.stream.seconds(f.Pts()),
		Duration: dur,
	}, nil
}

// initScaler is deferred to the first frame: the decoder's pixel format is
// only reliable once it has decoded something.
func (d *frameDecoder) initScaler() error {
	if d.outW == 0 || d.outH == 0 {
		return errors.New("video has no size")
	}
	sws, err := astiav.CreateSoftwareScaleContext(
		d.srcW, d.srcH, d.cc.PixelFormat(),
		d.outW, d.outH, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("failed to create scaler: %w", err)
	}
	d.rgb.SetWidth(d.outW)
	d.rgb.SetHeight(d.outH)
	d.rgb.SetPixelFormat(astiav.PixelFormatRgb24)
	if err := d.rgb.AllocBuffer(1); err != nil {
		sws.Free()
		return fmt.Errorf("failed to allocate RGB frame: %w", err)
	}
	d.sws = sws
	return nil
}

func (d *frameDecoder) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.sws != nil {
		d.sws.Free()
	}
	d.rgb.Free()
	d.raw.Free()
	d.cc.Free()
}
