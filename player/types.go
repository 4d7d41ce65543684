package player

import (
	"errors"

	"github.com/asticode/go-astiav"
)

func init() {
	// FFmpeg diagnostics would corrupt the terminal status line.
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

// Clock is a master clock frames are presented against.
type Clock interface {
	// Time is the playback position in seconds.
	Time() float64

	// IsPlaying reports whether the clock advances.
	IsPlaying() bool
}

// Frame is a decoded video frame, RGB24 with no row padding.
type Frame struct {
	RGB           []byte
	Width, Height int
	PTS           float64 // seconds
	Duration      float64 // seconds, 0 when unknown
}

const (
	// SyncThreshold is how far ahead of the master clock a frame may be
	// presented.
	SyncThreshold = 0.005

	// AudioSampleRate is the speaker rate every audio stream is resampled
	// to.
	AudioSampleRate = 44100

	// MaxQueuedFrames bounds decoded frames waiting for a refresh.
	MaxQueuedFrames = 3

	// MaxTextureSize bounds either side of an uploaded frame.
	MaxTextureSize = 4096

	// avTimeBase is AV_TIME_BASE: container durations are microseconds.
	avTimeBase = 1e6
)

var (
	ErrShutdown       = errors.New("engine is shut down")
	ErrNoVideo        = errors.New("no video stream found")
	ErrInitialized    = errors.New("engine already initialized")
	ErrNotInitialized = errors.New("engine not initialized")
	ErrUnknownOption  = errors.New("unknown option")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadValue       = errors.New("invalid value")
	ErrNoRenderer     = errors.New("no render context for this video output")
	ErrUnknownProp    = errors.New("property not found")
	ErrUnavailable    = errors.New("property unavailable")
)
