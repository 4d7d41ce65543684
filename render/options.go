package render

import "strconv"

// Engine option names understood by the bridge's configuration protocol.
const (
	OptTerminal        = "terminal"
	OptMediaKeys       = "input-media-keys"
	OptIPCServer       = "input-ipc-server"
	OptDefaultBindings = "input-default-bindings"
	OptConfig          = "config"
	OptConfigDir       = "config-dir"
	OptVideoOutput     = "vo"
	OptDisplayFPS      = "display-fps"
)

// VideoOutputCallback is the video output that hands frames to the host
// through a RenderContext.
const VideoOutputCallback = "opengl-cb"

// Option is a single engine option.
type Option struct {
	Name  string
	Value string
}

// Options is an ordered option list. Options are applied in order, so a
// later entry overrides an earlier one with the same name.
type Options []Option

// Set appends an option.
func (o Options) Set(name, value string) Options {
	return append(o, Option{Name: name, Value: value})
}

// Lookup returns the last value set for name.
func (o Options) Lookup(name string) (string, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if o[i].Name == name {
			return o[i].Value, true
		}
	}
	return "", false
}

// DisplayFPS returns the display-fps option, or fallback when it is unset
// or not a positive number.
func (o Options) DisplayFPS(fallback float64) float64 {
	v, ok := o.Lookup(OptDisplayFPS)
	if !ok {
		return fallback
	}
	fps, err := strconv.ParseFloat(v, 64)
	if err != nil || fps <= 0 {
		return fallback
	}
	return fps
}

// YesNo formats a boolean the way engine options expect it.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
