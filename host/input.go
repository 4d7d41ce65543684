package host

import (
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// debouncer turns a stream of size changes into one live resize. SDL only
// reports sizes, so the first change begins the resize and a quiet period
// ends it.
type debouncer struct {
	quiet  time.Duration
	active bool
	last   time.Time
}

// changed records a size change and reports whether a live resize began.
func (d *debouncer) changed(now time.Time) bool {
	d.last = now
	if d.active {
		return false
	}
	d.active = true
	return true
}

// tick reports whether the live resize just ended.
func (d *debouncer) tick(now time.Time) bool {
	if !d.active || now.Sub(d.last) < d.quiet {
		return false
	}
	d.active = false
	return true
}

var namedKeys = map[sdl.Keycode]string{
	sdl.K_SPACE:     "SPACE",
	sdl.K_ESCAPE:    "ESC",
	sdl.K_RETURN:    "ENTER",
	sdl.K_TAB:       "TAB",
	sdl.K_BACKSPACE: "BS",
	sdl.K_LEFT:      "LEFT",
	sdl.K_RIGHT:     "RIGHT",
	sdl.K_UP:        "UP",
	sdl.K_DOWN:      "DOWN",
	sdl.K_PAGEUP:    "PGUP",
	sdl.K_PAGEDOWN:  "PGDWN",
	sdl.K_HOME:      "HOME",
	sdl.K_END:       "END",

	sdl.K_AUDIOPLAY: "PLAYPAUSE",
	sdl.K_AUDIOSTOP: "STOP",
	sdl.K_AUDIOMUTE: "MUTE",
	sdl.K_AUDIONEXT: "NEXT",
	sdl.K_AUDIOPREV: "PREV",
}

// keyName returns the input binding name of a key: printable ASCII keys are
// their character, others have upper-case names.
func keyName(sym sdl.Keycode) (string, bool) {
	if name, ok := namedKeys[sym]; ok {
		return name, true
	}
	if sym > ' ' && sym <= '~' {
		return string(rune(sym)), true
	}
	if sym >= sdl.K_F1 && sym <= sdl.K_F12 {
		return fmt.Sprintf("F%d", sym-sdl.K_F1+1), true
	}
	return "", false
}
