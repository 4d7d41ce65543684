package player

import "maps"

// keyBindings maps a key name to the command it runs.
type keyBindings map[string][]string

var defaultKeyBindings = keyBindings{
	"SPACE": {"cycle", "pause"},
	"p":     {"cycle", "pause"},
	"m":     {"cycle", "mute"},
	"q":     {"quit"},
	"ESC":   {"quit"},
	"9":     {"add", "volume", "-10"},
	"0":     {"add", "volume", "10"},
}

var mediaKeyBindings = keyBindings{
	"PLAY":      {"set", "pause", "no"},
	"PAUSE":     {"set", "pause", "yes"},
	"PLAYPAUSE": {"cycle", "pause"},
	"STOP":      {"stop"},
	"MUTE":      {"cycle", "mute"},
}

// buildBindings layers the enabled binding sets. Later layers win.
func buildBindings(defaults, media bool, user keyBindings) keyBindings {
	b := keyBindings{}
	if defaults {
		maps.Copy(b, defaultKeyBindings)
	}
	if media {
		maps.Copy(b, mediaKeyBindings)
	}
	maps.Copy(b, user)
	return b
}

func (b keyBindings) lookup(key string) ([]string, bool) {
	cmd, ok := b[key]
	return cmd, ok
}
