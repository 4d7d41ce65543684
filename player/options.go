package player

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// settings holds every option the engine understands.
type settings struct {
	terminal        bool
	mediaKeys       bool
	ipcServer       string
	defaultBindings bool
	config          bool
	configDir       string
	vo              string
	displayFPS      float64
	idle            bool
	loopFile        bool
	mute            bool
	volume          float64
	pause           bool
	ao              string
}

func defaultSettings() settings {
	return settings{
		terminal:        false,
		defaultBindings: true,
		config:          false,
		configDir:       "~/.config/vlayer",
		vo:              "opengl-cb",
		displayFPS:      60,
		volume:          100,
		ao:              "auto",
	}
}

// set applies a single option. Option names follow the engine's
// configuration protocol.
func (s *settings) set(name, value string) error {
	var err error
	switch name {
	case "terminal":
		err = setFlag(&s.terminal, value)
	case "input-media-keys":
		err = setFlag(&s.mediaKeys, value)
	case "input-ipc-server":
		s.ipcServer = expandHome(value)
	case "input-default-bindings":
		err = setFlag(&s.defaultBindings, value)
	case "config":
		err = setFlag(&s.config, value)
	case "config-dir":
		s.configDir = value
	case "vo":
		switch value {
		case "opengl-cb", "null":
			s.vo = value
		default:
			return fmt.Errorf("%w: vo=%q", ErrBadValue, value)
		}
	case "display-fps":
		var fps float64
		fps, err = strconv.ParseFloat(value, 64)
		if err == nil && fps <= 0 {
			err = fmt.Errorf("must be positive")
		}
		if err == nil {
			s.displayFPS = fps
		}
	case "idle":
		err = setFlag(&s.idle, value)
	case "loop-file":
		switch value {
		case "inf", "yes":
			s.loopFile = true
		case "no":
			s.loopFile = false
		default:
			err = fmt.Errorf("expected inf or no")
		}
	case "mute":
		err = setFlag(&s.mute, value)
	case "volume":
		var v float64
		v, err = parseVolume(value)
		if err == nil {
			s.volume = v
		}
	case "pause":
		err = setFlag(&s.pause, value)
	case "ao":
		switch value {
		case "auto", "null":
			s.ao = value
		default:
			err = fmt.Errorf("expected auto or null")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrBadValue, name, value, err)
	}
	return nil
}

func (s *settings) configPath(name string) string {
	return filepath.Join(expandHome(s.configDir), name)
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "true", "1", "on":
		return true, nil
	case "no", "false", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("expected yes or no")
}

func setFlag(dst *bool, v string) error {
	b, err := parseFlag(v)
	if err == nil {
		*dst = b
	}
	return err
}

func parseVolume(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return clampVolume(f), nil
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 100)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
