// Package config loads process configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/njyeung/vlayer/render"
)

const (
	DefaultTitle  = "vlayer"
	DefaultSocket = "/tmp/vlayersocket"
	DefaultVO     = render.VideoOutputCallback
)

// Config is the process configuration.
type Config struct {
	Title      string
	Width      int
	Height     int
	Socket     string
	ConfigDir  string
	CacheDir   string
	VO         string
	DisplayFPS float64
	LogLevel   string
	Terminal   bool

	AWS AWS
}

// AWS holds the credentials used to fetch s3:// media.
type AWS struct {
	Region    string
	AccessKey string
	SecretKey string
}

// Complete reports whether every credential is set.
func (a AWS) Complete() bool {
	return a.Region != "" && a.AccessKey != "" && a.SecretKey != ""
}

// LoadEnv reads envFile into the environment without overriding variables
// that are already set. A missing file is returned as an error the caller
// may treat as a warning.
func LoadEnv(envFile string) error {
	return godotenv.Load(envFile)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	home, _ := os.UserHomeDir()
	cfg := Config{
		Title:      or(getenv("VLAYER_TITLE"), DefaultTitle),
		Socket:     or(getenv("VLAYER_SOCKET"), DefaultSocket),
		ConfigDir:  or(getenv("VLAYER_CONFIG_DIR"), filepath.Join(home, ".config", "vlayer")),
		CacheDir:   or(getenv("VLAYER_CACHE_DIR"), filepath.Join(os.TempDir(), "vlayer-cache")),
		VO:         or(getenv("VLAYER_VO"), DefaultVO),
		DisplayFPS: 60,
		LogLevel:   or(getenv("VLAYER_LOG_LEVEL"), "info"),
		Terminal:   true,
		AWS: AWS{
			Region:    getenv("AWS_DEFAULT_REGION"),
			AccessKey: getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY"),
		},
	}

	var err error
	if cfg.Width, err = dimension(getenv, "VLAYER_WIDTH"); err != nil {
		return Config{}, err
	}
	if cfg.Height, err = dimension(getenv, "VLAYER_HEIGHT"); err != nil {
		return Config{}, err
	}
	if v := getenv("VLAYER_DISPLAY_FPS"); v != "" {
		fps, err := strconv.ParseFloat(v, 64)
		if err != nil || fps <= 0 {
			return Config{}, fmt.Errorf("VLAYER_DISPLAY_FPS: invalid rate %q", v)
		}
		cfg.DisplayFPS = fps
	}
	if v := getenv("VLAYER_TERMINAL"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("VLAYER_TERMINAL: %w", err)
		}
		cfg.Terminal = b
	}
	return cfg, nil
}

// EngineOptions returns the options the engine is created with, in the
// order they are applied.
func (c Config) EngineOptions() render.Options {
	var o render.Options
	o = o.Set(render.OptTerminal, render.YesNo(c.Terminal))
	o = o.Set(render.OptMediaKeys, "yes")
	o = o.Set(render.OptIPCServer, c.Socket)
	o = o.Set(render.OptDefaultBindings, "yes")
	o = o.Set(render.OptConfig, "yes")
	o = o.Set(render.OptConfigDir, c.ConfigDir)
	o = o.Set(render.OptVideoOutput, c.VO)
	o = o.Set(render.OptDisplayFPS, strconv.FormatFloat(c.DisplayFPS, 'f', -1, 64))
	return o
}

func dimension(getenv func(string) string, key string) (int, error) {
	v := getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid size %q", key, v)
	}
	return n, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "true", "1", "on":
		return true, nil
	case "no", "false", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q", v)
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
