package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/njyeung/vlayer/render"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Title != DefaultTitle || cfg.Socket != DefaultSocket || cfg.VO != DefaultVO {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.DisplayFPS != 60 || !cfg.Terminal || cfg.LogLevel != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Width != 0 || cfg.Height != 0 {
		t.Errorf("size = %dx%d, want window default", cfg.Width, cfg.Height)
	}
	if cfg.AWS.Complete() {
		t.Error("AWS credentials complete without any set")
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"VLAYER_TITLE":          "demo",
		"VLAYER_WIDTH":          "800",
		"VLAYER_HEIGHT":         "600",
		"VLAYER_SOCKET":         "/run/v.sock",
		"VLAYER_CONFIG_DIR":     "/etc/vlayer",
		"VLAYER_VO":             "null",
		"VLAYER_DISPLAY_FPS":    "144",
		"VLAYER_TERMINAL":       "no",
		"AWS_DEFAULT_REGION":    "us-east-1",
		"AWS_ACCESS_KEY_ID":     "id",
		"AWS_SECRET_ACCESS_KEY": "secret",
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := render.Options{
		{Name: "terminal", Value: "no"},
		{Name: "input-media-keys", Value: "yes"},
		{Name: "input-ipc-server", Value: "/run/v.sock"},
		{Name: "input-default-bindings", Value: "yes"},
		{Name: "config", Value: "yes"},
		{Name: "config-dir", Value: "/etc/vlayer"},
		{Name: "vo", Value: "null"},
		{Name: "display-fps", Value: "144"},
	}
	if diff := cmp.Diff(want, cfg.EngineOptions()); diff != "" {
		t.Errorf("EngineOptions mismatch (-want +got):\n%s", diff)
	}
	if cfg.Title != "demo" || cfg.Width != 800 || cfg.Height != 600 {
		t.Errorf("window = %q %dx%d", cfg.Title, cfg.Width, cfg.Height)
	}
	if !cfg.AWS.Complete() {
		t.Error("AWS credentials incomplete")
	}
}

func TestFromEnvErrors(t *testing.T) {
	for _, m := range []map[string]string{
		{"VLAYER_WIDTH": "wide"},
		{"VLAYER_HEIGHT": "-1"},
		{"VLAYER_DISPLAY_FPS": "0"},
		{"VLAYER_TERMINAL": "maybe"},
	} {
		if _, err := FromEnv(env(m)); err == nil {
			t.Errorf("FromEnv(%v) succeeded", m)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VLAYER_TITLE=from-file\nVLAYER_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VLAYER_TITLE", "")
	os.Unsetenv("VLAYER_TITLE")
	t.Setenv("VLAYER_LOG_LEVEL", "warn")

	if err := LoadEnv(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Title != "from-file" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want environment to win", cfg.LogLevel)
	}

	if err := LoadEnv(filepath.Join(dir, "missing.env")); err == nil {
		t.Error("LoadEnv(missing) succeeded")
	}
}
