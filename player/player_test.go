package player

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/njyeung/vlayer/render"
)

func newTestEngine(t *testing.T, opts ...[2]string) *Engine {
	t.Helper()
	e := New()
	for _, o := range opts {
		if err := e.SetOptionString(o[0], o[1]); err != nil {
			t.Fatalf("SetOptionString(%s): %v", o[0], err)
		}
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Destroy)
	return e
}

// drain returns the names of all queued events except log messages.
func drain(e *Engine) []string {
	var names []string
	for {
		ev := e.WaitEvent(0)
		switch ev.Kind {
		case render.EventNone:
			return names
		case render.EventLogMessage:
			continue
		}
		names = append(names, ev.Name)
	}
}

func TestEngineLifecycleErrors(t *testing.T) {
	e := New()
	defer e.Destroy()

	if err := e.Command("stop"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Command before Initialize = %v", err)
	}
	if _, err := e.RenderContext(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RenderContext before Initialize = %v", err)
	}
	if err := e.SetOptionString("bogus", "1"); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown option = %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); !errors.Is(err, ErrInitialized) {
		t.Errorf("second Initialize = %v", err)
	}
	if err := e.SetOptionString("idle", "yes"); !errors.Is(err, ErrInitialized) {
		t.Errorf("option after Initialize = %v", err)
	}
}

func TestEngineRenderContext(t *testing.T) {
	e := newTestEngine(t)
	rc, err := e.RenderContext()
	if err != nil || rc == nil {
		t.Fatalf("RenderContext = %v, %v", rc, err)
	}

	null := newTestEngine(t, [2]string{"vo", "null"})
	if _, err := null.RenderContext(); !errors.Is(err, ErrNoRenderer) {
		t.Errorf("RenderContext with vo=null = %v", err)
	}
}

func TestEngineQuitEmitsOneShutdown(t *testing.T) {
	e := newTestEngine(t)
	wakeups := make(chan struct{}, 8)
	e.SetWakeupCallback(func() {
		select {
		case wakeups <- struct{}{}:
		default:
		}
	})

	if err := e.Command("quit"); err != nil {
		t.Fatal(err)
	}
	if err := e.Command("quit"); !errors.Is(err, ErrShutdown) {
		t.Errorf("second quit = %v", err)
	}
	if err := e.Command("cycle", "pause"); !errors.Is(err, ErrShutdown) {
		t.Errorf("command after shutdown = %v", err)
	}
	select {
	case <-wakeups:
	case <-time.After(5 * time.Second):
		t.Fatal("no wakeup after quit")
	}

	var shutdowns int
	for {
		ev := e.WaitEvent(0)
		if ev.Kind == render.EventNone {
			break
		}
		if ev.Kind == render.EventShutdown {
			shutdowns++
		}
	}
	if shutdowns != 1 {
		t.Errorf("shutdown events = %d, want 1", shutdowns)
	}
}

func TestEnginePropertiesAndCommands(t *testing.T) {
	e := newTestEngine(t, [2]string{"volume", "50"}, [2]string{"idle", "yes"})
	drain(e)

	steps := []struct {
		args   []string
		events []string
	}{
		{[]string{"cycle", "pause"}, []string{"pause", "property-change"}},
		{[]string{"set", "pause", "yes"}, nil},
		{[]string{"set", "pause", "no"}, []string{"unpause", "property-change"}},
		{[]string{"cycle", "mute"}, []string{"property-change"}},
		{[]string{"add", "volume", "-20"}, []string{"property-change"}},
		{[]string{"set", "volume", "200"}, []string{"property-change"}},
		{[]string{"add", "volume", "10"}, nil},
	}
	for _, s := range steps {
		if err := e.Command(s.args...); err != nil {
			t.Fatalf("Command(%v): %v", s.args, err)
		}
		if diff := cmp.Diff(s.events, drain(e)); diff != "" {
			t.Errorf("Command(%v) events mismatch (-want +got):\n%s", s.args, diff)
		}
	}

	props := map[string]any{
		"pause":            false,
		"mute":             true,
		"volume":           100.0,
		"idle-active":      true,
		"frame-drop-count": uint64(0),
	}
	for name, want := range props {
		got, err := e.Property(name)
		if err != nil {
			t.Fatalf("Property(%s): %v", name, err)
		}
		if got != want {
			t.Errorf("Property(%s) = %v, want %v", name, got, want)
		}
	}
	for _, name := range []string{"path", "time-pos", "duration"} {
		if _, err := e.Property(name); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Property(%s) while idle = %v", name, err)
		}
	}
	if _, err := e.Property("nope"); !errors.Is(err, ErrUnknownProp) {
		t.Errorf("unknown property = %v", err)
	}
}

func TestEngineCommandErrors(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		args []string
		want error
	}{
		{nil, ErrUnknownCommand},
		{[]string{"frobnicate"}, ErrUnknownCommand},
		{[]string{"loadfile"}, ErrBadValue},
		{[]string{"loadfile", ""}, ErrBadValue},
		{[]string{"cycle", "volume"}, ErrBadValue},
		{[]string{"set", "pause", "maybe"}, ErrBadValue},
		{[]string{"set", "speed", "2"}, ErrBadValue},
		{[]string{"add", "volume", "lots"}, ErrBadValue},
		{[]string{"add", "mute", "1"}, ErrBadValue},
		{[]string{"keypress"}, ErrBadValue},
	}
	for _, tt := range tests {
		if err := e.Command(tt.args...); !errors.Is(err, tt.want) {
			t.Errorf("Command(%v) = %v, want %v", tt.args, err, tt.want)
		}
	}
}

func TestEngineKeypress(t *testing.T) {
	e := newTestEngine(t, [2]string{"idle", "yes"}, [2]string{"input-media-keys", "yes"})
	drain(e)

	for _, key := range []string{"SPACE", "m", "0", "F12"} {
		if err := e.Command("keypress", key); err != nil {
			t.Fatalf("keypress %s: %v", key, err)
		}
	}
	if !e.paused.Load() || !e.muted.Load() {
		t.Error("SPACE and m did not toggle pause and mute")
	}

	if err := e.Command("keypress", "STOP"); err != nil {
		t.Fatal(err)
	}
	got := drain(e)
	if n := len(got); n == 0 || got[n-1] != "idle" {
		t.Errorf("events after STOP = %v, want trailing idle", got)
	}
}

func TestEngineStopWithoutIdleShutsDown(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Command("stop"); err != nil {
		t.Fatal(err)
	}
	var kinds []render.EventKind
	for {
		ev := e.WaitEvent(0)
		if ev.Kind == render.EventNone {
			break
		}
		if ev.Kind != render.EventLogMessage {
			kinds = append(kinds, ev.Kind)
		}
	}
	if diff := cmp.Diff([]render.EventKind{render.EventShutdown}, kinds); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineLoadfileFailureGoesIdle(t *testing.T) {
	e := newTestEngine(t, [2]string{"idle", "yes"})
	drain(e)

	if err := e.Command("loadfile", "/nonexistent/vlayer-test.mp4"); err != nil {
		t.Fatal(err)
	}
	var got []string
	deadline := time.After(10 * time.Second)
	for len(got) == 0 || got[len(got)-1] != "idle" {
		select {
		case <-deadline:
			t.Fatalf("events = %v, want start-file end-file idle", got)
		default:
		}
		ev := e.WaitEvent(100 * time.Millisecond)
		if ev.Kind == render.EventGeneric {
			got = append(got, ev.Name)
		}
	}
	if diff := cmp.Diff([]string{"start-file", "end-file", "idle"}, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if v, _ := e.Property("idle-active"); v != true {
		t.Errorf("idle-active = %v", v)
	}
}
