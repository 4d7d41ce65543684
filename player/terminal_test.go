package player

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatStatus(t *testing.T) {
	tests := []struct {
		pos, dur float64
		paused   bool
		drops    uint64
		want     string
	}{
		{12.4, 90, false, 0, "AV: 00:00:12 / 00:01:30"},
		{12, 90, true, 3, "AV: 00:00:12 / 00:01:30 (Paused) Dropped: 3"},
		{3725, 7200, false, 1, "AV: 01:02:05 / 02:00:00 Dropped: 1"},
		{-1, 0, false, 0, "AV: 00:00:00 / 00:00:00"},
	}
	for _, tt := range tests {
		if got := formatStatus(tt.pos, tt.dur, tt.paused, tt.drops); got != tt.want {
			t.Errorf("formatStatus = %q, want %q", got, tt.want)
		}
	}
}

func TestStatusLineThrottles(t *testing.T) {
	var buf bytes.Buffer
	s := &statusLine{w: &buf, width: func() int { return 0 }}

	start := time.Unix(0, 0)
	s.update(start, 1, 10, false, 0)
	s.update(start.Add(100*time.Millisecond), 1.1, 10, false, 0)
	s.update(start.Add(statusInterval), 1.25, 10, true, 0)

	if n := strings.Count(buf.String(), "\r"); n != 2 {
		t.Errorf("redraws = %d, want 2: %q", n, buf.String())
	}
	if !strings.Contains(buf.String(), "(Paused)") {
		t.Errorf("last redraw missing pause state: %q", buf.String())
	}

	buf.Reset()
	s.clear()
	s.clear()
	if buf.String() != "\r\x1b[K" {
		t.Errorf("clear wrote %q", buf.String())
	}
}

func TestStatusLineTruncatesToWidth(t *testing.T) {
	var buf bytes.Buffer
	s := &statusLine{w: &buf, width: func() int { return 12 }}
	s.update(time.Unix(0, 0), 12, 90, true, 3)

	line := strings.TrimSuffix(strings.TrimPrefix(buf.String(), "\r"), "\x1b[K")
	if strings.Contains(line, "Dropped") {
		t.Errorf("line not truncated: %q", line)
	}
}
