package player

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"
)

const statusInterval = 250 * time.Millisecond

var statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

// statusLine is the one-line playback status written to the terminal with
// terminal=yes.
type statusLine struct {
	mu    sync.Mutex
	w     io.Writer
	width func() int
	last  time.Time
	shown bool
}

func newStatusLine(f *os.File) *statusLine {
	fd := int(f.Fd())
	return &statusLine{
		w: f,
		width: func() int {
			cols, _, err := terminalSize(fd)
			if err != nil {
				return 0
			}
			return cols
		},
	}
}

// update redraws the line, at most once per statusInterval.
func (s *statusLine) update(now time.Time, pos, dur float64, paused bool, drops uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shown && now.Sub(s.last) < statusInterval {
		return
	}
	s.last = now
	s.shown = true

	style := statusStyle
	if w := s.width(); w > 1 {
		style = style.MaxWidth(w - 1)
	}
	line := style.Render(formatStatus(pos, dur, paused, drops))
	fmt.Fprintf(s.w, "\r%s\x1b[K", line)
}

// clear erases the line.
func (s *statusLine) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.shown {
		return
	}
	s.shown = false
	fmt.Fprint(s.w, "\r\x1b[K")
}

// formatStatus renders "AV: 00:00:12 / 00:01:30 (Paused) Dropped: 3".
func formatStatus(pos, dur float64, paused bool, drops uint64) string {
	line := fmt.Sprintf("AV: %s / %s", formatClock(pos), formatClock(dur))
	if paused {
		line += " (Paused)"
	}
	if drops > 0 {
		line += fmt.Sprintf(" Dropped: %d", drops)
	}
	return line
}

// formatClock renders seconds as HH:MM:SS.
func formatClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	t := int(sec)
	return fmt.Sprintf("%02d:%02d:%02d", t/3600, t/60%60, t%60)
}

// terminalSize returns the terminal dimensions in cells
func terminalSize(fd int) (cols, rows int, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}
