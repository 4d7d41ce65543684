package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
)

func (m Model) viewPlaying() string {
	st := m.status
	width := m.width
	if width == 0 {
		width = 80
	}
	padding := "  "

	var b strings.Builder
	b.WriteString("\n")

	name := "(idle)"
	if !st.Idle && st.Path != "" {
		name = filepath.Base(st.Path)
	}
	name = runewidth.Truncate(name, max(width-len(padding)-1, 4), "...")
	b.WriteString(padding + pathStyle.Render(name) + "\n\n")

	var pct float64
	if st.Duration > 0 {
		pct = min(max(st.Pos/st.Duration, 0), 1)
	}
	b.WriteString(padding + m.progress.ViewAs(pct) + "\n")

	clock := formatClock(st.Pos) + " / " + formatClock(st.Duration)
	flags := []string{fmt.Sprintf("vol %d", int(st.Volume))}
	if st.Paused {
		flags = append(flags, "paused")
	}
	if st.Muted {
		flags = append(flags, "muted")
	}
	line := clockStyle.Render(clock) + "   " + flagStyle.Render(strings.Join(flags, "  "))
	if st.Drops > 0 {
		line += "   " + dropStyle.Render(fmt.Sprintf("dropped %d", st.Drops))
	}
	b.WriteString(padding + line + "\n\n")

	if m.notice != "" {
		b.WriteString(padding + errorStyle.Render(m.notice) + "\n")
	} else if m.lastEvent != "" {
		b.WriteString(padding + navStyle.Render("last event: "+m.lastEvent) + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n" + padding + m.help.View(keys))
	return b.String()
}
