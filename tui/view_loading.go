package tui

import (
	"fmt"
	"strings"
)

func (m Model) viewConnecting() string {
	if m.width == 0 || m.height == 0 {
		return fmt.Sprintf("\n\n   %s Connecting to %s...\n\n", m.spinner.View(), m.socket)
	}

	return renderConnectingScreen(m.width, m.height, m.spinner.View()+" connecting to "+m.socket)
}

func renderConnectingScreen(width, height int, status string) string {
	logo := []string{
		"__   ___                       ",
		"\\ \\ / / |__ _ _  _ ___ _ _   ",
		" \\ V /| / _` | || / -_) '_|  ",
		"  \\_/ |_\\__,_|\\_, \\___|_|    ",
		"              |__/              ",
		"",
		status,
	}

	blockHeight := len(logo)
	startRow := (height - blockHeight) / 2

	var b strings.Builder
	for y := range height {
		var line string
		switch {
		case y >= startRow && y < startRow+len(logo):
			text := logo[y-startRow]
			pad := width - len(text)
			if pad < 0 {
				pad = 0
				text = text[:width]
			}
			left := pad / 2
			right := pad - left
			line = strings.Repeat(" ", left) + titleStyle.Render(text) + strings.Repeat(" ", right)
		default:
			line = strings.Repeat(" ", width)
		}
		b.WriteString(line)
		if y < height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
