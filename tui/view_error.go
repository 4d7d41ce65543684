package tui

import "fmt"

func (m Model) viewError() string {
	return fmt.Sprintf("\n\n   %s\n\n   %s\n",
		errorStyle.Render(m.err.Error()),
		navStyle.Render("Is vlayer running with its control socket at "+m.socket+"? Press q to quit."))
}
