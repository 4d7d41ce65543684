// Command vlayerctl is a terminal remote control for a running vlayer.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/njyeung/vlayer/internal/config"
	"github.com/njyeung/vlayer/tui"
)

func main() {
	_ = config.LoadEnv(".env")
	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	socket := cfg.Socket
	if len(os.Args) > 1 {
		socket = os.Args[1]
	}

	p := tea.NewProgram(tui.NewModel(socket, tui.DialIPC), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
