package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Pause    key.Binding
	Mute     key.Binding
	VolDown  key.Binding
	VolUp    key.Binding
	Stop     key.Binding
	QuitPlay key.Binding
	Help     key.Binding
	Exit     key.Binding
}

var keys = keyMap{
	Pause:    key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause")),
	Mute:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
	VolDown:  key.NewBinding(key.WithKeys("9"), key.WithHelp("9", "volume -")),
	VolUp:    key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "volume +")),
	Stop:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	QuitPlay: key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit player")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Exit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "exit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Mute, k.QuitPlay, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Mute, k.Stop},
		{k.VolDown, k.VolUp},
		{k.QuitPlay, k.Exit, k.Help},
	}
}
