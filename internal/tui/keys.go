package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Prev   key.Binding
	Next   key.Binding
	Select key.Binding
	Toggle key.Binding
	Reload key.Binding
	Close  key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Prev:   key.NewBinding(key.WithKeys("left", "up", "h", "k"), key.WithHelp("←/→", "cadence")),
		Next:   key.NewBinding(key.WithKeys("right", "down", "l", "j")),
		Select: key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "select")),
		Toggle: key.NewBinding(key.WithKeys("enter", "s"), key.WithHelp("enter", "start/stop")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Close:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "close")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Select, k.Toggle, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Select, k.Toggle},
		{k.Reload, k.Close, k.Help, k.Quit},
	}
}
