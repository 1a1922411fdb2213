// Package ui provides the Bubble Tea dashboard for the funding scanner.
package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the dashboard.
type KeyMap struct {
	Quit    key.Binding
	Rescan  key.Binding
	Ranking key.Binding
	Clear   key.Binding
	Help    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Ranking: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "toggle vol-adjusted ranking"),
		),
		Clear: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "clear errors"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Rescan, k.Ranking, k.Help}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Rescan},
		{k.Ranking, k.Clear, k.Help},
	}
}
