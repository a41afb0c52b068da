package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings used across the TUI.
type KeyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Refresh  key.Binding

	// Screener filters
	FilterSignal     key.Binding
	FilterConfidence key.Binding
	FilterSector     key.Binding

	Up   key.Binding
	Down key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),

	FilterSignal:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle signal")),
	FilterConfidence: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cycle confidence")),
	FilterSector:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cycle sector")),

	Up:   key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
	Down: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
}
