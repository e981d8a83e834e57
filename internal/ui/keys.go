package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Open     key.Binding
	Back     key.Binding
	Power    key.Binding
	Toggle   key.Binding
	Scan     key.Binding
	NewGroup key.Binding
	Rename   key.Binding
	Delete   key.Binding
	Remove   key.Binding
	Label    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "decrease")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "increase")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open light")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Power:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "power")),
		Toggle:   key.NewBinding(key.WithKeys(" ", "a"), key.WithHelp("space", "add/remove")),
		Scan:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scan")),
		NewGroup: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new group")),
		Rename:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete group")),
		Remove:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove light")),
		Label:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit label")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Scan, k.Power, k.Open, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back},
		{k.Scan, k.Toggle, k.Power, k.Remove},
		{k.NewGroup, k.Rename, k.Delete, k.Label},
		{k.Left, k.Right, k.Help, k.Quit},
	}
}
