package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PrevFrame key.Binding
	NextFrame key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Focus     key.Binding
	FocusBack key.Binding
	Toggle    key.Binding
	Enter     key.Binding
	Cancel    key.Binding
	PrevPage  key.Binding
	NextPage  key.Binding
	Detect    key.Binding
	AutoMode  key.Binding
	Save      key.Binding
	Delete    key.Binding
	Export    key.Binding
	Label     key.Binding
	Retrans   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		PrevFrame: key.NewBinding(key.WithKeys(","), key.WithHelp(",", "prev frame")),
		NextFrame: key.NewBinding(key.WithKeys("."), key.WithHelp(".", "next frame")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Focus:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next pane")),
		FocusBack: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev pane")),
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		PrevPage:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
		NextPage:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
		Detect:    key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "detect frame")),
		AutoMode:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto mode")),
		Save:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save crops")),
		Delete:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete annotations")),
		Export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Label:     key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "edit label")),
		Retrans:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "re-transcribe")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevFrame, k.NextFrame, k.Focus, k.Save, k.Export, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevFrame, k.NextFrame, k.Detect, k.AutoMode},
		{k.Focus, k.FocusBack, k.Up, k.Down, k.Left, k.Right},
		{k.Toggle, k.Enter, k.PrevPage, k.NextPage},
		{k.Save, k.Delete, k.Label, k.Export, k.Retrans},
		{k.Help, k.Quit},
	}
}
