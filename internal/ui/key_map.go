package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter    key.Binding
	back     key.Binding
	tab      key.Binding
	toggle   key.Binding
	next     key.Binding
	prev     key.Binding
	forward  key.Binding
	rewind   key.Binding
	volUp    key.Binding
	volDown  key.Binding
	mute     key.Binding
	shuffle  key.Binding
	repeat   key.Binding
	retry    key.Binding
	batch    key.Binding
	lyrics   key.Binding
	covers   key.Binding
	all      key.Binding
	fetchAll key.Binding
	stop     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		forward:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+5s")),
		rewind:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-5s")),
		volUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		mute:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		shuffle:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		repeat:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		retry:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "retry")),
		batch:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "batch jobs")),
		lyrics:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "lyrics")),
		covers:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "covers")),
		all:      key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "all")),
		fetchAll: key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "fetch-all")),
		stop:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop polling")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.tab, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.enter, k.toggle, k.next, k.prev},
		{k.forward, k.rewind, k.volUp, k.volDown},
		{k.mute, k.shuffle, k.repeat, k.retry},
		{k.batch, k.tab, k.back, k.quit},
	}
}
