package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	up         key.Binding
	down       key.Binding
	left       key.Binding
	right      key.Binding
	enter      key.Binding
	esc        key.Binding
	tab        key.Binding
	quit       key.Binding
	refresh    key.Binding
	copyID     key.Binding
	copyPubkey key.Binding
	take       key.Binding
	fiatSent   key.Binding
	release    key.Binding
	cancel     key.Binding
	dispute    key.Binding
	settle     key.Binding
	party      key.Binding
	markRead   key.Binding
	write      key.Binding
	attach     key.Binding
}

var keys = keyMap{
	up:         key.NewBinding(key.WithKeys("up", "k")),
	down:       key.NewBinding(key.WithKeys("down", "j")),
	left:       key.NewBinding(key.WithKeys("left", "h")),
	right:      key.NewBinding(key.WithKeys("right", "l")),
	enter:      key.NewBinding(key.WithKeys("enter")),
	esc:        key.NewBinding(key.WithKeys("esc")),
	tab:        key.NewBinding(key.WithKeys("tab")),
	quit:       key.NewBinding(key.WithKeys("q", "ctrl+c")),
	refresh:    key.NewBinding(key.WithKeys("R")),
	copyID:     key.NewBinding(key.WithKeys("c")),
	copyPubkey: key.NewBinding(key.WithKeys("p")),
	take:       key.NewBinding(key.WithKeys("t")),
	fiatSent:   key.NewBinding(key.WithKeys("f")),
	release:    key.NewBinding(key.WithKeys("r")),
	cancel:     key.NewBinding(key.WithKeys("x")),
	dispute:    key.NewBinding(key.WithKeys("d")),
	settle:     key.NewBinding(key.WithKeys("s")),
	party:      key.NewBinding(key.WithKeys("b")),
	markRead:   key.NewBinding(key.WithKeys("m")),
	write:      key.NewBinding(key.WithKeys("w")),
	attach:     key.NewBinding(key.WithKeys("a")),
}
