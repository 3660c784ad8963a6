package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the progress view key bindings.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Follow key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "browse up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "browse down"),
	),
	Follow: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "follow"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// keyBarText renders the key hints for the current state.
func keyBarText(done bool) string {
	if done {
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":exit")
	}
	return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
		keyStyle.Render("f") + keyDescStyle.Render(":follow") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":abort")
}
