package dashboard

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	NextDevice key.Binding
	PrevDevice key.Binding
	Longer     key.Binding
	Shorter    key.Binding
	Refresh    key.Binding
	Help       key.Binding
	Close      key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	NextDevice: key.NewBinding(
		key.WithKeys("tab", "right", "l"),
		key.WithHelp("tab", "next device"),
	),
	PrevDevice: key.NewBinding(
		key.WithKeys("shift+tab", "left", "h"),
		key.WithHelp("shift+tab", "previous device"),
	),
	Longer: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("up", "longer time range"),
	),
	Shorter: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("down", "shorter time range"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh now"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextDevice, k.Longer, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap for the overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextDevice, k.PrevDevice, k.Longer, k.Shorter},
		{k.Refresh, k.Help, k.Close, k.Quit},
	}
}

// HandleKeyMsg applies a key press. It reports whether the key was bound and
// returns the follow-up command, if any.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	// Help toggle takes priority
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key.Matches(msg, keys.Close) {
		m.showHelp = false
		return true, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return true, tea.Quit

	case key.Matches(msg, keys.Refresh):
		return true, m.refresh()

	case key.Matches(msg, keys.NextDevice):
		if len(m.devices) < 2 {
			return true, nil
		}
		m.selectDevice((m.selected + 1) % len(m.devices))
		return true, m.refresh()

	case key.Matches(msg, keys.PrevDevice):
		if len(m.devices) < 2 {
			return true, nil
		}
		m.selectDevice((m.selected - 1 + len(m.devices)) % len(m.devices))
		return true, m.refresh()

	case key.Matches(msg, keys.Longer):
		if m.rangeIdx >= len(Ranges)-1 {
			return true, nil
		}
		m.rangeIdx++
		return true, m.refresh()

	case key.Matches(msg, keys.Shorter):
		if m.rangeIdx == 0 {
			return true, nil
		}
		m.rangeIdx--
		return true, m.refresh()
	}

	return false, nil
}
