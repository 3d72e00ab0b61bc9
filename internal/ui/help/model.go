package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/keys"
	"github.com/nhle/ambassador-portal/internal/theme"
)

// Context selects which bindings the help overlay lists.
type Context int

const (
	ContextTaskList Context = iota
	ContextTaskDetail
	ContextNotifications
)

// contextKeys adapts the global keymap to the bindings that apply in
// one view.
type contextKeys struct {
	keys *keys.KeyMap
	ctx  Context
}

func (c contextKeys) ShortHelp() []key.Binding {
	k := c.keys
	switch c.ctx {
	case ContextTaskDetail:
		return []key.Binding{k.Submit, k.EditSubmit, k.Back, k.Help}
	case ContextNotifications:
		return []key.Binding{k.Up, k.Down, k.MarkRead, k.MarkAllRead, k.Back}
	}
	return k.ShortHelp()
}

func (c contextKeys) FullHelp() [][]key.Binding {
	k := c.keys
	switch c.ctx {
	case ContextTaskDetail:
		return [][]key.Binding{
			{k.Up, k.Down, k.Back},
			{k.Submit, k.EditSubmit},
			{k.Notifications, k.Help, k.Quit},
		}
	case ContextNotifications:
		return [][]key.Binding{
			{k.Up, k.Down, k.Back},
			{k.MarkRead, k.MarkAllRead, k.Refresh},
		}
	}
	return k.FullHelp()
}

// Model is the help overlay view.
type Model struct {
	keys   contextKeys
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(km *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   contextKeys{keys: km},
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetContext switches the listed bindings.
func (m *Model) SetContext(ctx Context) {
	m.keys.ctx = ctx
}

// ShortView renders the one-line hints for the status bar.
func (m Model) ShortView() string {
	m.help.ShowAll = false
	return m.help.View(m.keys)
}

// View renders the help overlay.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.help.View(m.keys))

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
