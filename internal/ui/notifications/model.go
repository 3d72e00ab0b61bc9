package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/keys"
	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/notify"
	"github.com/nhle/ambassador-portal/internal/theme"
)

const confirmTimeout = 30 * time.Second

// NoticeMsg carries a rejected optimistic mutation to the UI.
type NoticeMsg struct {
	Notice notify.Notice
}

// ConfirmedMsg is dispatched when a read confirmation has settled.
type ConfirmedMsg struct {
	MutationID string
	Err        error
}

// Model is the notifications dropdown.
type Model struct {
	store  *notify.Store
	keys   *keys.KeyMap
	cursor int
	width  int
	height int
	now    func() time.Time
}

// New creates a dropdown backed by s.
func New(s *notify.Store, k *keys.KeyMap, width, height int) Model {
	return Model{
		store:  s,
		keys:   k,
		width:  width,
		height: height,
		now:    time.Now,
	}
}

// WaitForNotice blocks until the store reports a reverted mutation.
func (m Model) WaitForNotice() tea.Cmd {
	ch := m.store.Notices()
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg{Notice: n}
	}
}

// Fetch reloads the notification set.
func (m Model) Fetch() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
		defer cancel()
		err := s.FetchAll(ctx)
		if err == notify.ErrStaleFetch {
			err = nil
		}
		return ConfirmedMsg{Err: err}
	}
}

// Update handles key presses while the dropdown is open.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	items := m.store.Snapshot().Notifications
	switch {
	case key.Matches(km, m.keys.Back), key.Matches(km, m.keys.Notifications):
		m.store.Close()
		return m, nil
	case key.Matches(km, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case key.Matches(km, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, m.keys.MarkAllRead):
		if mut, ok := m.store.ApplyReadAll(); ok {
			return m, m.confirm(mut)
		}
	case key.Matches(km, m.keys.MarkRead):
		if m.cursor < len(items) {
			if mut, ok := m.store.ApplyRead(items[m.cursor].ID); ok {
				return m, m.confirm(mut)
			}
		}
	}
	return m, nil
}

func (m Model) confirm(mut notify.Mutation) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
		defer cancel()
		return ConfirmedMsg{MutationID: mut.ID, Err: s.Confirm(ctx, mut)}
	}
}

// View renders the dropdown panel.
func (m Model) View() string {
	st := m.store.Snapshot()
	w := m.panelWidth()

	title := lipgloss.NewStyle().Bold(true).Render("Notifications")
	if st.UnreadCount > 0 {
		title += "  " + theme.DimmedStyle.Render("M: Mark all read")
	}
	lines := []string{title, ""}

	switch {
	case st.Loading && len(st.Notifications) == 0:
		lines = append(lines, theme.DimmedStyle.Render("Loading..."))
	case len(st.Notifications) == 0:
		lines = append(lines, theme.DimmedStyle.Render("No notifications yet"))
	default:
		for i, n := range m.visible(st.Notifications) {
			lines = append(lines, m.renderItem(n, i == m.cursor, w-4))
		}
	}

	return theme.DropdownStyle.Width(w).Render(strings.Join(lines, "\n"))
}

// visible clamps the cursor and returns the rows that fit.
func (m *Model) visible(items []model.Notification) []model.Notification {
	if m.cursor >= len(items) {
		m.cursor = len(items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return items
}

func (m Model) renderItem(n model.Notification, selected bool, width int) string {
	kind := theme.KindStyle(n.Kind).Render(strings.ToUpper(string(n.Kind)))
	head := kind + " " + n.Title
	if !n.Read {
		head = lipgloss.NewStyle().Bold(true).Render(head) + " " + theme.UnreadBadgeStyle.Render("New")
	}
	age := theme.DimmedStyle.Render(RelativeTime(n.CreatedAt, m.now()))

	body := n.Body
	if width > 3 && len([]rune(body)) > width {
		body = string([]rune(body)[:width-3]) + "..."
	}

	row := head + "\n" + theme.DimmedStyle.Render(body) + "\n" + age
	if selected {
		return theme.SelectedItemStyle.Render(row)
	}
	return theme.ListItemStyle.Render(row)
}

// SetSize updates the available area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) panelWidth() int {
	w := m.width / 2
	if w < 40 {
		w = 40
	}
	if w > m.width {
		w = m.width
	}
	return w
}

// RelativeTime formats t relative to now: "Just now" under a minute,
// then minutes and hours, then the calendar date.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}
