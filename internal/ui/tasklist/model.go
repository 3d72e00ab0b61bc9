package tasklist

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/keys"
	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/store"
	"github.com/nhle/ambassador-portal/internal/theme"
)

// TasksLoadedMsg is sent when tasks have been loaded from the cache.
type TasksLoadedMsg struct {
	Tasks []model.Task
	Err   error
}

// SelectedTaskMsg is sent when a user selects a task to view details.
type SelectedTaskMsg struct {
	TaskID string
}

// Model is the task list view: an Active tab (deadline ahead) and a
// History tab (deadline passed), with title search.
type Model struct {
	list        list.Model
	store       store.Store
	keys        *keys.KeyMap
	filter      store.TaskFilter
	now         func() time.Time
	searchMode  bool
	searchInput textinput.Model
	loadErr     error
	width       int
	height      int
}

// New creates a new task list model reading from the session cache.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	now := time.Now
	l := list.New([]list.Item{}, TaskDelegate{Now: now}, width, height-2)
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search tasks..."
	si.Prompt = "/ "
	si.Width = width - 4

	m := Model{
		list:        l,
		store:       s,
		keys:        k,
		filter:      store.TaskFilter{Window: store.WindowActive},
		now:         now,
		searchInput: si,
		width:       width,
		height:      height,
	}
	m.list.Title = m.title()
	return m
}

// Init returns a command that loads the initial set of tasks.
func (m Model) Init() tea.Cmd {
	return m.LoadTasks()
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TasksLoadedMsg:
		m.loadErr = msg.Err
		items := make([]list.Item, len(msg.Tasks))
		for i, task := range msg.Tasks {
			items[i] = TaskItem{Task: task}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := m.searchInput.Value()
		if query != "" {
			m.filter.Query = &query
		} else {
			m.filter.Query = nil
		}
		return m, m.LoadTasks()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.Query = nil
		return m, m.LoadTasks()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(TaskItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedTaskMsg{TaskID: item.Task.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.ToggleHistory):
		if m.filter.Window == store.WindowHistory {
			m.filter.Window = store.WindowActive
		} else {
			m.filter.Window = store.WindowHistory
		}
		m.list.Title = m.title()
		m.list.ResetSelected()
		return m, m.LoadTasks()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) title() string {
	if m.filter.Window == store.WindowHistory {
		return "History"
	}
	return "Active Tasks"
}

// View renders the task list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loadErr != nil:
		return style.Render("Couldn't load tasks.\nPress r to retry.")
	case m.filter.Query != nil:
		return style.Render("No matching tasks.\nPress / to change the search.")
	case m.filter.Window == store.WindowHistory:
		return style.Render("No past tasks yet.")
	}
	return style.Render("No active tasks.\nNew assignments will show up here.")
}

// LoadTasks returns a tea.Cmd that queries the cache with the current
// filter.
func (m Model) LoadTasks() tea.Cmd {
	filter := m.filter
	filter.Now = m.now()
	s := m.store
	return func() tea.Msg {
		tasks, err := s.GetTasks(context.Background(), filter)
		return TasksLoadedMsg{Tasks: tasks, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
