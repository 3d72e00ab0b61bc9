package reports

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
	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/reports"
	"github.com/nhle/ambassador-portal/internal/theme"
)

const loadTimeout = 30 * time.Second

const barWidth = 30

// LoadedMsg carries a freshly loaded report.
type LoadedMsg struct {
	Report *reports.Report
	Err    error
}

// BackMsg is dispatched when the user leaves the reports view.
type BackMsg struct{}

// Model is the performance reports screen.
type Model struct {
	src     reports.Source
	keys    *keys.KeyMap
	rng     reports.Range
	report  *reports.Report
	err     string
	loading bool
	width   int
	height  int
	now     func() time.Time
}

// New creates a reports view reading from src.
func New(src reports.Source, k *keys.KeyMap, width, height int) Model {
	return Model{
		src:    src,
		keys:   k,
		rng:    reports.RangeAll,
		width:  width,
		height: height,
		now:    time.Now,
	}
}

// Load marks the view loading and fetches the report.
func (m *Model) Load() tea.Cmd {
	m.loading = true
	m.err = ""
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		rp, err := reports.Load(ctx, src)
		return LoadedMsg{Report: rp, Err: err}
	}
}

// SetReport applies a load result. A failed reload keeps the previous
// report on screen.
func (m *Model) SetReport(msg LoadedMsg) {
	m.loading = false
	if msg.Err != nil {
		m.err = portal.UserMessage(msg.Err, "Failed to load reports.")
		return
	}
	m.err = ""
	m.report = msg.Report
}

// Range returns the selected range.
func (m Model) Range() reports.Range { return m.rng }

// Update handles key presses.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, m.keys.Back):
		return m, func() tea.Msg { return BackMsg{} }
	case key.Matches(km, m.keys.ToggleHistory):
		m.rng = m.rng.Next()
	}
	return m, nil
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the report.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Performance Reports")
	parts := []string{title + "  " + theme.DimmedStyle.Render(m.rng.Label())}

	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.report == nil {
		if m.loading {
			parts = append(parts, theme.DimmedStyle.Render("Loading..."))
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(parts, "\n"))
	}

	s := m.report.Summary(m.rng, m.now())
	parts = append(parts,
		"",
		stat("Tasks Completed", fmt.Sprint(s.Completed), theme.ColorGreen),
		stat("Pending Tasks", fmt.Sprint(s.Pending), theme.ColorYellow),
		stat("Total Points", fmt.Sprint(s.Points), theme.ColorMagenta),
		stat("Completion Rate", fmt.Sprintf("%d%%", s.CompletionRate), theme.ColorBlue),
		"",
		"Completed "+Bar(s.CompletionRate, barWidth)+fmt.Sprintf(" %d tasks", s.Completed),
		"Pending   "+Bar(100-s.CompletionRate, barWidth)+fmt.Sprintf(" %d tasks", s.Pending),
		fmt.Sprintf("Total Tasks %d", s.Total),
		"",
		stat("This Week", fmt.Sprintf("%d%%", m.report.Stats.WeeklyProgress), theme.ColorBlue),
		stat("Total XP", fmt.Sprint(m.report.Stats.TotalPoints), theme.ColorMagenta),
		"",
		lipgloss.NewStyle().Bold(true).Render("Recent Activity"),
	)

	if len(s.Recent) == 0 {
		parts = append(parts, theme.DimmedStyle.Render("No activity in this period"))
	}
	for _, t := range s.Recent {
		parts = append(parts, activityRow(t))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(parts, "\n"))
}

func stat(label, value string, color lipgloss.TerminalColor) string {
	return fmt.Sprintf("%-16s %s", label, lipgloss.NewStyle().Bold(true).Foreground(color).Render(value))
}

func activityRow(t model.Task) string {
	icon, status := "○", "PENDING"
	if t.IsCompleted() {
		icon, status = "✓", "COMPLETED"
	}
	date := ""
	if !t.CreatedAt.IsZero() {
		date = t.CreatedAt.Local().Format("Jan 2, 2006") + " • "
	}
	return fmt.Sprintf("%s %s  %s", icon, t.Title,
		theme.DimmedStyle.Render(fmt.Sprintf("%s%d XP  %s", date, t.RewardPoints, status)))
}

// Bar renders pct (clamped to 0..100) as a width-cell progress bar.
func Bar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
