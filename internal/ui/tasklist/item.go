package tasklist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/theme"
)

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.Task
}

// FilterValue returns the string used for filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title }

// Title returns the task title for the list.
func (i TaskItem) Title() string { return i.Task.Title }

// Description returns a short summary line for the list.
func (i TaskItem) Description() string {
	parts := []string{
		string(i.Task.Status),
		"due " + i.Task.DueDate.Format("Jan 02"),
	}
	if i.Task.RewardPoints > 0 {
		parts = append(parts, fmt.Sprintf("%d pts", i.Task.RewardPoints))
	}
	return strings.Join(parts, " | ")
}

// TaskDelegate implements list.ItemDelegate for rendering task rows.
type TaskDelegate struct {
	// Now is the clock used for overdue and countdown rendering.
	Now func() time.Time
}

// Height returns the number of lines each item takes.
func (d TaskDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d TaskDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d TaskDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task row.
func (d TaskDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	t := ti.Task

	prefix := "○"
	if t.IsCompleted() {
		prefix = "✓"
	}

	status := theme.TaskStatusStyle(t, now).Render(theme.TaskStatusLabel(t, now))

	badges := ""
	if t.IsBonus {
		badges += " " + theme.BadgeStyle("bonus").Render("Bonus")
	}
	if t.VerificationMode == model.VerificationAuto {
		badges += " " + theme.BadgeStyle("auto").Render("Auto")
	}

	points := ""
	if t.RewardPoints > 0 {
		points = lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Render(fmt.Sprintf(" +%d", t.RewardPoints))
	}

	due := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(dueLabel(t.DueDate, now))

	line := fmt.Sprintf("%s %s %s%s%s  %s", prefix, status, t.Title, badges, points, due)

	if t.IsPast(now) {
		line = theme.DimmedStyle.Render(line)
	}
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// dueLabel returns a human-friendly deadline string relative to now.
func dueLabel(due, now time.Time) string {
	if due.IsZero() {
		return ""
	}

	d := due.Sub(now)
	switch {
	case d <= 0:
		return "due " + due.Local().Format("Jan 02")
	case d < time.Hour:
		return fmt.Sprintf("due in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("due in %dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "due tomorrow"
		}
		return fmt.Sprintf("due in %dd", days)
	default:
		return "due " + due.Local().Format("Jan 02")
	}
}
