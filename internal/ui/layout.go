package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// Bell renders the notification indicator with its unread counter.
func Bell(unread int) string {
	if unread <= 0 {
		return "🔔"
	}
	label := fmt.Sprint(unread)
	if unread > 99 {
		label = "99+"
	}
	return "🔔 " + theme.UnreadBadgeStyle.Render(label)
}

// RenderHeader renders the top bar: title on the left; user, sync
// status and the bell on the right.
func (l Layout) RenderHeader(title, user, syncStatus string, unread int) string {
	left := theme.HeaderStyle.Render(title)

	right := syncStatus
	if user != "" {
		right = user + "  " + right
	}
	rightRendered := theme.HeaderStyle.Render(right + "  " + Bell(unread))

	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(rightRendered)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, rightRendered)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// RenderDropdown places overlay at the top-right of the content area,
// over a blank background. Terminal cells cannot be composited, so the
// dropdown replaces the content while open.
func (l Layout) RenderDropdown(overlay string) string {
	return lipgloss.Place(
		l.Width, l.ContentHeight(),
		lipgloss.Right, lipgloss.Top,
		overlay,
	)
}
