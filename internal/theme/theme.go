package theme

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// DropdownStyle frames the notifications dropdown.
var DropdownStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBlue)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle is used for read notifications and past tasks.
var DimmedStyle = lipgloss.NewStyle().Foreground(ColorGray)

// ErrorStyle renders inline error messages.
var ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

// SuccessStyle renders success banners.
var SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)

// UnreadBadgeStyle renders the unread counter and the "New" marker.
var UnreadBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// TaskStatusStyle returns a color-coded style for a task's status. A
// pending task whose deadline passed renders as overdue.
func TaskStatusStyle(t model.Task, now time.Time) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch {
	case t.IsCompleted():
		return base.Foreground(ColorGreen)
	case t.IsPast(now):
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorYellow)
	}
}

// TaskStatusLabel is the text shown next to TaskStatusStyle.
func TaskStatusLabel(t model.Task, now time.Time) string {
	switch {
	case t.IsCompleted():
		return "Completed"
	case t.IsPast(now):
		return "Missed"
	default:
		return "Pending"
	}
}

// KindStyle returns the label style for a notification kind.
func KindStyle(k model.NotificationKind) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch k {
	case model.NotificationKindAnnouncement:
		return base.Foreground(ColorMagenta)
	case model.NotificationKindMessage:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// BadgeStyle returns the style for a task badge such as "Bonus" or
// "Auto-verified".
func BadgeStyle(badge string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch badge {
	case "bonus":
		return base.Foreground(ColorOrange)
	case "auto":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// GlamourStyle maps the display.theme setting to a glamour standard
// style. Auto-detection queries the terminal and can block, so unknown
// names fall back to dark.
func GlamourStyle(name string) string {
	switch name {
	case "light", "dark", "notty", "dracula", "tokyo-night", "pink", "ascii":
		return name
	}
	return "dark"
}
