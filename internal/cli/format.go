package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ambassador-portal/internal/theme"
)

// Predefined lipgloss styles for command output.
var (
	StyleHeader  = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
	StyleDim     = lipgloss.NewStyle().Foreground(theme.ColorGray)
	StyleNew     = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorYellow)
	StyleSuccess = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)
	StyleError   = lipgloss.NewStyle().Foreground(theme.ColorRed)
)

// RenderTable renders an aligned table with a header separator line.
// Columns are padded to the widest visible cell.
func RenderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	cols := len(headers)

	widths := make([]int, cols)
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < cols && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	const colGap = 2
	var b strings.Builder

	writeRow := func(cells []string, style func(string) string) {
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := widths[i] - lipgloss.Width(cell)
			if pad < 0 {
				pad = 0
			}
			b.WriteString(style(cell))
			if i < cols-1 {
				b.WriteString(strings.Repeat(" ", pad+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, func(s string) string { return StyleHeader.Render(s) })
	for i, w := range widths {
		b.WriteString(StyleDim.Render(strings.Repeat("─", w)))
		if i < cols-1 {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row, func(s string) string { return s })
	}

	return b.String()
}
