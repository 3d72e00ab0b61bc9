// Package markdown renders task explanations for the terminal.
package markdown

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	mu sync.Mutex
	// Renderers are cached per style and wrap width; building one is
	// comparatively expensive.
	renderers = map[string]*glamour.TermRenderer{}
)

// Render renders md with the named glamour standard style, wrapped at
// width. It falls back to the raw text on any rendering error.
func Render(md, style string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	key := fmt.Sprintf("%s:%d", style, width)
	mu.Lock()
	r := renderers[key]
	mu.Unlock()

	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		mu.Lock()
		if existing := renderers[key]; existing != nil {
			r = existing
		} else {
			renderers[key] = rr
			r = rr
		}
		mu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
