// Package style provides the shared palette and status icons used by terminal output.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Moss   = lipgloss.Color("#4F7942")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Sky    = lipgloss.Color("#38BDF8")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Dash    = "-"
	Arrow   = "→"
	Dot     = "●"
)
