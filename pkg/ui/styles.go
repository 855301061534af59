// Package ui renders supac's terminal output: dry-run plans, reports and
// confirmation prompts.
package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"}
	colorError   = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
)

// Styles holds the styles of one output stream.
type Styles struct {
	Backend lipgloss.Style
	Command lipgloss.Style
	Hook    lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates styles for w. Color is only emitted when w is a
// terminal that supports it.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Backend: r.NewStyle().Bold(true).Foreground(colorAccent),
		Command: r.NewStyle(),
		Hook: r.NewStyle().
			Foreground(colorMuted).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorMuted).
			PaddingLeft(1),
		Heading: r.NewStyle().Bold(true).Underline(true),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Success: r.NewStyle().Foreground(colorSuccess),
		Error:   r.NewStyle().Bold(true).Foreground(colorError),
	}
}
