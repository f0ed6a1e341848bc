package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorSuccess = lipgloss.Color("#04B575")
	colorError   = lipgloss.Color("#FF5F87")
	colorWarning = lipgloss.Color("#FFAF00")
	colorSubtle  = lipgloss.Color("#767676")
)

// styles are bound to the renderer of the output writer, so color is only
// emitted when that writer is a terminal
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	subtle  lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Foreground(colorPrimary).Bold(true),
		label:   r.NewStyle().Bold(true),
		value:   r.NewStyle().Foreground(colorSuccess).Bold(true),
		subtle:  r.NewStyle().Foreground(colorSubtle),
		success: r.NewStyle().Foreground(colorSuccess),
		warn:    r.NewStyle().Foreground(colorWarning),
		err:     r.NewStyle().Foreground(colorError),
	}
}
