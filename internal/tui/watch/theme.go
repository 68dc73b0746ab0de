// Package watch renders a live view of a single plugin run: a progress bar,
// the records the plugin logs, and its final status.
package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/plugkit/internal/protocol"
	"github.com/mattjoyce/plugkit/internal/runlog"
)

// Theme keeps all watch styling in one place.
type Theme struct {
	StatusOK      lipgloss.Style
	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		TickerActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

// Level picks the style for a record level.
func (t Theme) Level(l protocol.Level) lipgloss.Style {
	switch l {
	case protocol.ErrorLevel:
		return t.StatusFailed
	case protocol.WarningLevel:
		return t.Highlight
	case protocol.DebugLevel, protocol.TraceLevel:
		return t.Dim
	default:
		return lipgloss.NewStyle()
	}
}

// Status picks the style for a run status.
func (t Theme) Status(s runlog.Status) lipgloss.Style {
	switch s {
	case runlog.StatusSucceeded:
		return t.StatusOK
	case runlog.StatusRunning, "":
		return t.StatusRunning
	default:
		return t.StatusFailed
	}
}
