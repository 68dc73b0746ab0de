package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHeader() string {
	innerWidth := m.width - 4
	theme := m.theme

	tickerStr := theme.Highlight.Render(m.ticker.Current())
	clock := theme.Dim.Render(m.now().Format("15:04:05"))
	titleText := fmt.Sprintf(" PLUGKIT RUN %s", tickerStr)

	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	status := m.status()
	statusText := theme.Status(status).Render(strings.ToUpper(string(status)))
	if m.cancelling && m.result == nil {
		statusText = theme.StatusFailed.Render("CANCELLING")
	}
	statsLine := fmt.Sprintf(" %s › %s  %s  ⏱ %s",
		m.pluginID, m.task, statusText, formatDuration(m.elapsed()))

	lastRecord := "never"
	if last := m.spinner.LastRecord(); !last.IsZero() {
		lastRecord = fmt.Sprintf("%s ago", m.now().Sub(last).Round(time.Second))
	}
	activityLine := fmt.Sprintf(" Last record: %s %s", lastRecord, m.spinner.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
