package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/plugkit/internal/host"
	"github.com/mattjoyce/plugkit/internal/protocol"
	"github.com/mattjoyce/plugkit/internal/runlog"
)

// maxRecords bounds the records kept for display.
const maxRecords = 500

// LogMsg is a log record the plugin wrote.
type LogMsg struct {
	Level   protocol.Level
	Message string
	At      time.Time
}

// ProgressMsg is a progress update, already clamped to [0, 1].
type ProgressMsg struct {
	Fraction float64
	At       time.Time
}

// DoneMsg ends the watch with the run's outcome.
type DoneMsg struct {
	Result *host.Result
	Err    error
}

type tickMsg time.Time

// Observer returns a host.Observer that forwards records to send, usually a
// running tea.Program's Send.
func Observer(send func(tea.Msg)) host.Observer {
	return host.ObserverFuncs{
		Log: func(level protocol.Level, msg string) {
			send(LogMsg{Level: level, Message: msg, At: time.Now()})
		},
		Progress: func(f float64) {
			send(ProgressMsg{Fraction: f, At: time.Now()})
		},
	}
}

// Model is the BubbleTea model for watching one run.
type Model struct {
	pluginID string
	task     string
	cancel   context.CancelFunc

	width  int
	height int

	started  time.Time
	fraction float64
	records  []LogMsg

	result     *host.Result
	err        error
	cancelling bool

	bar      progress.Model
	viewport viewport.Model
	ticker   Ticker
	spinner  Spinner
	theme    Theme

	now func() time.Time
}

// New creates a watch model. cancel is called when the user asks to stop.
func New(pluginID, task string, cancel context.CancelFunc) Model {
	return Model{
		pluginID: pluginID,
		task:     task,
		cancel:   cancel,
		started:  time.Now(),
		bar:      progress.New(progress.WithDefaultGradient()),
		ticker:   NewTicker(),
		theme:    NewDefaultTheme(),
		now:      time.Now,
	}
}

// Outcome returns what DoneMsg delivered; nil until the run finished.
func (m Model) Outcome() (*host.Result, error) {
	return m.result, m.err
}

// Progress returns the latest fraction shown.
func (m Model) Progress() float64 { return m.fraction }

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.result != nil || m.err != nil {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		case "up", "k":
			m.viewport.ScrollUp(1)
		case "down", "j":
			m.viewport.ScrollDown(1)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, msg.Width-10)
		m.viewport.Width = max(10, msg.Width-8)
		m.viewport.Height = max(3, msg.Height-14)
		m.refreshLogs()

	case tickMsg:
		if m.result != nil {
			return m, nil
		}
		m.ticker.Tick()
		m.spinner.Decay(time.Time(msg))
		return m, tick()

	case LogMsg:
		m.records = append(m.records, msg)
		if len(m.records) > maxRecords {
			m.records = m.records[len(m.records)-maxRecords:]
		}
		m.spinner.OnRecord(msg.At)
		m.refreshLogs()

	case ProgressMsg:
		m.fraction = msg.Fraction
		m.spinner.OnRecord(msg.At)

	case DoneMsg:
		m.result = msg.Result
		m.err = msg.Err
		if msg.Result != nil && msg.Result.Status == runlog.StatusSucceeded {
			m.fraction = 1
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) refreshLogs() {
	lines := make([]string, 0, len(m.records))
	for _, r := range m.records {
		lines = append(lines, m.formatRecord(r))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) formatRecord(r LogMsg) string {
	ts := m.theme.Dim.Render(r.At.Format("15:04:05"))
	level := m.theme.Level(r.Level).Render(fmt.Sprintf("%-7s", r.Level))
	return fmt.Sprintf("%s %s %s", ts, level, r.Message)
}

func (m Model) status() runlog.Status {
	if m.result != nil {
		return m.result.Status
	}
	if m.err != nil {
		return runlog.StatusFailed
	}
	return runlog.StatusRunning
}

func (m Model) elapsed() time.Duration {
	if m.result != nil {
		return m.result.Duration
	}
	return m.now().Sub(m.started)
}

func (m Model) View() string {
	if m.width == 0 {
		return fmt.Sprintf("Starting %s %s...", m.pluginID, m.task)
	}
	innerWidth := m.width - 4

	bar := m.theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("PROGRESS"),
			" "+m.bar.ViewAs(m.fraction),
		),
	)

	var body string
	if len(m.records) == 0 {
		body = m.theme.Dim.Render("  Waiting for records...")
	} else {
		body = lipgloss.NewStyle().Padding(0, 1).Render(m.viewport.View())
	}
	logs := m.theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render("RECORDS"), body),
	)

	parts := []string{m.renderHeader(), bar, logs}
	switch {
	case m.err != nil:
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+m.err.Error()))
	case m.result != nil && m.result.Err != nil:
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+m.result.Err.Error()))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Stop run • [↑/↓] Scroll"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
