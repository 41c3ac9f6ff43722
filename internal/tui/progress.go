// Package tui renders live run progress. The orchestrator stays unaware of
// the terminal; it emits progress events and a bridge feeds them into the
// running program.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wordpress-sync/internal/core/sync"
	"wordpress-sync/internal/wp"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8942E1"))
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3AC4BA"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
)

type eventMsg sync.ProgressEvent

type finishedMsg struct{}

// Model is the progress view for one run.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	stage    sync.Stage
	kind     wp.Kind
	done     int
	total    int
	message  string
	finished bool

	cancel context.CancelFunc
}

func NewModel(cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stageStyle
	return Model{
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// cancels the run; the program quits once the run reports back
			m.cancel()
			m.message = "cancelling..."
			return m, nil
		}
	case eventMsg:
		m.stage = msg.Stage
		m.kind = msg.Kind
		m.done = msg.Done
		m.total = msg.Total
		m.message = msg.Message
		if msg.Total > 0 {
			return m, m.bar.SetPercent(float64(msg.Done) / float64(msg.Total))
		}
		return m, nil
	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("wpsync"))
	b.WriteString("\n\n")

	if m.finished {
		b.WriteString(doneStyle.Render("done"))
		b.WriteString("\n")
		return b.String()
	}

	line := m.spinner.View() + " " + stageLabel(m.stage)
	if m.kind != "" {
		line += " " + stageStyle.Render(string(m.kind))
	}
	b.WriteString(line)
	b.WriteString("\n")

	if m.total > 0 {
		b.WriteString(m.bar.View())
		b.WriteString(subtleStyle.Render(fmt.Sprintf(" %d/%d", m.done, m.total)))
		b.WriteString("\n")
	}
	if m.message != "" {
		b.WriteString(subtleStyle.Render(m.message))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+c to cancel"))
	b.WriteString("\n")
	return b.String()
}

func stageLabel(s sync.Stage) string {
	switch s {
	case sync.StageCollect:
		return "collecting"
	case sync.StageResolve:
		return "resolving ancestors"
	case sync.StageMedia:
		return "fetching media"
	case sync.StageRewrite:
		return "rewriting content"
	case sync.StageImport:
		return "importing"
	case sync.StageDone:
		return "finished"
	default:
		return "starting"
	}
}

// Notifier feeds run progress into a running program. Safe to call from the
// run goroutine; Send is the program's thread-safe entry point.
type Notifier struct {
	p *tea.Program
}

func NewNotifier(p *tea.Program) Notifier {
	return Notifier{p: p}
}

func (n Notifier) Notify(ev sync.ProgressEvent) {
	n.p.Send(eventMsg(ev))
}

// Finish tells the program the run completed and the view may quit.
func Finish(p *tea.Program) {
	p.Send(finishedMsg{})
}
