package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Faint(true)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type doneMsg struct {
	details []string
	err     error
}

type tickMsg struct{}

type model struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var out string
	if m.done {
		mark := okStyle.Render("✓")
		if m.err != nil {
			mark = failStyle.Render("✗")
		}
		out = mark + " " + titleStyle.Render(m.title) + "\n"
	} else {
		out = spinnerFrames[m.frame] + " " + titleStyle.Render(m.title) + "\n"
	}
	for _, d := range m.details {
		out += detailStyle.Render("  "+d) + "\n"
	}
	if m.err != nil {
		out += failStyle.Render("  error: "+m.err.Error()) + "\n"
	}
	return out
}

// Run executes fn under a spinner display and returns its details. Ctrl+C
// cancels the underlying context.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(model{title: title})
	go func() {
		details, err := fn(ctx)
		p.Send(doneMsg{details: details, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(model)
	return m.details, m.err
}
