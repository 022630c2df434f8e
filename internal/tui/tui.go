// Package tui shows a spinner while a non-streamed explanation is being
// generated.
package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// ErrInterrupted is returned when the user cancels the wait.
var ErrInterrupted = errors.New("interrupted")

type doneMsg struct {
	out string
	err error
}

// Model is the Bubble Tea model for the generation spinner.
type Model struct {
	spin        spinner.Model
	label       string
	run         func() (string, error)
	out         string
	err         error
	interrupted bool
}

// New builds a spinner model around a blocking generation function.
func New(label string, run func() (string, error)) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{spin: sp, label: label, run: run}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		func() tea.Msg {
			out, err := m.run()
			return doneMsg{out: out, err: err}
		},
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.out = msg.out
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.interrupted = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.err != nil || m.out != "" || m.interrupted {
		return ""
	}
	return m.spin.View() + " " + labelStyle.Render(m.label)
}

// Run shows the spinner until run returns, and passes its result through.
// The spinner line is erased before returning so the caller's output
// starts on a clean line.
func Run(label string, run func() (string, error)) (string, error) {
	p := tea.NewProgram(New(label, run))
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	m := final.(Model)
	if m.interrupted {
		return "", ErrInterrupted
	}
	return m.out, m.err
}
