// Package tui shows a vertex fit converging, one iteration per frame.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/vtxfit/internal/fitter"
	"github.com/san-kum/vtxfit/internal/viz"
)

var (
	header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	accent = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
)

type tickMsg time.Time

type model struct {
	steps  []fitter.Progress
	result *fitter.Result
	frame  int
	paused bool
	done   bool
}

// Run fits f with cfg and replays the iterations as an animated view.
// The fit itself completes before the first frame; the animation only paces
// the display.
func Run(f *fitter.Fitter, cfg fitter.Config) (*fitter.Result, error) {
	var steps []fitter.Progress
	res, err := f.FitWithObserver(cfg, func(p fitter.Progress) bool {
		steps = append(steps, p)
		return true
	})
	if err != nil {
		return nil, err
	}

	m := model{steps: steps, result: res}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return nil, err
	}
	return res, nil
}

func tick() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
			if !m.paused && !m.done {
				return m, tick()
			}
		case "r":
			m.frame = 0
			m.done = false
			if !m.paused {
				return m, tick()
			}
		}
	case tickMsg:
		if m.paused || m.done {
			return m, nil
		}
		if m.frame < len(m.steps)-1 {
			m.frame++
			return m, tick()
		}
		m.done = true
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(header.Render("vtxfit live") + "\n\n")

	if len(m.steps) == 0 {
		b.WriteString(dim.Render("no iterations recorded") + "\n")
		return b.String()
	}

	p := m.steps[m.frame]
	b.WriteString(fmt.Sprintf("%s %d/%d\n", dim.Render("iteration"), p.Iteration+1, len(m.steps)))
	b.WriteString(fmt.Sprintf("%s (%.5f, %.5f, %.5f) cm\n", dim.Render("vertex"), p.Vertex[0], p.Vertex[1], p.Vertex[2]))
	b.WriteString(fmt.Sprintf("%s %.3e cm   %s %.4f\n\n", dim.Render("shift"), p.Delta, dim.Render("chi2"), p.Chi2))

	deltas := make([]float64, m.frame+1)
	for i := 0; i <= m.frame; i++ {
		deltas[i] = m.steps[i].Delta
	}
	if len(deltas) > 1 {
		b.WriteString(viz.ConvergencePlot(deltas) + "\n\n")
	}

	if m.done && m.result != nil {
		b.WriteString(accent.Render(fmt.Sprintf("converged: chi2/ndf = %.4f / %d", m.result.Chi2, m.result.NDF)) + "\n\n")
	}

	b.WriteString(dim.Render("space pause · r replay · q quit") + "\n")
	return b.String()
}
