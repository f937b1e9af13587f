package tui

import (
	"context"
	"fmt"
	"os"

	"coderag/internal/index"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// IndexFunc performs one indexing run, reporting through progress.
type IndexFunc func(ctx context.Context, progress index.ProgressFunc) (*index.Result, error)

type indexingModel struct {
	spinner spinner.Model
	title   string
	phase   string
	done    int
	total   int
	over    bool
}

func newIndexingModel(title string) indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return indexingModel{
		spinner: sp,
		title:   title,
		phase:   "Scanning files...",
	}
}

// indexDoneMsg is sent when the run returns.
type indexDoneMsg struct{}

// indexProgressMsg is sent from the run's progress callback.
type indexProgressMsg struct {
	phase string
	done  int
	total int
}

func (m indexingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.over = true
		return m, tea.Quit
	case indexProgressMsg:
		m.phase = msg.phase
		m.done = msg.done
		m.total = msg.total
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.over = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View() string {
	if m.over {
		return ""
	}
	s := fmt.Sprintf("%s %s %s", m.spinner.View(), titleStyle.Render(m.title), m.phase)
	if m.total > 0 {
		s += dimStyle.Render(fmt.Sprintf(" %d/%d", m.done, m.total))
	}
	return s + "\n"
}

// RunIndexing runs fn behind a spinner on stderr and returns its result.
// Ctrl+C cancels the context passed to fn.
func RunIndexing(ctx context.Context, title string, fn IndexFunc) (*index.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newIndexingModel(title), tea.WithOutput(os.Stderr), tea.WithInput(os.Stdin))

	type outcome struct {
		res *index.Result
		err error
	}
	finished := make(chan outcome, 1)
	go func() {
		res, err := fn(ctx, func(phase string, done, total int) {
			p.Send(indexProgressMsg{phase: phase, done: done, total: total})
		})
		finished <- outcome{res: res, err: err}
		p.Send(indexDoneMsg{})
	}()

	_, runErr := p.Run()
	// Stops the run if the spinner was interrupted.
	cancel()
	out := <-finished
	if runErr != nil && out.err == nil {
		return out.res, runErr
	}
	return out.res, out.err
}
