package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/scrapouille/scrapouille/internal/batch"
)

// itemStatus is the display state of one batch row.
type itemStatus int

const (
	itemPending itemStatus = iota
	itemRunning
	itemOK
	itemFailed
	itemSkipped
)

// batchUpdateMsg carries one tracker update.
type batchUpdateMsg batch.Update

// trackerClosedMsg signals the tracker finalized and closed its stream.
type trackerClosedMsg struct{}

// batchDoneMsg carries the terminal outcome of the run.
type batchDoneMsg struct {
	outcome *batch.Outcome
	err     error
}

// batchModel is the bubbletea model for a live batch run.
type batchModel struct {
	runner  *batch.Runner
	urls    []string
	updates <-chan batch.Update
	unsub   func()

	progress progress.Model
	theme    Theme

	statuses []itemStatus
	results  []*batch.Result
	snap     batch.Snapshot

	outcome    *batch.Outcome
	err        error
	cancelling bool
	aborted    bool
	done       bool
}

// newBatchModel creates the dashboard model and subscribes to the
// runner's progress stream before the first dispatch.
func newBatchModel(runner *batch.Runner, urls []string) batchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	updates, unsub := runner.Tracker().Subscribe()

	return batchModel{
		runner:   runner,
		urls:     urls,
		updates:  updates,
		unsub:    unsub,
		progress: prog,
		theme:    defaultTheme,
		statuses: make([]itemStatus, len(urls)),
		results:  make([]*batch.Result, len(urls)),
		snap:     batch.Snapshot{Total: len(urls)},
	}
}

// Init starts the batch run and the update pump.
func (m batchModel) Init() tea.Cmd {
	return tea.Batch(
		m.progress.Init(),
		m.runBatch(),
		m.waitForUpdate(),
	)
}

// runBatch executes the whole batch in a command goroutine. The model only
// reacts to messages, so no batch state is touched from here.
func (m batchModel) runBatch() tea.Cmd {
	runner := m.runner
	return func() tea.Msg {
		outcome, err := runner.Run(context.Background())
		return batchDoneMsg{outcome: outcome, err: err}
	}
}

// waitForUpdate blocks on the tracker stream.
func (m batchModel) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return trackerClosedMsg{}
		}
		return batchUpdateMsg(u)
	}
}

// Update handles messages and returns the updated model.
func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "c":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.runner.Cancel()
				return m, nil
			}
			// Second press abandons the drain and exits immediately.
			m.aborted = true
			return m, tea.Quit
		case "q", "enter":
			if m.done {
				return m, tea.Quit
			}
		}

	case batchUpdateMsg:
		if msg.Index >= 0 && msg.Index < len(m.statuses) {
			if msg.Running {
				m.statuses[msg.Index] = itemRunning
			} else if msg.Result != nil {
				m.results[msg.Index] = msg.Result
				if msg.Result.Success {
					m.statuses[msg.Index] = itemOK
				} else {
					m.statuses[msg.Index] = itemFailed
				}
			}
		}
		m.snap = msg.Progress
		return m, m.waitForUpdate()

	case trackerClosedMsg:
		return m, nil

	case batchDoneMsg:
		m.done = true
		m.outcome = msg.outcome
		m.err = msg.err
		m.unsub()
		for i, st := range m.statuses {
			if st == itemPending || st == itemRunning {
				m.statuses[i] = itemSkipped
			}
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m batchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m batchModel) renderContent() string {
	var b strings.Builder

	state := "running"
	if m.cancelling {
		state = "cancelling"
	}
	if m.done {
		state = "done"
	}
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", state))

	var pct float64
	if m.snap.Total > 0 {
		pct = float64(m.snap.Completed) / float64(m.snap.Total)
	}
	counts := fmt.Sprintf("%d/%d URLs", m.snap.Completed, m.snap.Total)

	fmt.Fprintf(&b, "%s %s %s\n", status, m.progress.ViewAs(pct), counts)
	fmt.Fprintf(&b, "%s  %s  %s\n",
		m.theme.successStyle().Render(fmt.Sprintf("✓ %d", m.snap.Succeeded)),
		m.theme.errorStyle().Render(fmt.Sprintf("✗ %d", m.snap.Failed)),
		m.theme.accentStyle().Render(fmt.Sprintf("⚡ %d cached", m.snap.Cached)))
	b.WriteString("\n")

	b.WriteString(m.renderRows())

	if !m.done {
		hint := "Press c to cancel"
		if m.cancelling {
			hint = "Draining in-flight scrapes... press Ctrl+C again to abandon"
		}
		b.WriteString("\n" + m.theme.hintStyle().Render(hint) + "\n")
	}
	return b.String()
}

// renderRows shows a sliding window of items around the active ones so
// large batches stay readable.
func (m batchModel) renderRows() string {
	const window = 12

	first := 0
	// Keep the window anchored on the earliest unfinished item.
	for first < len(m.statuses) && (m.statuses[first] == itemOK || m.statuses[first] == itemFailed) {
		first++
	}
	first -= window / 2
	if first > len(m.statuses)-window {
		first = len(m.statuses) - window
	}
	if first < 0 {
		first = 0
	}

	var b strings.Builder
	last := first + window
	if last > len(m.statuses) {
		last = len(m.statuses)
	}
	for i := first; i < last; i++ {
		b.WriteString(m.renderRow(i) + "\n")
	}
	if last < len(m.statuses) {
		b.WriteString(m.theme.hintStyle().Render(fmt.Sprintf("  ... %d more", len(m.statuses)-last)) + "\n")
	}
	return b.String()
}

func (m batchModel) renderRow(i int) string {
	url := truncate(m.urls[i], 48)

	switch m.statuses[i] {
	case itemRunning:
		return m.theme.statusStyle().Render("  ▶ ") + url
	case itemOK:
		detail := ""
		if res := m.results[i]; res != nil {
			detail = fmt.Sprintf("  %.2fs", res.ExecutionTime.Seconds())
			if res.Cached {
				detail += " (cached)"
			}
		}
		return m.theme.successStyle().Render("  ✓ ") + url + m.theme.hintStyle().Render(detail)
	case itemFailed:
		detail := ""
		if res := m.results[i]; res != nil && res.Error != "" {
			detail = "  " + truncate(res.Error, 30)
		}
		return m.theme.errorStyle().Render("  ✗ ") + url + m.theme.errorStyle().Render(detail)
	case itemSkipped:
		return m.theme.hintStyle().Render("  - " + url + "  skipped")
	default:
		return m.theme.hintStyle().Render("  · " + url)
	}
}

// RunBatchDashboard drives a batch run under the interactive dashboard and
// returns its outcome. A nil outcome with nil error means the user
// abandoned the drain.
func RunBatchDashboard(runner *batch.Runner, urls []string) (*batch.Outcome, error) {
	model := newBatchModel(runner, urls)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("dashboard error: %w", err)
	}

	m, ok := finalModel.(batchModel)
	if !ok {
		return nil, fmt.Errorf("unexpected dashboard model type")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome, nil
}
