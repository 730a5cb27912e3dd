package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/bundlesync/syncer"
)

// SyncFunc runs one round and reports progress through the callback.
type SyncFunc func(ctx context.Context, progress syncer.ProgressFunc) (*syncer.RoundResult, error)

type progressMsg float64

type doneMsg struct {
	result *syncer.RoundResult
	err    error
}

// SyncModel shows a progress bar while a round runs.
// Quitting cancels the round and waits for it to settle.
type SyncModel struct {
	title     string
	bar       progress.Model
	percent   float64
	cancel    context.CancelFunc
	canceling bool
	done      bool
	result    *syncer.RoundResult
	err       error
}

// NewSyncModel creates a sync model. cancel is invoked on quit.
func NewSyncModel(title string, cancel context.CancelFunc) SyncModel {
	return SyncModel{
		title:  title,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		cancel: cancel,
	}
}

// Init implements tea.Model.
func (m SyncModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.percent = float64(msg)
	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		if msg.result != nil && msg.result.Outcome != syncer.OutcomeFailed {
			m.percent = 1
		}
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-4, 80))
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) && !m.canceling {
			m.canceling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m SyncModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.percent))
	b.WriteString("\n")

	switch {
	case m.done:
		b.WriteString(m.summary())
	case m.canceling:
		b.WriteString(OutcomeStyle("canceling").Render("canceling…"))
	default:
		b.WriteString(OutcomeStyle("downloading").Render("downloading"))
		b.WriteString(HelpStyle.Render("  q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m SyncModel) summary() string {
	r := m.result
	if r == nil {
		if m.err != nil {
			return ErrorStyle.Render(m.err.Error())
		}
		return ""
	}
	outcome := string(r.Outcome)
	line := fmt.Sprintf("%s  revision %d  downloaded %d (%s)  deleted %d",
		OutcomeStyle(outcome).Render(outcome),
		r.CommittedRevision, r.Downloaded, formatBytes(r.DownloadedBytes), r.Deleted)
	if len(r.Failed) > 0 {
		line += ErrorStyle.Render(fmt.Sprintf("  failed %d", len(r.Failed)))
	}
	if m.err != nil {
		line += "\n" + ErrorStyle.Render(m.err.Error())
	}
	return line
}

// Result returns the round result and error once the model is done.
func (m SyncModel) Result() (*syncer.RoundResult, error) {
	return m.result, m.err
}

// RunSync runs fn under a progress display and returns its result.
func RunSync(ctx context.Context, title string, fn SyncFunc) (*syncer.RoundResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewSyncModel(title, cancel))
	go func() {
		result, err := fn(ctx, func(fraction float64) {
			p.Send(progressMsg(fraction))
		})
		p.Send(doneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("sync TUI: %w", err)
	}
	model, ok := final.(SyncModel)
	if !ok {
		return nil, fmt.Errorf("sync TUI: unexpected model %T", final)
	}
	return model.Result()
}
