package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/bundlesync/cli/reader"
)

// maxListed bounds the file names shown per section.
const maxListed = 10

// ViewModel is a Bubble Tea model for the read-only views.
type ViewModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewViewModel creates a view model.
func NewViewModel(viewType string, data any) ViewModel {
	return ViewModel{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m ViewModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m ViewModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatus:
		content = m.renderStatus()
	case ViewDiff:
		content = m.renderDiff()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m ViewModel) renderStatus() string {
	data, ok := m.data.(*reader.StatusResponse)
	if !ok {
		return "Invalid data type for status"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Cache Status"))
	b.WriteString("\n")
	b.WriteString(field("Cache", data.CacheDir))
	if !data.Seeded {
		b.WriteString(field("Revision", WarningStyle.Render("none (unseeded)")))
		return b.String()
	}
	b.WriteString(field("Platform", data.Platform))
	b.WriteString(field("App Version", data.AppVersion))
	b.WriteString(field("Revision", fmt.Sprintf("%d", data.Revision)))
	b.WriteString(field("Size", formatBytes(data.TotalBytes)))
	b.WriteString("\n")

	boxes := []string{
		renderStatBox("Files", data.Files, highlightColor),
		renderStatBox("Present", data.Present, successColor),
		renderStatBox("From Seed", data.FromSeed, mutedColor),
		renderStatBox("Missing", len(data.Missing), errorColor),
	}
	if data.Verified {
		boxes = append(boxes, renderStatBox("Corrupt", len(data.Corrupt), errorColor))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if lr := data.LastRound; lr != nil {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Last Round"))
		b.WriteString("\n")
		b.WriteString(field("Round", lr.RoundID))
		b.WriteString(field("Outcome", OutcomeStyle(lr.Outcome).Render(lr.Outcome)))
		b.WriteString(field("Committed", fmt.Sprintf("%d", lr.CommittedRevision)))
		b.WriteString(field("Finished", lr.FinishedAt.Format("2006-01-02 15:04:05")))
		if lr.Error != "" {
			b.WriteString(field("Error", ErrorStyle.Render(lr.Error)))
		}
		b.WriteString(list("Failed", lr.FailedPaths, ErrorStyle))
	}
	b.WriteString(list("Missing", data.Missing, ErrorStyle))
	b.WriteString(list("Corrupt", data.Corrupt, ErrorStyle))
	return b.String()
}

func (m ViewModel) renderDiff() string {
	data, ok := m.data.(*reader.DiffResponse)
	if !ok {
		return "Invalid data type for diff"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Revision %d → %d", data.LocalRevision, data.RemoteRevision)))
	b.WriteString("\n")
	if data.Current {
		b.WriteString(SuccessStyle.Render("Up to date"))
		return b.String()
	}

	boxes := []string{
		renderStatBox("Add", len(data.ToAdd), successColor),
		renderStatBox("Update", len(data.ToUpdate), warningColor),
		renderStatBox("Remove", len(data.ToRemove), errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")
	b.WriteString(field("Download", formatBytes(data.DownloadBytes)))

	b.WriteString(list("Add", diffPaths(data.ToAdd), SuccessStyle))
	b.WriteString(list("Update", diffPaths(data.ToUpdate), WarningStyle))
	b.WriteString(list("Remove", diffPaths(data.ToRemove), ErrorStyle))
	return b.String()
}

func diffPaths(items []reader.DiffItem) []string {
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Path
	}
	return paths
}

func field(label, value string) string {
	return fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), ValueStyle.Render(value))
}

func list(title string, items []string, style lipgloss.Style) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(LabelStyle.Render(title + ":"))
	b.WriteString("\n")
	for i, it := range items {
		if i == maxListed {
			b.WriteString(HelpStyle.Render(fmt.Sprintf("  … %d more", len(items)-maxListed)))
			b.WriteString("\n")
			break
		}
		b.WriteString("  ")
		b.WriteString(style.Render(it))
		b.WriteString("\n")
	}
	return b.String()
}

func renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunViewTUI runs a read-only view.
func RunViewTUI(viewType string, data any) error {
	p := tea.NewProgram(NewViewModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatic renders a view without the full TUI.
func RenderStatic(viewType string, data any) string {
	model := NewViewModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
