package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/gridcap/cli/reader"
)

// StatsModel shows storage-wide manifest totals.
type StatsModel struct {
	stats    *reader.PageStats
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(stats *reader.PageStats) StatsModel {
	return StatsModel{stats: stats}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	s := m.stats
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Extraction Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Pages", s.Pages, highlightColor),
		m.renderStatBox("Saved", s.TilesSaved, successColor),
		m.renderStatBox("Skipped", s.TilesSkipped, warningColor),
		m.renderStatBox("Failed", s.TilesFailed, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	pageRange := "none"
	if s.Pages > 0 {
		pageRange = fmt.Sprintf("%d to %d", s.FirstPage, s.LastPage)
	}
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Page Range:"), ValueStyle.Render(pageRange))

	rawStyle := SuccessStyle
	if s.RawErrors > 0 {
		rawStyle = ErrorStyle
	}
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Raw Errors:"), rawStyle.Render(fmt.Sprintf("%d", s.RawErrors)))
	fmt.Fprintf(&b, "%s %s", LabelStyle.Render("Runs:"), ValueStyle.Render(strings.Join(s.Runs, ", ")))

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func (m StatsModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(data any) error {
	stats, ok := data.(*reader.PageStats)
	if !ok {
		return fmt.Errorf("invalid data type for %s: %T", ViewStatsPages, data)
	}
	p := tea.NewProgram(NewStatsModel(stats), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(stats *reader.PageStats) string {
	model := NewStatsModel(stats)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
