package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/gridcap/cli/reader"
)

// inspectTableHeight is the number of tile rows visible at once.
const inspectTableHeight = 12

// InspectModel shows one page manifest: a summary box above a scrollable
// tile table.
type InspectModel struct {
	page     *reader.PageView
	tiles    table.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(page *reader.PageView) InspectModel {
	columns := []table.Column{
		{Title: "Slot", Width: 5},
		{Title: "Pos", Width: 7},
		{Title: "Name", Width: 28},
		{Title: "Status", Width: 8},
		{Title: "Detail", Width: 36},
	}
	rows := make([]table.Row, 0, len(page.Tiles))
	for _, t := range page.Tiles {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", t.Slot),
			fmt.Sprintf("%d,%d", t.Row, t.Col),
			t.Name,
			t.Status,
			t.Detail,
		})
	}

	tbl := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		// The height includes the header line.
		table.WithHeight(min(inspectTableHeight, len(rows))+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).Foreground(primaryColor)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(highlightColor)
	tbl.SetStyles(s)

	return InspectModel{page: page, tiles: tbl}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	var cmd tea.Cmd
	m.tiles, cmd = m.tiles.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	help := HelpStyle.Render("↑/↓ scroll tiles • q quit")
	return m.renderSummary() + "\n" + m.tiles.View() + "\n" + help
}

func (m InspectModel) renderSummary() string {
	p := m.page

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Page %d", p.Page)))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Run ID", p.RunID},
		{"Captured At", p.CapturedAt.Format("2006-01-02 15:04:05")},
		{"Snapshot", fmt.Sprintf("%dx%d", p.Width, p.Height)},
		{"Grid", p.Grid},
		{"Raw", p.RawPath},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1]))
	}
	if p.RawError != "" {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Raw Error:"), ErrorStyle.Render(p.RawError))
	}

	fmt.Fprintf(&b, "%s %s  %s  %s",
		LabelStyle.Render("Tiles:"),
		StatusStyle("saved").Render(fmt.Sprintf("%d saved", p.Saved)),
		StatusStyle("skipped").Render(fmt.Sprintf("%d skipped", p.Skipped)),
		StatusStyle("failed").Render(fmt.Sprintf("%d failed", p.Failed)),
	)

	return BoxStyle.Render(b.String())
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

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(data any) error {
	page, ok := data.(*reader.PageView)
	if !ok {
		return fmt.Errorf("invalid data type for %s: %T", ViewInspectPage, data)
	}
	p := tea.NewProgram(NewInspectModel(page), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(page *reader.PageView) string {
	model := NewInspectModel(page)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
