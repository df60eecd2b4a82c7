package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/gridcap/cli/reader"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_page", true},
		{"stats_pages", true},

		{"list_pages", false},
		{"version", false},
		{"run", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("list_pages", nil); err == nil {
		t.Error("Expected error for unsupported view type")
	}
}

func TestRun_WrongPayloadType(t *testing.T) {
	if err := Run(ViewInspectPage, "not a page"); err == nil {
		t.Error("Expected error for wrong payload type")
	}
	if err := Run(ViewStatsPages, &reader.PageView{}); err == nil {
		t.Error("Expected error for wrong payload type")
	}
}

func samplePage() *reader.PageView {
	return &reader.PageView{
		RunID:      "run-001",
		Page:       3,
		Width:      2560,
		Height:     1440,
		Grid:       "6x9 of 180x180 at (1110,172)",
		RawPath:    "raw/page-3.png",
		Saved:      1,
		Skipped:    1,
		CapturedAt: time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC),
		Tiles: []reader.TileView{
			{Slot: 0, Name: "dirt", Status: "saved", Detail: "cropped/dirt.png"},
			{Slot: 1, Col: 1, Name: "stone", Status: "skipped", Detail: "out of bounds"},
		},
	}
}

func TestRenderInspectStatic(t *testing.T) {
	out := RenderInspectStatic(samplePage())
	for _, want := range []string{"Page 3", "run-001", "dirt", "stone", "raw/page-3.png"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect view missing %q", want)
		}
	}
}

func TestRenderInspectStatic_ShowsEveryRowUpToHeight(t *testing.T) {
	page := samplePage()
	page.Tiles = nil
	for i := range inspectTableHeight {
		page.Tiles = append(page.Tiles, reader.TileView{
			Slot:   i,
			Name:   fmt.Sprintf("entry_%02d", i),
			Status: "saved",
		})
	}

	out := RenderInspectStatic(page)
	for _, want := range []string{"entry_00", fmt.Sprintf("entry_%02d", inspectTableHeight-1)} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect view missing %q", want)
		}
	}
}

func TestInspectModel_Quit(t *testing.T) {
	m := NewInspectModel(samplePage())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if view := next.View(); view != "" {
		t.Errorf("quitting model should render nothing, got %q", view)
	}
}

func TestRenderStatsStatic(t *testing.T) {
	out := RenderStatsStatic(&reader.PageStats{
		Pages:        4,
		FirstPage:    0,
		LastPage:     3,
		TilesSaved:   200,
		TilesSkipped: 16,
		RawErrors:    1,
		Runs:         []string{"run-001"},
	})
	for _, want := range []string{"Extraction Statistics", "200", "0 to 3", "run-001"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats view missing %q", want)
		}
	}
}
