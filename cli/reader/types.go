// Package reader provides the read-side data access layer for the gridcap CLI.
//
// Read-only commands (inspect, list, stats) go through this package and
// never touch the runtime. Payloads are shared between the plain renderers
// and the TUI.
package reader

import "time"

// PageView is the inspect payload for one page manifest.
type PageView struct {
	RunID      string     `json:"run_id" yaml:"run_id"`
	Page       int        `json:"page" yaml:"page"`
	Width      int        `json:"width" yaml:"width"`
	Height     int        `json:"height" yaml:"height"`
	Grid       string     `json:"grid" yaml:"grid"`
	RawPath    string     `json:"raw_path" yaml:"raw_path"`
	RawError   string     `json:"raw_error,omitempty" yaml:"raw_error,omitempty"`
	Saved      int        `json:"saved" yaml:"saved"`
	Skipped    int        `json:"skipped" yaml:"skipped"`
	Failed     int        `json:"failed" yaml:"failed"`
	CapturedAt time.Time  `json:"captured_at" yaml:"captured_at"`
	Tiles      []TileView `json:"tiles" yaml:"tiles"`
}

// TileView is one row of the inspect tile table.
type TileView struct {
	Slot   int    `json:"slot" yaml:"slot"`
	Row    int    `json:"row" yaml:"row"`
	Col    int    `json:"col" yaml:"col"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Box    string `json:"box" yaml:"box"`
	Detail string `json:"detail" yaml:"detail"`
}

// ListPageItem is one row of `gridcap list`.
type ListPageItem struct {
	Page       int       `json:"page" yaml:"page"`
	RunID      string    `json:"run_id" yaml:"run_id"`
	Saved      int       `json:"saved" yaml:"saved"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
}

// PageStats aggregates every manifest in storage.
type PageStats struct {
	Pages        int      `json:"pages" yaml:"pages"`
	FirstPage    int      `json:"first_page" yaml:"first_page"`
	LastPage     int      `json:"last_page" yaml:"last_page"`
	TilesSaved   int      `json:"tiles_saved" yaml:"tiles_saved"`
	TilesSkipped int      `json:"tiles_skipped" yaml:"tiles_skipped"`
	TilesFailed  int      `json:"tiles_failed" yaml:"tiles_failed"`
	RawErrors    int      `json:"raw_errors" yaml:"raw_errors"`
	Runs         []string `json:"runs" yaml:"runs"`
}
