package types

import "time"

// TileStatus is the per-tile outcome of processing a page.
type TileStatus string

// Tile statuses.
const (
	TileSaved   TileStatus = "saved"
	TileSkipped TileStatus = "skipped"
	TileFailed  TileStatus = "failed"
)

// TileOutcome records what happened to one grid position.
type TileOutcome struct {
	Slot   int         `json:"slot" msgpack:"slot"`
	Row    int         `json:"row" msgpack:"row"`
	Col    int         `json:"col" msgpack:"col"`
	Name   string      `json:"name" msgpack:"name"`
	Box    BoundingBox `json:"box" msgpack:"box"`
	Status TileStatus  `json:"status" msgpack:"status"`
	// Reason explains a skip or failure. Empty for saved tiles.
	Reason string `json:"reason,omitempty" msgpack:"reason,omitempty"`
	// Path is the storage path of a saved tile.
	Path string `json:"path,omitempty" msgpack:"path,omitempty"`
}

// PageReport is the observable result of processing one page.
// It is persisted as the page manifest.
type PageReport struct {
	ManifestVersion string        `json:"manifest_version" msgpack:"manifest_version"`
	RunID           string        `json:"run_id" msgpack:"run_id"`
	Page            int           `json:"page" msgpack:"page"`
	Width           int           `json:"width" msgpack:"width"`
	Height          int           `json:"height" msgpack:"height"`
	Grid            GridConfig    `json:"grid" msgpack:"grid"`
	RawPath         string        `json:"raw_path,omitempty" msgpack:"raw_path,omitempty"`
	RawError        string        `json:"raw_error,omitempty" msgpack:"raw_error,omitempty"`
	Tiles           []TileOutcome `json:"tiles" msgpack:"tiles"`
	Saved           int           `json:"saved" msgpack:"saved"`
	Skipped         int           `json:"skipped" msgpack:"skipped"`
	Failed          int           `json:"failed" msgpack:"failed"`
	CapturedAt      time.Time     `json:"captured_at" msgpack:"captured_at"`
}

// Add appends an outcome and updates the counters.
func (r *PageReport) Add(o TileOutcome) {
	r.Tiles = append(r.Tiles, o)
	switch o.Status {
	case TileSaved:
		r.Saved++
	case TileSkipped:
		r.Skipped++
	case TileFailed:
		r.Failed++
	}
}

// Outcomes returns the outcomes with the given status, in slot order.
func (r *PageReport) Outcomes(status TileStatus) []TileOutcome {
	var out []TileOutcome
	for _, o := range r.Tiles {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}
