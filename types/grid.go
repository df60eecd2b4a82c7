package types

import (
	"errors"
	"fmt"
)

// GridConfig describes the fixed grid the renderer populates per page.
// Rows*Cols must equal the renderer's paging unit; it cannot be derived
// from the captured image.
type GridConfig struct {
	// TileWidth is the width of one grid cell in pixels.
	TileWidth int `json:"tile_width" msgpack:"tile_width"`
	// TileHeight is the height of one grid cell in pixels.
	TileHeight int `json:"tile_height" msgpack:"tile_height"`
	// Rows is the number of grid rows.
	Rows int `json:"rows" msgpack:"rows"`
	// Cols is the number of grid columns.
	Cols int `json:"cols" msgpack:"cols"`
	// OriginX is the screen x coordinate of the top-left cell.
	OriginX int `json:"origin_x" msgpack:"origin_x"`
	// OriginY is the screen y coordinate of the top-left cell.
	OriginY int `json:"origin_y" msgpack:"origin_y"`
}

// Slots returns the number of grid positions per page.
func (g GridConfig) Slots() int {
	return g.Rows * g.Cols
}

// Validate checks that sizes and counts are positive.
func (g GridConfig) Validate() error {
	var errs []error
	if g.TileWidth <= 0 {
		errs = append(errs, fmt.Errorf("tile_width must be > 0, got %d", g.TileWidth))
	}
	if g.TileHeight <= 0 {
		errs = append(errs, fmt.Errorf("tile_height must be > 0, got %d", g.TileHeight))
	}
	if g.Rows <= 0 {
		errs = append(errs, fmt.Errorf("rows must be > 0, got %d", g.Rows))
	}
	if g.Cols <= 0 {
		errs = append(errs, fmt.Errorf("cols must be > 0, got %d", g.Cols))
	}
	return errors.Join(errs...)
}

// BoundingBox is a rectangle in snapshot pixel coordinates.
type BoundingBox struct {
	Left   int `json:"left" msgpack:"left"`
	Top    int `json:"top" msgpack:"top"`
	Width  int `json:"width" msgpack:"width"`
	Height int `json:"height" msgpack:"height"`
}

// Right returns the exclusive right edge.
func (b BoundingBox) Right() int { return b.Left + b.Width }

// Bottom returns the exclusive bottom edge.
func (b BoundingBox) Bottom() int { return b.Top + b.Height }

// Within reports whether the box lies entirely inside a width x height image.
func (b BoundingBox) Within(width, height int) bool {
	return b.Left >= 0 && b.Top >= 0 && b.Right() <= width && b.Bottom() <= height
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.Left, b.Top, b.Width, b.Height)
}

// TileCandidate is one grid position computed for a snapshot.
// Invalid candidates fall outside the snapshot and must not be cropped.
type TileCandidate struct {
	Row   int
	Col   int
	Index int
	Box   BoundingBox
	Valid bool
}
