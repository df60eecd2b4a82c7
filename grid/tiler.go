// Package grid computes tile geometry for a captured page.
//
// Tiling is pure: it depends only on the snapshot dimensions and the
// operator-supplied GridConfig. Positions that would read outside the
// snapshot are flagged invalid rather than clipped.
package grid

import "github.com/justapithecus/gridcap/types"

// Tile returns one candidate per grid position in row-major order
// (index = row*cols + col). Candidates whose box does not fit inside
// width x height are returned with Valid=false.
func Tile(width, height int, cfg types.GridConfig) []types.TileCandidate {
	if cfg.Rows <= 0 || cfg.Cols <= 0 {
		return nil
	}

	candidates := make([]types.TileCandidate, 0, cfg.Slots())
	for row := 0; row < cfg.Rows; row++ {
		for col := 0; col < cfg.Cols; col++ {
			box := Box(row, col, cfg)
			candidates = append(candidates, types.TileCandidate{
				Row:   row,
				Col:   col,
				Index: row*cfg.Cols + col,
				Box:   box,
				Valid: box.Within(width, height),
			})
		}
	}
	return candidates
}

// Box returns the bounding box of grid position (row, col).
func Box(row, col int, cfg types.GridConfig) types.BoundingBox {
	return types.BoundingBox{
		Left:   cfg.OriginX + col*cfg.TileWidth,
		Top:    cfg.OriginY + row*cfg.TileHeight,
		Width:  cfg.TileWidth,
		Height: cfg.TileHeight,
	}
}

// Partition splits candidates into valid and invalid sets, preserving order.
func Partition(candidates []types.TileCandidate) (valid, invalid []types.TileCandidate) {
	for _, c := range candidates {
		if c.Valid {
			valid = append(valid, c)
		} else {
			invalid = append(invalid, c)
		}
	}
	return valid, invalid
}
