package reader

import (
	"context"
	"fmt"
	"slices"

	"github.com/justapithecus/gridcap/types"
)

// ManifestSource is the storage surface the reader needs.
// *lode.Persister satisfies it.
type ManifestSource interface {
	LoadReport(ctx context.Context, page int) (*types.PageReport, error)
	ListReports(ctx context.Context) ([]int, error)
}

// Reader serves CLI read operations from persisted page manifests.
type Reader struct {
	src ManifestSource
}

// New creates a reader over src.
func New(src ManifestSource) *Reader {
	return &Reader{src: src}
}

// InspectPage returns the manifest for page.
func (r *Reader) InspectPage(ctx context.Context, page int) (*PageView, error) {
	report, err := r.src.LoadReport(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return pageView(report), nil
}

// ListPages returns a summary row for every stored manifest, by page.
func (r *Reader) ListPages(ctx context.Context) ([]ListPageItem, error) {
	items := []ListPageItem{}
	err := r.each(ctx, func(report *types.PageReport) {
		items = append(items, ListPageItem{
			Page:       report.Page,
			RunID:      report.RunID,
			Saved:      report.Saved,
			Skipped:    report.Skipped,
			Failed:     report.Failed,
			CapturedAt: report.CapturedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// StatsPages aggregates every stored manifest.
func (r *Reader) StatsPages(ctx context.Context) (*PageStats, error) {
	stats := &PageStats{FirstPage: -1, LastPage: -1, Runs: []string{}}
	err := r.each(ctx, func(report *types.PageReport) {
		if stats.Pages == 0 {
			stats.FirstPage = report.Page
		}
		stats.Pages++
		stats.LastPage = report.Page
		stats.TilesSaved += report.Saved
		stats.TilesSkipped += report.Skipped
		stats.TilesFailed += report.Failed
		if report.RawError != "" {
			stats.RawErrors++
		}
		if report.RunID != "" && !slices.Contains(stats.Runs, report.RunID) {
			stats.Runs = append(stats.Runs, report.RunID)
		}
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(stats.Runs)
	return stats, nil
}

func (r *Reader) each(ctx context.Context, fn func(*types.PageReport)) error {
	pages, err := r.src.ListReports(ctx)
	if err != nil {
		return fmt.Errorf("list manifests: %w", err)
	}
	for _, page := range pages {
		report, err := r.src.LoadReport(ctx, page)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		fn(report)
	}
	return nil
}

func pageView(report *types.PageReport) *PageView {
	g := report.Grid
	view := &PageView{
		RunID:      report.RunID,
		Page:       report.Page,
		Width:      report.Width,
		Height:     report.Height,
		Grid:       fmt.Sprintf("%dx%d of %dx%d at (%d,%d)", g.Rows, g.Cols, g.TileWidth, g.TileHeight, g.OriginX, g.OriginY),
		RawPath:    report.RawPath,
		RawError:   report.RawError,
		Saved:      report.Saved,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		CapturedAt: report.CapturedAt,
		Tiles:      make([]TileView, 0, len(report.Tiles)),
	}
	for _, t := range report.Tiles {
		detail := t.Path
		if t.Status != types.TileSaved {
			detail = t.Reason
		}
		view.Tiles = append(view.Tiles, TileView{
			Slot:   t.Slot,
			Row:    t.Row,
			Col:    t.Col,
			Name:   t.Name,
			Status: string(t.Status),
			Box:    t.Box.String(),
			Detail: detail,
		})
	}
	return view
}
