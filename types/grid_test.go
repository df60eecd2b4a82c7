package types //nolint:revive // types is a valid package name

import (
	"strings"
	"testing"
)

func TestGridConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GridConfig
		wantErr string
	}{
		{
			name: "valid with negative origin",
			cfg:  GridConfig{TileWidth: 10, TileHeight: 10, Rows: 1, Cols: 1, OriginX: -5, OriginY: 3},
		},
		{
			name:    "zero tile width",
			cfg:     GridConfig{TileWidth: 0, TileHeight: 10, Rows: 1, Cols: 1},
			wantErr: "tile_width",
		},
		{
			name:    "negative rows",
			cfg:     GridConfig{TileWidth: 10, TileHeight: 10, Rows: -1, Cols: 1},
			wantErr: "rows",
		},
		{
			name:    "zero cols",
			cfg:     GridConfig{TileWidth: 10, TileHeight: 10, Rows: 1, Cols: 0},
			wantErr: "cols",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestBoundingBox_Within(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		w, h int
		want bool
	}{
		{"exact fit", BoundingBox{Left: 100, Top: 100, Width: 100, Height: 100}, 200, 200, true},
		{"overflows right", BoundingBox{Left: 100, Top: 0, Width: 100, Height: 100}, 150, 200, false},
		{"overflows bottom", BoundingBox{Left: 0, Top: 100, Width: 100, Height: 100}, 200, 150, false},
		{"negative left", BoundingBox{Left: -1, Top: 0, Width: 10, Height: 10}, 200, 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Within(tt.w, tt.h); got != tt.want {
				t.Errorf("Within(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestPageReport_Add(t *testing.T) {
	var r PageReport
	r.Add(TileOutcome{Slot: 0, Status: TileSaved})
	r.Add(TileOutcome{Slot: 1, Status: TileSkipped})
	r.Add(TileOutcome{Slot: 2, Status: TileFailed})
	r.Add(TileOutcome{Slot: 3, Status: TileSaved})

	if r.Saved != 2 || r.Skipped != 1 || r.Failed != 1 {
		t.Errorf("counters = saved %d skipped %d failed %d, want 2/1/1", r.Saved, r.Skipped, r.Failed)
	}
	saved := r.Outcomes(TileSaved)
	if len(saved) != 2 || saved[0].Slot != 0 || saved[1].Slot != 3 {
		t.Errorf("Outcomes(saved) = %+v", saved)
	}
}

func TestOutcomeStatus_IsSuccess(t *testing.T) {
	for _, s := range []OutcomeStatus{OutcomeExhausted, OutcomeSinglePage, OutcomeOperatorQuit} {
		if !s.IsSuccess() {
			t.Errorf("%s.IsSuccess() = false, want true", s)
		}
	}
	for _, s := range []OutcomeStatus{OutcomePageFailure, OutcomeChannelClosed, OutcomeCanceled} {
		if s.IsSuccess() {
			t.Errorf("%s.IsSuccess() = true, want false", s)
		}
	}
}
