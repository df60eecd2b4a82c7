package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("fs", "run-001")

	c.IncPageRequested()
	c.IncPageRequested()
	c.IncPageCompleted()
	c.IncPageFailed()
	c.AddTiles(3, 1, 0)
	c.AddTiles(50, 0, 4)
	c.IncLineReceived()
	c.IncLineReceived()
	c.IncLineReceived()
	c.IncLineUnrecognized()
	c.IncSlotEvent()
	c.IncCaptureSuccess()
	c.IncCaptureFailure()
	c.IncStorageWriteSuccess()
	c.IncStorageWriteFailure()

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"PagesRequested", s.PagesRequested, 2},
		{"PagesCompleted", s.PagesCompleted, 1},
		{"PagesFailed", s.PagesFailed, 1},
		{"TilesSaved", s.TilesSaved, 53},
		{"TilesSkipped", s.TilesSkipped, 1},
		{"TilesFailed", s.TilesFailed, 4},
		{"LinesReceived", s.LinesReceived, 3},
		{"LinesUnrecognized", s.LinesUnrecognized, 1},
		{"SlotEvents", s.SlotEvents, 1},
		{"CaptureSuccess", s.CaptureSuccess, 1},
		{"CaptureFailure", s.CaptureFailure, 1},
		{"StorageWriteSuccess", s.StorageWriteSuccess, 1},
		{"StorageWriteFailure", s.StorageWriteFailure, 1},
	}
	for _, ch := range checks {
		if ch.got != ch.want {
			t.Errorf("%s = %d, want %d", ch.name, ch.got, ch.want)
		}
	}
}

func TestCollector_Dimensions(t *testing.T) {
	s := NewCollector("s3", "run-42").Snapshot()
	if s.StorageBackend != "s3" {
		t.Errorf("StorageBackend = %q, want %q", s.StorageBackend, "s3")
	}
	if s.RunID != "run-42" {
		t.Errorf("RunID = %q, want %q", s.RunID, "run-42")
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.IncPageRequested()
	c.AddTiles(1, 1, 1)
	c.IncStorageWriteFailure()
	if s := c.Snapshot(); s.PagesRequested != 0 {
		t.Errorf("nil collector snapshot = %+v, want zero", s)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector("fs", "run")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncLineReceived()
			c.IncStorageWriteSuccess()
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.LinesReceived != 50 || s.StorageWriteSuccess != 50 {
		t.Errorf("got lines=%d writes=%d, want 50/50", s.LinesReceived, s.StorageWriteSuccess)
	}
}
