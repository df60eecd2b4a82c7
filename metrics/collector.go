// Package metrics provides per-run counters for the extraction pipeline.
//
// The Collector is a leaf package with no internal dependencies. All
// increment methods are nil-receiver safe so components can run without
// metrics wired in.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Pages
	PagesRequested int64 `json:"pages_requested"`
	PagesCompleted int64 `json:"pages_completed"`
	PagesFailed    int64 `json:"pages_failed"`

	// Tiles
	TilesSaved   int64 `json:"tiles_saved"`
	TilesSkipped int64 `json:"tiles_skipped"`
	TilesFailed  int64 `json:"tiles_failed"`

	// Control channel
	LinesReceived     int64 `json:"lines_received"`
	LinesUnrecognized int64 `json:"lines_unrecognized"`
	SlotEvents        int64 `json:"slot_events"`

	// Capture
	CaptureSuccess int64 `json:"capture_success"`
	CaptureFailure int64 `json:"capture_failure"`

	// Storage (per object write)
	StorageWriteSuccess int64 `json:"storage_write_success"`
	StorageWriteFailure int64 `json:"storage_write_failure"`

	// Dimensions (informational, set at construction)
	StorageBackend string `json:"storage_backend"`
	RunID          string `json:"run_id"`
}

// Collector accumulates counters during a single run.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(storageBackend, runID string) *Collector {
	return &Collector{
		s: Snapshot{
			StorageBackend: storageBackend,
			RunID:          runID,
		},
	}
}

func (c *Collector) add(f func(*Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	f(&c.s)
	c.mu.Unlock()
}

// --- Pages ---

// IncPageRequested records a page request written to the renderer.
func (c *Collector) IncPageRequested() { c.add(func(s *Snapshot) { s.PagesRequested++ }) }

// IncPageCompleted records a page whose tiles were processed.
func (c *Collector) IncPageCompleted() { c.add(func(s *Snapshot) { s.PagesCompleted++ }) }

// IncPageFailed records a page abandoned due to a capture failure.
func (c *Collector) IncPageFailed() { c.add(func(s *Snapshot) { s.PagesFailed++ }) }

// --- Tiles ---

// AddTiles records per-tile outcomes for one page.
func (c *Collector) AddTiles(saved, skipped, failed int) {
	c.add(func(s *Snapshot) {
		s.TilesSaved += int64(saved)
		s.TilesSkipped += int64(skipped)
		s.TilesFailed += int64(failed)
	})
}

// --- Control channel ---

// IncLineReceived records an inbound protocol line.
func (c *Collector) IncLineReceived() { c.add(func(s *Snapshot) { s.LinesReceived++ }) }

// IncLineUnrecognized records an inbound line that matched no pattern.
func (c *Collector) IncLineUnrecognized() { c.add(func(s *Snapshot) { s.LinesUnrecognized++ }) }

// IncSlotEvent records a slot announcement.
func (c *Collector) IncSlotEvent() { c.add(func(s *Snapshot) { s.SlotEvents++ }) }

// --- Capture ---

// IncCaptureSuccess records a successful snapshot.
func (c *Collector) IncCaptureSuccess() { c.add(func(s *Snapshot) { s.CaptureSuccess++ }) }

// IncCaptureFailure records a failed snapshot.
func (c *Collector) IncCaptureFailure() { c.add(func(s *Snapshot) { s.CaptureFailure++ }) }

// --- Storage ---

// IncStorageWriteSuccess records a successful object write.
func (c *Collector) IncStorageWriteSuccess() { c.add(func(s *Snapshot) { s.StorageWriteSuccess++ }) }

// IncStorageWriteFailure records a failed object write.
func (c *Collector) IncStorageWriteFailure() { c.add(func(s *Snapshot) { s.StorageWriteFailure++ }) }

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
