package runtime

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/justapithecus/gridcap/capture"
	"github.com/justapithecus/gridcap/grid"
	"github.com/justapithecus/gridcap/log"
	"github.com/justapithecus/gridcap/metrics"
	"github.com/justapithecus/gridcap/naming"
	"github.com/justapithecus/gridcap/types"
)

// State is a page state machine state.
type State int

const (
	StateIdle State = iota
	StateAwaitingNaming
	StateReadyToCapture
	StateCapturing
	StateTiling
	StatePersisting
	StateAdvancing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingNaming:
		return "awaiting_naming"
	case StateReadyToCapture:
		return "ready_to_capture"
	case StateCapturing:
		return "capturing"
	case StateTiling:
		return "tiling"
	case StatePersisting:
		return "persisting"
	case StateAdvancing:
		return "advancing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode selects whether the machine advances after a page.
type Mode string

const (
	// ModeContinuous advances until an empty page.
	ModeContinuous Mode = "continuous"
	// ModeSinglePage stops after page 0.
	ModeSinglePage Mode = "once"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeContinuous, "":
		return ModeContinuous, nil
	case ModeSinglePage:
		return ModeSinglePage, nil
	default:
		return "", fmt.Errorf("unknown mode %q (must be continuous or once)", s)
	}
}

// PageStore persists the output of one page.
type PageStore interface {
	SaveRaw(ctx context.Context, page int, raw []byte) (string, error)
	SaveTile(ctx context.Context, name string, snap *capture.Snapshot, box types.BoundingBox) (string, error)
	SaveReport(ctx context.Context, report *types.PageReport) error
}

// TransitionFunc observes every state change.
type TransitionFunc func(from, to State)

// MachineConfig configures a Machine.
type MachineConfig struct {
	Grid     types.GridConfig
	Capturer capture.Capturer
	Store    PageStore
	// RunID is stamped on every page report.
	RunID string
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector
	// OnTransition may be nil.
	OnTransition TransitionFunc
}

// Step is what the caller must act on after an event.
type Step struct {
	// Request is the next page to ask for, if any.
	Request *types.PageRequest
	// Report is set when a page finished processing.
	Report *types.PageReport
	// Done is set when the machine reached StateDone.
	Done bool
}

// Machine drives one page at a time from naming through persistence.
// It is not safe for concurrent use; the session loop is its only caller.
type Machine struct {
	cfg       MachineConfig
	logger    *log.Logger
	state     State
	mode      Mode
	page      int
	names     types.SlotNameMap
	exhausted bool
	outcome   types.OutcomeStatus
}

// NewMachine validates cfg and returns an idle machine.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	var errs []error
	if err := cfg.Grid.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Capturer == nil {
		errs = append(errs, errors.New("capturer is required"))
	}
	if cfg.Store == nil {
		errs = append(errs, errors.New("page store is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid machine config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Machine{
		cfg:    cfg,
		logger: logger,
		state:  StateIdle,
		names:  types.SlotNameMap{},
	}, nil
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Page returns the current page number.
func (m *Machine) Page() int { return m.page }

// Mode returns the mode of the current run.
func (m *Machine) Mode() Mode { return m.mode }

// Exhausted reports whether an empty page ended the run.
func (m *Machine) Exhausted() bool { return m.exhausted }

// Outcome is the reason the machine reached StateDone, or "" before that.
func (m *Machine) Outcome() types.OutcomeStatus { return m.outcome }

// Names returns a copy of the slot names gathered for the current page.
func (m *Machine) Names() types.SlotNameMap { return maps.Clone(m.names) }

// Start resets all per-run state and returns the request for page 0.
// It may be called in any state; an in-flight run is abandoned.
func (m *Machine) Start(mode Mode) types.PageRequest {
	m.mode = mode
	m.page = 0
	m.exhausted = false
	m.outcome = ""
	m.names = types.SlotNameMap{}
	m.transition(StateAwaitingNaming)
	return types.PageRequest{Page: 0}
}

// Handle applies one inbound event. Events that arrive outside
// StateAwaitingNaming are ignored. The returned error is a *PageError
// when a page had to be abandoned.
func (m *Machine) Handle(ctx context.Context, ev types.Event) (Step, error) {
	if m.state != StateAwaitingNaming {
		m.logger.Debug("ignoring event", map[string]any{
			"state": m.state.String(),
			"kind":  string(ev.Kind()),
		})
		return Step{}, nil
	}

	switch e := ev.(type) {
	case types.SlotNameEvent:
		m.names[e.Slot] = e.Name
		m.cfg.Collector.IncSlotEvent()
		return Step{}, nil

	case types.PageCompletionSignal:
		if e.Page != m.page {
			m.logger.Warn("ignoring stale page completion", map[string]any{
				"signaled": e.Page,
				"current":  m.page,
			})
			return Step{}, nil
		}
		if len(m.names) == 0 {
			m.exhausted = true
			m.finish(types.OutcomeExhausted)
			m.logger.Info("catalog exhausted", map[string]any{"page": m.page})
			return Step{Done: true}, nil
		}
		m.transition(StateReadyToCapture)
		return m.processPage(ctx)

	default:
		return Step{}, nil
	}
}

func (m *Machine) processPage(ctx context.Context) (Step, error) {
	m.transition(StateCapturing)
	snap, err := m.cfg.Capturer.Capture(ctx)
	if err != nil {
		m.cfg.Collector.IncCaptureFailure()
		m.cfg.Collector.IncPageFailed()
		m.logger.Error("capture failed", map[string]any{
			"page":  m.page,
			"error": err.Error(),
		})
		m.finish(types.OutcomePageFailure)
		return Step{Done: true}, &PageError{Page: m.page, Err: fmt.Errorf("capture: %w", err)}
	}
	m.cfg.Collector.IncCaptureSuccess()

	m.transition(StateTiling)
	candidates := grid.Tile(snap.Width, snap.Height, m.cfg.Grid)

	m.transition(StatePersisting)
	report := m.persist(ctx, snap, candidates)

	m.cfg.Collector.AddTiles(report.Saved, report.Skipped, report.Failed)
	m.cfg.Collector.IncPageCompleted()
	m.logger.Info("page complete", map[string]any{
		"page":    m.page,
		"saved":   report.Saved,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})

	if m.mode == ModeSinglePage {
		m.finish(types.OutcomeSinglePage)
		return Step{Report: report, Done: true}, nil
	}

	m.transition(StateAdvancing)
	m.page++
	m.names = types.SlotNameMap{}
	m.transition(StateAwaitingNaming)
	return Step{Request: &types.PageRequest{Page: m.page}, Report: report}, nil
}

// persist writes the raw snapshot, every valid tile, then the manifest.
// Individual failures are recorded on the report and never abort the page.
func (m *Machine) persist(ctx context.Context, snap *capture.Snapshot, candidates []types.TileCandidate) *types.PageReport {
	report := &types.PageReport{
		ManifestVersion: types.ManifestVersion,
		RunID:           m.cfg.RunID,
		Page:            m.page,
		Width:           snap.Width,
		Height:          snap.Height,
		Grid:            m.cfg.Grid,
		CapturedAt:      snap.CapturedAt,
	}

	rawPath, err := m.cfg.Store.SaveRaw(ctx, m.page, snap.Raw)
	if err != nil {
		report.RawError = err.Error()
		m.logger.Warn("raw snapshot not saved", map[string]any{
			"page":  m.page,
			"error": err.Error(),
		})
	} else {
		report.RawPath = rawPath
	}

	for _, c := range candidates {
		outcome := types.TileOutcome{
			Slot: c.Index,
			Row:  c.Row,
			Col:  c.Col,
			Name: naming.Resolve(c.Index, m.names, m.page),
			Box:  c.Box,
		}

		if !c.Valid {
			outcome.Status = types.TileSkipped
			outcome.Reason = fmt.Sprintf("box %s outside %dx%d snapshot", c.Box, snap.Width, snap.Height)
			m.logger.Warn("skipping tile", map[string]any{
				"page": m.page,
				"slot": c.Index,
				"name": outcome.Name,
				"box":  c.Box.String(),
			})
			report.Add(outcome)
			continue
		}

		path, err := m.cfg.Store.SaveTile(ctx, outcome.Name, snap, c.Box)
		if err != nil {
			outcome.Status = types.TileFailed
			outcome.Reason = err.Error()
			m.logger.Error("tile not saved", map[string]any{
				"page":  m.page,
				"slot":  c.Index,
				"name":  outcome.Name,
				"error": err.Error(),
			})
		} else {
			outcome.Status = types.TileSaved
			outcome.Path = path
			m.logger.Debug("tile saved", map[string]any{"page": m.page, "path": path})
		}
		report.Add(outcome)
	}

	if err := m.cfg.Store.SaveReport(ctx, report); err != nil {
		m.logger.Warn("page manifest not saved", map[string]any{
			"page":  m.page,
			"error": err.Error(),
		})
	}
	return report
}

func (m *Machine) finish(outcome types.OutcomeStatus) {
	m.outcome = outcome
	m.transition(StateDone)
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(from, to)
	}
}
