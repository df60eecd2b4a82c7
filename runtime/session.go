package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/justapithecus/gridcap/capture"
	"github.com/justapithecus/gridcap/log"
	"github.com/justapithecus/gridcap/metrics"
	"github.com/justapithecus/gridcap/types"
)

// DefaultShutdownTimeout bounds how long the server gets to exit after
// the shutdown command before it is killed.
const DefaultShutdownTimeout = 10 * time.Second

// Executor abstracts server process lifecycle for testing.
type Executor interface {
	Start(ctx context.Context) error
	Stdin() io.Writer
	Stdout() io.Reader
	Wait() (*ExecutorResult, error)
	Kill() error
}

// ExecutorFactory creates an Executor. Used for test injection.
type ExecutorFactory func(config *ServerConfig) Executor

// SessionConfig configures a single extraction session.
type SessionConfig struct {
	// RunID identifies the session in logs, reports and manifests.
	RunID string
	// Server is the external process to drive.
	Server ServerConfig
	// ExecutorFactory overrides process creation (for testing).
	// If nil, uses NewServerProcess.
	ExecutorFactory ExecutorFactory
	// CommandPrefix precedes "page:<n>". Empty writes the bare request.
	CommandPrefix string
	// Mode is used when the session starts itself.
	Mode Mode
	// Interactive waits for operator commands instead of starting itself.
	Interactive bool
	// ReadyPattern, if set, defers the automatic start until a server
	// line matches it.
	ReadyPattern *regexp.Regexp
	// Operator is the console command stream. May be nil.
	Operator io.Reader
	// ShutdownCommand is written to the server at teardown. If empty the
	// server is killed.
	ShutdownCommand string
	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	Grid     types.GridConfig
	Capturer capture.Capturer
	Store    PageStore

	// Logger defaults to a logger carrying RunID.
	Logger *log.Logger
	// Collector may be nil (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// OnTransition observes machine state changes. May be nil.
	OnTransition TransitionFunc
	// OnPage is called after every processed page. May be nil.
	OnPage func(*types.PageReport)
}

// SessionResult represents the result of a session.
type SessionResult struct {
	RunID    string
	Mode     Mode
	Outcome  *types.RunOutcome
	Duration time.Duration
	// Reports holds one entry per processed page, in order.
	Reports []*types.PageReport
	// LastPage is the last processed page, or -1.
	LastPage     int
	TilesSaved   int
	TilesSkipped int
	TilesFailed  int
	// ServerExitCode is -1 when the exit status is unknown.
	ServerExitCode int
	StderrTail     string
}

// PagesCompleted returns the number of processed pages.
func (r *SessionResult) PagesCompleted() int {
	return len(r.Reports)
}

// Session runs the extraction loop against one server process.
type Session struct {
	config    *SessionConfig
	logger    *log.Logger
	startTime time.Time
	reports   []*types.PageReport
}

// NewSession creates a new session.
func NewSession(config *SessionConfig) (*Session, error) {
	if config.RunID == "" {
		return nil, errors.New("run id is required")
	}
	if config.Mode == "" {
		config.Mode = ModeContinuous
	}
	if _, err := ParseMode(string(config.Mode)); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(log.RunContext{RunID: config.RunID, Mode: string(config.Mode)})
	}
	return &Session{config: config, logger: logger}, nil
}

// Execute runs the session end-to-end.
//
// Execution flow:
//  1. Start server process
//  2. Start line reader (and operator reader)
//  3. Request page 0 (immediately, on ready line, or on operator command)
//  4. Feed events to the machine until a terminal condition
//  5. Shut the server down
//  6. Return result
//
// Execute returns an error only for invalid configuration; every runtime
// failure is reported through the result outcome.
func (s *Session) Execute(ctx context.Context) (*SessionResult, error) {
	s.startTime = time.Now()

	machine, err := NewMachine(MachineConfig{
		Grid:         s.config.Grid,
		Capturer:     s.config.Capturer,
		Store:        s.config.Store,
		RunID:        s.config.RunID,
		Logger:       s.logger,
		Collector:    s.config.Collector,
		OnTransition: s.config.OnTransition,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting session", map[string]any{
		"server":      s.config.Server.Path,
		"mode":        string(s.config.Mode),
		"interactive": s.config.Interactive,
	})

	var executor Executor
	if s.config.ExecutorFactory != nil {
		executor = s.config.ExecutorFactory(&s.config.Server)
	} else {
		executor = NewServerProcess(&s.config.Server)
	}

	if err := executor.Start(ctx); err != nil {
		s.logger.Error("failed to start server", map[string]any{"error": err.Error()})
		return s.buildResult(&types.RunOutcome{
			Status:  types.OutcomeChannelClosed,
			Message: fmt.Sprintf("failed to start server: %v", err),
		}, nil), nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	coord := NewCoordinator(executor.Stdin(), executor.Stdout(), s.config.CommandPrefix, s.logger, s.config.Collector)
	events := coord.Start(loopCtx)

	var ops <-chan OperatorCommand
	if s.config.Operator != nil {
		ch := make(chan OperatorCommand)
		go readOperator(loopCtx, s.config.Operator, ch, s.logger)
		ops = ch
	}

	outcome := s.loop(ctx, machine, coord, events, ops)

	// Stop delivery before Wait closes the stdout pipe under the reader.
	cancel()
	execResult := s.shutdown(coord, executor, outcome)

	s.logger.Info("session finished", map[string]any{
		"outcome":  string(outcome.Status),
		"pages":    len(s.reports),
		"duration": time.Since(s.startTime).String(),
	})
	return s.buildResult(outcome, execResult), nil
}

func (s *Session) loop(
	ctx context.Context,
	m *Machine,
	coord *Coordinator,
	events <-chan Inbound,
	ops <-chan OperatorCommand,
) *types.RunOutcome {
	started := false
	begin := func(mode Mode) error {
		started = true
		req := m.Start(mode)
		s.logger.Info("starting extraction", map[string]any{"mode": string(mode)})
		return coord.RequestPage(req)
	}

	autoStart := !s.config.Interactive
	if autoStart && s.config.ReadyPattern == nil {
		if err := begin(s.config.Mode); err != nil {
			return channelOutcome(err)
		}
	}

	// last is the most recent finished extraction in interactive mode.
	var last *types.RunOutcome
	// deferred holds a start/once typed mid-extraction. It runs once the
	// machine is Done, so a restart never mixes slot names of two pages.
	var deferred OperatorCommand

	for {
		select {
		case <-ctx.Done():
			return &types.RunOutcome{
				Status:  types.OutcomeCanceled,
				Message: fmt.Sprintf("session canceled: %v", ctx.Err()),
			}

		case cmd, ok := <-ops:
			if !ok {
				ops = nil
				if s.config.Interactive && !running(m) {
					if last != nil {
						return last
					}
					return &types.RunOutcome{
						Status:  types.OutcomeOperatorQuit,
						Message: "operator input closed",
					}
				}
				continue
			}

			if cmd == CommandQuit {
				return &types.RunOutcome{Status: types.OutcomeOperatorQuit, Message: "operator quit"}
			}
			if running(m) {
				deferred = cmd
				s.logger.Info("operator command deferred until the extraction finishes", map[string]any{
					"command": string(cmd),
					"page":    m.Page(),
				})
				continue
			}
			if err := begin(commandMode(cmd)); err != nil {
				return channelOutcome(err)
			}

		case in, ok := <-events:
			if !ok {
				return channelOutcome(&ChannelError{Kind: ChannelErrorClosed, Err: io.EOF})
			}
			if in.Err != nil {
				return channelOutcome(in.Err)
			}

			if autoStart && !started && s.config.ReadyPattern != nil && s.config.ReadyPattern.MatchString(in.Line) {
				s.logger.Info("server ready", map[string]any{"line": in.Line})
				if err := begin(s.config.Mode); err != nil {
					return channelOutcome(err)
				}
				continue
			}

			step, err := m.Handle(ctx, in.Event)
			if step.Report != nil {
				s.reports = append(s.reports, step.Report)
				if s.config.OnPage != nil {
					s.config.OnPage(step.Report)
				}
			}
			if err != nil {
				return &types.RunOutcome{Status: types.OutcomePageFailure, Message: err.Error()}
			}
			if step.Request != nil {
				if err := coord.RequestPage(*step.Request); err != nil {
					return channelOutcome(err)
				}
			}
			if step.Done {
				outcome := doneOutcome(m)
				if !s.config.Interactive {
					return outcome
				}
				last = outcome
				if deferred != "" {
					cmd := deferred
					deferred = ""
					if err := begin(commandMode(cmd)); err != nil {
						return channelOutcome(err)
					}
					continue
				}
				if ops == nil {
					return outcome
				}
				s.logger.Info("extraction finished, waiting for operator", map[string]any{
					"outcome": string(outcome.Status),
					"message": outcome.Message,
				})
			}
		}
	}
}

// commandMode maps an operator start command to its extraction mode.
func commandMode(cmd OperatorCommand) Mode {
	if cmd == CommandOnce {
		return ModeSinglePage
	}
	return ModeContinuous
}

// running reports whether a page run is in progress.
func running(m *Machine) bool {
	return m.State() != StateIdle && m.State() != StateDone
}

func doneOutcome(m *Machine) *types.RunOutcome {
	switch m.Outcome() {
	case types.OutcomeExhausted:
		return &types.RunOutcome{
			Status:  types.OutcomeExhausted,
			Message: fmt.Sprintf("no entries on page %d", m.Page()),
		}
	case types.OutcomeSinglePage:
		return &types.RunOutcome{
			Status:  types.OutcomeSinglePage,
			Message: fmt.Sprintf("page %d processed", m.Page()),
		}
	default:
		return &types.RunOutcome{Status: m.Outcome(), Message: "extraction stopped"}
	}
}

func channelOutcome(err error) *types.RunOutcome {
	return &types.RunOutcome{
		Status:  types.OutcomeChannelClosed,
		Message: err.Error(),
	}
}

type waitResult struct {
	result *ExecutorResult
	err    error
}

// shutdown asks the server to stop (or kills it) and reaps it.
func (s *Session) shutdown(coord *Coordinator, executor Executor, outcome *types.RunOutcome) *ExecutorResult {
	graceful := s.config.ShutdownCommand != "" && outcome.Status != types.OutcomeChannelClosed
	if graceful {
		s.logger.Info("stopping server", map[string]any{"command": s.config.ShutdownCommand})
		if err := coord.SendCommand(s.config.ShutdownCommand); err != nil {
			s.logger.Warn("shutdown command failed", map[string]any{"error": err.Error()})
			_ = executor.Kill()
		}
	} else {
		_ = executor.Kill()
	}

	done := make(chan waitResult, 1)
	go func() {
		r, err := executor.Wait()
		done <- waitResult{result: r, err: err}
	}()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	var w waitResult
	select {
	case w = <-done:
	case <-time.After(timeout):
		s.logger.Warn("server did not exit, killing", map[string]any{"timeout": timeout.String()})
		_ = executor.Kill()
		w = <-done
	}

	if w.err != nil {
		s.logger.Warn("server wait failed", map[string]any{"error": w.err.Error()})
		return nil
	}
	return w.result
}

// buildResult constructs the final session result.
func (s *Session) buildResult(outcome *types.RunOutcome, execResult *ExecutorResult) *SessionResult {
	result := &SessionResult{
		RunID:          s.config.RunID,
		Mode:           s.config.Mode,
		Outcome:        outcome,
		Duration:       time.Since(s.startTime),
		Reports:        s.reports,
		LastPage:       -1,
		ServerExitCode: -1,
	}

	for _, r := range s.reports {
		result.LastPage = r.Page
		result.TilesSaved += r.Saved
		result.TilesSkipped += r.Skipped
		result.TilesFailed += r.Failed
	}

	if execResult != nil {
		result.ServerExitCode = execResult.ExitCode
		result.StderrTail = string(execResult.StderrTail)
	}
	return result
}

