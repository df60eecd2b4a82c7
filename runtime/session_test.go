package runtime

import (
	"context"
	"errors"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	lodestore "github.com/justapithecus/lode/lode"

	"github.com/justapithecus/gridcap/log"
	"github.com/justapithecus/gridcap/lode"
	"github.com/justapithecus/gridcap/metrics"
	"github.com/justapithecus/gridcap/types"
)

// lineSink is a non-blocking stdin: complete lines are queued for the
// scripted server.
type lineSink struct {
	mu      sync.Mutex
	ch      chan string
	pending string
	closed  bool
}

func newLineSink() *lineSink {
	return &lineSink{ch: make(chan string, 64)}
}

func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.pending += string(p)
	for {
		i := strings.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		s.ch <- s.pending[:i]
		s.pending = s.pending[i+1:]
	}
	return len(p), nil
}

func (s *lineSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

var pageRequestLine = regexp.MustCompile(`page:(\d+)$`)

// scriptedServer answers page requests with canned lines.
type scriptedServer struct {
	banner      []string
	pages       map[int][]string
	stopCommand string
	// crashOnPage closes stdout when that page is requested.
	crashOnPage int
	// exitAfterBanner closes stdout once the banner is written.
	exitAfterBanner bool
	startErr    error
	// holdPage waits for release before answering that page.
	holdPage int
	release  chan struct{}

	stdin   *lineSink
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	mu       sync.Mutex
	received []string
	killed   bool

	done       chan struct{}
	finishOnce sync.Once
}

func newScriptedServer(pages map[int][]string) *scriptedServer {
	return &scriptedServer{
		pages:       pages,
		stopCommand: "stop",
		crashOnPage: -1,
		holdPage:    -1,
		done:        make(chan struct{}),
	}
}

func (s *scriptedServer) factory() ExecutorFactory {
	return func(_ *ServerConfig) Executor { return s }
}

func (s *scriptedServer) Start(_ context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.stdin = newLineSink()
	s.stdoutR, s.stdoutW = io.Pipe()
	go s.serve()
	return nil
}

func (s *scriptedServer) serve() {
	defer s.finish()
	for _, l := range s.banner {
		if !s.emit(l) {
			return
		}
	}
	if s.exitAfterBanner {
		return
	}
	for line := range s.stdin.ch {
		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()

		if line == s.stopCommand {
			return
		}
		m := pageRequestLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n == s.crashOnPage {
			return
		}
		if n == s.holdPage {
			<-s.release
		}
		for _, l := range s.pages[n] {
			if !s.emit(l) {
				return
			}
		}
	}
}

func (s *scriptedServer) emit(line string) bool {
	_, err := io.WriteString(s.stdoutW, line+"\n")
	return err == nil
}

func (s *scriptedServer) finish() {
	s.finishOnce.Do(func() {
		_ = s.stdoutW.Close()
		close(s.done)
	})
}

func (s *scriptedServer) Stdin() io.Writer  { return s.stdin }
func (s *scriptedServer) Stdout() io.Reader { return s.stdoutR }

func (s *scriptedServer) Wait() (*ExecutorResult, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.killed {
		return &ExecutorResult{ExitCode: -1}, nil
	}
	return &ExecutorResult{ExitCode: 0, StderrTail: []byte("bye")}, nil
}

func (s *scriptedServer) Kill() error {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()
	s.stdin.close()
	s.finish()
	return nil
}

func (s *scriptedServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func threePageCatalog() map[int][]string {
	return map[int][]string{
		0: {
			"[Scripting] item_slot:0:minecraft:dirt",
			"[Scripting] item_slot:3:minecraft:stone",
			"[Scripting] __next__ page:0",
		},
		1: {
			"[Scripting] item_slot:0:minecraft:oak_log",
			"[INFO] Player joined",
			"[Scripting] __next__ page:1",
		},
		2: {
			"[Scripting] __next__ page:2",
		},
	}
}

func newTestSessionConfig(server *scriptedServer, store PageStore) *SessionConfig {
	return &SessionConfig{
		RunID:           "run-session",
		ExecutorFactory: server.factory(),
		CommandPrefix:   "scriptevent mimi:tera",
		Mode:            ModeContinuous,
		ShutdownCommand: "stop",
		ShutdownTimeout: time.Second,
		Grid:            twoByTwo(),
		Capturer:        &fakeCapturer{snap: newSnapshot(200, 200)},
		Store:           store,
		Logger:          log.Nop(),
	}
}

func execute(t *testing.T, cfg *SessionConfig) *SessionResult {
	t.Helper()
	session, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	result, err := session.Execute(t.Context())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return result
}

func TestSession_ContinuousUntilExhausted(t *testing.T) {
	server := newScriptedServer(threePageCatalog())
	store := lodestore.NewMemory()
	persister := lode.NewPersister(store, lode.DefaultLayout(), nil)
	collector := metrics.NewCollector("memory", "run-session")

	cfg := newTestSessionConfig(server, persister)
	cfg.Collector = collector
	var pages []int
	cfg.OnPage = func(r *types.PageReport) { pages = append(pages, r.Page) }

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeExhausted {
		t.Fatalf("outcome = %+v, want exhausted", result.Outcome)
	}
	if ExitCodeFor(result.Outcome.Status) != ExitCodeSuccess {
		t.Error("exhausted should exit 0")
	}
	if result.PagesCompleted() != 2 || result.LastPage != 1 {
		t.Errorf("pages=%d last=%d, want 2/1", result.PagesCompleted(), result.LastPage)
	}
	if result.TilesSaved != 8 {
		t.Errorf("tiles saved = %d, want 8", result.TilesSaved)
	}
	if len(pages) != 2 || pages[0] != 0 || pages[1] != 1 {
		t.Errorf("OnPage saw %v", pages)
	}

	want := []string{
		"scriptevent mimi:tera page:0",
		"scriptevent mimi:tera page:1",
		"scriptevent mimi:tera page:2",
		"stop",
	}
	got := server.Received()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("server received %q, want %q", got, want)
	}
	if result.ServerExitCode != 0 || result.StderrTail != "bye" {
		t.Errorf("server exit=%d stderr=%q", result.ServerExitCode, result.StderrTail)
	}

	listed, err := persister.ListReports(t.Context())
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("manifests = %v, want pages 0 and 1", listed)
	}
	report, err := persister.LoadReport(t.Context(), 0)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if report.Tiles[0].Name != "dirt" || report.Tiles[3].Name != "stone" || report.RunID != "run-session" {
		t.Errorf("page 0 manifest = %+v", report.Tiles)
	}
	for _, key := range []string{"cropped/dirt.png", "cropped/stone.png", "cropped/oak_log.png", "raw/page-1.png"} {
		ok, err := store.Exists(t.Context(), key)
		if err != nil || !ok {
			t.Errorf("expected %s to exist (err=%v)", key, err)
		}
	}
	if ok, _ := store.Exists(t.Context(), "raw/page-2.png"); ok {
		t.Error("exhausted page must not be captured")
	}

	snap := collector.Snapshot()
	if snap.PagesRequested != 3 || snap.PagesCompleted != 2 || snap.LinesUnrecognized != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestSession_SinglePage(t *testing.T) {
	server := newScriptedServer(threePageCatalog())
	store := &recordingStore{}
	cfg := newTestSessionConfig(server, store)
	cfg.Mode = ModeSinglePage

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeSinglePage {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if got := server.Received(); len(got) != 2 || got[0] != "scriptevent mimi:tera page:0" {
		t.Errorf("server received %q", got)
	}
	if len(store.raws) != 1 {
		t.Errorf("raw saves = %d, want 1", len(store.raws))
	}
}

func TestSession_ReadyPatternDefersStart(t *testing.T) {
	server := newScriptedServer(map[int][]string{0: {"__next__ page:0"}})
	server.banner = []string{"Starting Server", "[INFO] Server started."}
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.ReadyPattern = regexp.MustCompile(`Server started`)

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeExhausted {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if got := server.Received(); len(got) == 0 || got[0] != "scriptevent mimi:tera page:0" {
		t.Errorf("server received %q", got)
	}
}

func TestSession_ReadyPatternNeverMatches(t *testing.T) {
	server := newScriptedServer(nil)
	server.banner = []string{"Starting Server", "Failed to bind port"}
	server.exitAfterBanner = true
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.ReadyPattern = regexp.MustCompile(`Server started`)

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeChannelClosed {
		t.Fatalf("outcome = %+v, want channel_closed", result.Outcome)
	}
	for _, line := range server.Received() {
		if strings.Contains(line, "page:") {
			t.Errorf("page requested before ready: %q", line)
		}
	}
}

func TestSession_CaptureFailure(t *testing.T) {
	server := newScriptedServer(threePageCatalog())
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.Capturer = &fakeCapturer{err: errors.New("no display")}

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomePageFailure {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if !strings.Contains(result.Outcome.Message, "no display") {
		t.Errorf("message = %q", result.Outcome.Message)
	}
	if ExitCodeFor(result.Outcome.Status) != ExitCodePageFailure {
		t.Error("page failure should exit 1")
	}
}

func TestSession_ServerExitsMidRun(t *testing.T) {
	server := newScriptedServer(threePageCatalog())
	server.crashOnPage = 1
	cfg := newTestSessionConfig(server, &recordingStore{})

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeChannelClosed {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if result.PagesCompleted() != 1 {
		t.Errorf("pages = %d, want 1 (page 0 stays persisted)", result.PagesCompleted())
	}
	if ExitCodeFor(result.Outcome.Status) != ExitCodeChannel {
		t.Error("channel closed should exit 2")
	}
	for _, line := range server.Received() {
		if line == "stop" {
			t.Error("shutdown command sent to an exited server")
		}
	}
}

func TestSession_StartFailure(t *testing.T) {
	server := newScriptedServer(nil)
	server.startErr = errors.New("exec: no such file")
	cfg := newTestSessionConfig(server, &recordingStore{})

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeChannelClosed || !strings.Contains(result.Outcome.Message, "failed to start server") {
		t.Errorf("outcome = %+v", result.Outcome)
	}
	if result.ServerExitCode != -1 || result.LastPage != -1 {
		t.Errorf("exit=%d last=%d", result.ServerExitCode, result.LastPage)
	}
}

func TestSession_InteractiveOnce(t *testing.T) {
	server := newScriptedServer(threePageCatalog())
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.Interactive = true
	cfg.Operator = strings.NewReader("status\nONCE\n")

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeSinglePage {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if result.PagesCompleted() != 1 {
		t.Errorf("pages = %d", result.PagesCompleted())
	}
}

func TestSession_RestartMidPageIsDeferred(t *testing.T) {
	catalog := map[int][]string{
		0: {
			"[Scripting] item_slot:0:minecraft:dirt",
			"[Scripting] item_slot:3:minecraft:stone",
			"[Scripting] __next__ page:0",
		},
		1: {
			"[Scripting] item_slot:1:minecraft:oak_log",
			"[Scripting] __next__ page:1",
		},
		2: {
			"[Scripting] __next__ page:2",
		},
	}
	server := newScriptedServer(catalog)
	server.holdPage = 1
	server.release = make(chan struct{})

	opR, opW := io.Pipe()
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.Interactive = true
	cfg.Operator = opR

	var reports []*types.PageReport
	cfg.OnPage = func(r *types.PageReport) {
		reports = append(reports, r)
		if len(reports) == 3 {
			_ = opW.Close()
		}
	}

	go func() {
		if _, err := io.WriteString(opW, "start\n"); err != nil {
			return
		}
		// Type "once" while page 1 is still being named.
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if slices.ContainsFunc(server.Received(), func(l string) bool { return strings.HasSuffix(l, "page:1") }) {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		_, _ = io.WriteString(opW, "once\n")
		time.Sleep(50 * time.Millisecond)
		close(server.release)
	}()

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeSinglePage {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if len(reports) != 3 {
		t.Fatalf("reports = %d, want 3 (page 0, page 1, page 0 again)", len(reports))
	}
	if reports[1].Page != 1 || reports[2].Page != 0 {
		t.Fatalf("pages = %d, %d, %d", reports[0].Page, reports[1].Page, reports[2].Page)
	}

	var names []string
	for _, tile := range reports[2].Tiles {
		names = append(names, tile.Name)
	}
	want := []string{"dirt", "page0_slot1", "page0_slot2", "stone"}
	if !slices.Equal(names, want) {
		t.Errorf("restarted page 0 names = %v, want %v", names, want)
	}
}

func TestSession_InteractiveQuit(t *testing.T) {
	server := newScriptedServer(threePageCatalog())
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.Interactive = true
	cfg.Operator = strings.NewReader("quit\n")

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeOperatorQuit {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	for _, line := range server.Received() {
		if strings.Contains(line, "page:") {
			t.Errorf("unexpected request %q", line)
		}
	}
}

func TestSession_InteractiveInputClosed(t *testing.T) {
	server := newScriptedServer(nil)
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.Interactive = true
	cfg.Operator = strings.NewReader("")

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeOperatorQuit {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
}

func TestSession_Canceled(t *testing.T) {
	server := newScriptedServer(nil)
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.Interactive = true

	session, err := NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	result, err := session.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Outcome.Status != types.OutcomeCanceled {
		t.Errorf("outcome = %+v", result.Outcome)
	}
}

func TestSession_ShutdownTimeoutKills(t *testing.T) {
	server := newScriptedServer(map[int][]string{0: {"__next__ page:0"}})
	server.stopCommand = "never"
	cfg := newTestSessionConfig(server, &recordingStore{})
	cfg.ShutdownTimeout = 50 * time.Millisecond

	result := execute(t, cfg)

	if result.Outcome.Status != types.OutcomeExhausted {
		t.Fatalf("outcome = %+v", result.Outcome)
	}
	if result.ServerExitCode != -1 {
		t.Errorf("server exit = %d, want -1 (killed)", result.ServerExitCode)
	}
}

func TestNewSession_Validation(t *testing.T) {
	if _, err := NewSession(&SessionConfig{}); err == nil {
		t.Error("expected error without run id")
	}
	if _, err := NewSession(&SessionConfig{RunID: "r", Mode: "sometimes"}); err == nil {
		t.Error("expected error for bad mode")
	}

	server := newScriptedServer(nil)
	cfg := newTestSessionConfig(server, nil)
	session, err := NewSession(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.Execute(t.Context()); err == nil {
		t.Error("expected config error for missing store")
	}
}
