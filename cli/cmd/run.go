package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"regexp"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/gridcap/adapter"
	"github.com/justapithecus/gridcap/adapter/redis"
	"github.com/justapithecus/gridcap/adapter/webhook"
	"github.com/justapithecus/gridcap/capture"
	gridconfig "github.com/justapithecus/gridcap/cli/config"
	"github.com/justapithecus/gridcap/lode"
	"github.com/justapithecus/gridcap/log"
	"github.com/justapithecus/gridcap/metrics"
	"github.com/justapithecus/gridcap/runtime"
	"github.com/justapithecus/gridcap/types"
)

// adapterPublishTimeout bounds the completion notification after a run.
const adapterPublishTimeout = 30 * time.Second

// RunCommand returns the run command.
// This is the only command that drives the server and writes storage.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Drive the server through its catalog and persist one tile per entry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to gridcap.yaml (flags override its values)",
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run ID (default: random UUID)",
			},
			// Server flags
			&cli.StringFlag{
				Name:  "server",
				Usage: "Path to the server executable",
			},
			&cli.StringSliceFlag{
				Name:  "server-arg",
				Usage: "Argument passed to the server (repeatable)",
			},
			&cli.StringFlag{
				Name:  "server-dir",
				Usage: "Working directory for the server",
			},
			&cli.StringFlag{
				Name:  "command-prefix",
				Usage: "Prefix written before page:<n>",
				Value: gridconfig.DefaultCommandPrefix,
			},
			&cli.StringFlag{
				Name:  "ready-pattern",
				Usage: "Regex; request page 0 after the first server line matching it",
			},
			&cli.StringFlag{
				Name:  "shutdown-command",
				Usage: "Command written to the server at teardown (default: kill)",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "How long the server gets to exit after the shutdown command",
				Value: runtime.DefaultShutdownTimeout,
			},
			// Mode flags
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Extraction mode: continuous or once",
				Value: gridconfig.DefaultMode,
			},
			&cli.BoolFlag{
				Name:  "interactive",
				Usage: "Wait for start / once / quit on stdin instead of starting immediately",
			},
			// Grid flags
			&cli.IntFlag{Name: "tile-width", Usage: "Grid cell width in pixels", Value: gridconfig.DefaultTileSize},
			&cli.IntFlag{Name: "tile-height", Usage: "Grid cell height in pixels", Value: gridconfig.DefaultTileSize},
			&cli.IntFlag{Name: "rows", Usage: "Grid rows", Value: gridconfig.DefaultRows},
			&cli.IntFlag{Name: "cols", Usage: "Grid columns", Value: gridconfig.DefaultCols},
			&cli.IntFlag{Name: "origin-x", Usage: "Screen x of the top-left cell", Value: gridconfig.DefaultOriginX},
			&cli.IntFlag{Name: "origin-y", Usage: "Screen y of the top-left cell", Value: gridconfig.DefaultOriginY},
			// Capture flags
			&cli.StringFlag{
				Name:  "capture-command",
				Usage: "Screen capture command writing one PNG/JPEG to stdout (split on spaces)",
			},
			&cli.StringFlag{
				Name:  "capture-file",
				Usage: "Use a saved screenshot instead of capturing (calibration, dry runs)",
			},
			&cli.DurationFlag{
				Name:  "capture-timeout",
				Usage: "Timeout for one capture",
				Value: capture.DefaultTimeout,
			},
			// Storage flags
			&cli.StringFlag{
				Name:  "storage-backend",
				Usage: "Storage backend: fs or s3",
				Value: lode.BackendFS,
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Storage path (fs: directory, s3: bucket/prefix)",
				Value: gridconfig.DefaultStoragePath,
			},
			&cli.StringFlag{
				Name:  "storage-region",
				Usage: "AWS region for S3 backend (optional, uses default chain)",
			},
			&cli.StringFlag{
				Name:  "storage-endpoint",
				Usage: "Custom S3 endpoint (R2, MinIO, LocalStack)",
			},
			&cli.BoolFlag{
				Name:  "storage-s3-path-style",
				Usage: "Use path-style S3 addressing",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion adapter: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Webhook URL or Redis URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel",
			},
			&cli.DurationFlag{
				Name:  "adapter-timeout",
				Usage: "Per-attempt adapter timeout",
			},
			&cli.IntFlag{
				Name:  "adapter-retries",
				Usage: "Adapter retry attempts",
				Value: 3,
			},
			// Output flags
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: gridconfig.DefaultLogLevel,
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON session report to this path (- for stderr)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		},
		Action: runAction,
	}
}

// runChoice is the fully resolved run configuration.
type runChoice struct {
	runID  string
	cfg    *gridconfig.Config
	store  lode.StoreConfig
	layout lode.Layout
	ready  *regexp.Regexp
	report string
	quiet  bool
}

func runAction(c *cli.Context) error {
	choice, err := resolveRunChoice(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	cfg := choice.cfg

	logger := log.NewLoggerWithWriter(
		log.RunContext{RunID: choice.runID, Mode: cfg.Mode},
		os.Stderr,
		log.ParseLevel(cfg.LogLevel),
	)
	defer func() { _ = logger.Sync() }()

	store, err := lode.OpenStore(choice.store, choice.layout)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodeConfig)
	}
	release, err := lode.LockRoot(choice.store)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), runtime.ExitCodeConfig)
	}
	defer func() { _ = release() }()
	collector := metrics.NewCollector(choice.store.Backend, choice.runID)
	persister := lode.NewPersister(store, choice.layout, collector)

	capturer, err := buildCapturer(cfg.Capture)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}

	pub, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), runtime.ExitCodeConfig)
	}
	if pub != nil {
		defer func() { _ = pub.Close() }()
	}

	mode, _ := runtime.ParseMode(cfg.Mode)
	session, err := runtime.NewSession(&runtime.SessionConfig{
		RunID:           choice.runID,
		Server:          buildServerConfig(cfg.Server),
		CommandPrefix:   cfg.Server.Prefix(),
		Mode:            mode,
		Interactive:     cfg.Interactive,
		ReadyPattern:    choice.ready,
		Operator:        os.Stdin,
		ShutdownCommand: cfg.Server.ShutdownCommand,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration,
		Grid:            cfg.Grid.Types(),
		Capturer:        capturer,
		Store:           persister,
		Logger:          logger,
		Collector:       collector,
		OnPage: func(r *types.PageReport) {
			if !choice.quiet {
				printPageLine(r)
			}
		},
	})
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := session.Execute(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("execution failed: %v", err), runtime.ExitCodeConfig)
	}

	exitCode := runtime.ExitCodeFor(result.Outcome.Status)
	storagePath := lode.StorageURI(choice.store)
	snap := collector.Snapshot()

	if pub != nil {
		event := buildExtractionCompletedEvent(result, storagePath)
		pubCtx, pubCancel := context.WithTimeout(context.Background(), adapterPublishTimeout)
		if err := pub.Publish(pubCtx, event); err != nil {
			logger.Warn("completion notification failed", map[string]any{
				"adapter": cfg.Adapter.Type,
				"error":   err.Error(),
			})
		}
		pubCancel()
	}

	if choice.report != "" {
		report := runtime.BuildSessionReport(result, snap, storagePath, exitCode)
		if err := runtime.WriteSessionReport(report, choice.report); err != nil {
			logger.Warn("failed to write report", map[string]any{"error": err.Error()})
		}
	}

	if !choice.quiet {
		printRunResult(result, &snap, storagePath)
	}

	return cli.Exit("", exitCode)
}

// resolveRunChoice merges config file values and flags and validates the
// result. CLI flags always win over the config file.
func resolveRunChoice(c *cli.Context) (*runChoice, error) {
	cfg := gridconfig.Default()
	if path := c.String("config"); path != "" {
		loaded, err := gridconfig.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Server.Path = resolveString(c, "server", cfg.Server.Path)
	if c.IsSet("server-arg") {
		cfg.Server.Args = c.StringSlice("server-arg")
	}
	cfg.Server.Dir = resolveString(c, "server-dir", cfg.Server.Dir)
	if c.IsSet("command-prefix") || cfg.Server.CommandPrefix == nil {
		prefix := c.String("command-prefix")
		cfg.Server.CommandPrefix = &prefix
	}
	cfg.Server.ReadyPattern = resolveString(c, "ready-pattern", cfg.Server.ReadyPattern)
	cfg.Server.ShutdownCommand = resolveString(c, "shutdown-command", cfg.Server.ShutdownCommand)
	cfg.Server.ShutdownTimeout.Duration = resolveDuration(c, "shutdown-timeout", cfg.Server.ShutdownTimeout.Duration)

	cfg.Mode = resolveString(c, "mode", cfg.Mode)
	cfg.Interactive = resolveBool(c, "interactive", cfg.Interactive)
	cfg.LogLevel = resolveString(c, "log-level", cfg.LogLevel)

	cfg.Grid.TileWidth = resolveInt(c, "tile-width", cfg.Grid.TileWidth)
	cfg.Grid.TileHeight = resolveInt(c, "tile-height", cfg.Grid.TileHeight)
	cfg.Grid.Rows = resolveInt(c, "rows", cfg.Grid.Rows)
	cfg.Grid.Cols = resolveInt(c, "cols", cfg.Grid.Cols)
	cfg.Grid.OriginX = resolveInt(c, "origin-x", cfg.Grid.OriginX)
	cfg.Grid.OriginY = resolveInt(c, "origin-y", cfg.Grid.OriginY)

	if c.IsSet("capture-command") {
		cfg.Capture.Command = strings.Fields(c.String("capture-command"))
	}
	cfg.Capture.File = resolveString(c, "capture-file", cfg.Capture.File)
	cfg.Capture.Timeout.Duration = resolveDuration(c, "capture-timeout", cfg.Capture.Timeout.Duration)

	cfg.Storage.Backend = resolveString(c, "storage-backend", cfg.Storage.Backend)
	cfg.Storage.Path = resolveString(c, "storage-path", cfg.Storage.Path)
	cfg.Storage.Region = resolveString(c, "storage-region", cfg.Storage.Region)
	cfg.Storage.Endpoint = resolveString(c, "storage-endpoint", cfg.Storage.Endpoint)
	cfg.Storage.S3PathStyle = resolveBool(c, "storage-s3-path-style", cfg.Storage.S3PathStyle)

	cfg.Adapter.Type = resolveString(c, "adapter", cfg.Adapter.Type)
	cfg.Adapter.URL = resolveString(c, "adapter-url", cfg.Adapter.URL)
	cfg.Adapter.Channel = resolveString(c, "adapter-channel", cfg.Adapter.Channel)
	cfg.Adapter.Timeout.Duration = resolveDuration(c, "adapter-timeout", cfg.Adapter.Timeout.Duration)
	if c.IsSet("adapter-retries") || cfg.Adapter.Retries == nil {
		retries := c.Int("adapter-retries")
		cfg.Adapter.Retries = &retries
	}

	if err := validateRunConfig(cfg); err != nil {
		return nil, err
	}

	choice := &runChoice{
		runID: c.String("run-id"),
		cfg:   cfg,
		store: lode.StoreConfig{
			Backend:      cfg.Storage.Backend,
			Path:         cfg.Storage.Path,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		},
		layout: buildLayout(cfg.Storage),
		report: c.String("report"),
		quiet:  c.Bool("quiet"),
	}
	if choice.runID == "" {
		choice.runID = uuid.New().String()
	}
	if cfg.Server.ReadyPattern != "" {
		// Validate already compiled it once.
		choice.ready = regexp.MustCompile(cfg.Server.ReadyPattern)
	}
	return choice, nil
}

// validateRunConfig checks the merged configuration. Error messages name
// both the flag and the config key so either can be fixed.
func validateRunConfig(cfg *gridconfig.Config) error {
	var errs []error
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Server.Path == "" {
		errs = append(errs, errors.New("--server is required (or server.path in config)"))
	}
	if cfg.Capture.File == "" && len(cfg.Capture.Command) == 0 {
		errs = append(errs, errors.New("--capture-command or --capture-file is required (or capture.command / capture.file in config)"))
	}
	if cfg.Storage.Path == "" {
		errs = append(errs, errors.New("--storage-path is required (or storage.path in config)"))
	}
	return errors.Join(errs...)
}

// buildServerConfig converts the config section into the process
// description. Env entries are sorted so the child sees a stable order.
func buildServerConfig(sc gridconfig.ServerConfig) runtime.ServerConfig {
	env := make([]string, 0, len(sc.Env))
	for _, key := range slices.Sorted(maps.Keys(sc.Env)) {
		env = append(env, key+"="+sc.Env[key])
	}
	return runtime.ServerConfig{
		Path: sc.Path,
		Args: sc.Args,
		Dir:  sc.Dir,
		Env:  env,
	}
}

func buildLayout(sc gridconfig.StorageConfig) lode.Layout {
	layout := lode.DefaultLayout()
	if sc.RawPrefix != "" {
		layout.RawPrefix = sc.RawPrefix
	}
	if sc.CroppedPrefix != "" {
		layout.CroppedPrefix = sc.CroppedPrefix
	}
	if sc.ManifestPrefix != "" {
		layout.ManifestPrefix = sc.ManifestPrefix
	}
	return layout
}

// buildCapturer picks the fixture file when set, the capture command otherwise.
func buildCapturer(cc gridconfig.CaptureConfig) (capture.Capturer, error) {
	if cc.File != "" {
		if _, err := os.Stat(cc.File); err != nil {
			return nil, fmt.Errorf("capture file: %w", err)
		}
		return &capture.FileCapturer{Path: cc.File}, nil
	}
	return capture.NewCommandCapturer(capture.CommandConfig{
		Command: cc.Command,
		Timeout: cc.Timeout.Duration,
	})
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(ac gridconfig.AdapterConfig) (adapter.Adapter, error) {
	retries := 0
	if ac.Retries != nil {
		retries = *ac.Retries
	}

	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", ac.Type)
	}
}

// buildExtractionCompletedEvent maps a session result to the adapter payload.
func buildExtractionCompletedEvent(result *runtime.SessionResult, storagePath string) *adapter.ExtractionCompletedEvent {
	return &adapter.ExtractionCompletedEvent{
		EventType:      adapter.EventTypeExtractionCompleted,
		RunID:          result.RunID,
		Mode:           string(result.Mode),
		Outcome:        string(result.Outcome.Status),
		Message:        result.Outcome.Message,
		PagesCompleted: result.PagesCompleted(),
		LastPage:       result.LastPage,
		TilesSaved:     result.TilesSaved,
		TilesSkipped:   result.TilesSkipped,
		TilesFailed:    result.TilesFailed,
		StoragePath:    storagePath,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		DurationMs:     result.Duration.Milliseconds(),
	}
}

// The config passed to the resolve helpers is always pre-filled by
// gridconfig.Default, so a flag only wins when it was explicitly set. Zero
// config values (origin 0, empty prefix) are real values, not "unset".

// resolveString returns the flag value when explicitly set, else cfgVal.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	return cfgVal
}

// resolveInt is resolveString for ints.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return cfgVal
}

// resolveBool is resolveString for bools.
func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal
}

// resolveDuration is resolveString for durations. A zero result leaves the
// downstream default in place.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	return cfgVal
}

func printPageLine(r *types.PageReport) {
	fmt.Printf("page %d: saved=%d skipped=%d failed=%d\n", r.Page, r.Saved, r.Skipped, r.Failed)
	if r.RawError != "" {
		fmt.Printf("  raw snapshot not saved: %s\n", r.RawError)
	}
	for _, o := range r.Outcomes(types.TileFailed) {
		fmt.Printf("  failed slot %d (%s): %s\n", o.Slot, o.Name, o.Reason)
	}
}

func printRunResult(result *runtime.SessionResult, snap *metrics.Snapshot, storagePath string) {
	fmt.Printf("\nrun_id=%s, mode=%s, outcome=%s, duration=%s\n",
		result.RunID,
		result.Mode,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)

	fmt.Printf("\n=== Run Result ===\n")
	fmt.Printf("Run ID:       %s\n", result.RunID)
	fmt.Printf("Outcome:      %s\n", result.Outcome.Status)
	fmt.Printf("Message:      %s\n", result.Outcome.Message)
	fmt.Printf("Pages:        %d\n", result.PagesCompleted())
	if result.LastPage >= 0 {
		fmt.Printf("Last Page:    %d\n", result.LastPage)
	}
	fmt.Printf("Storage:      %s\n", storagePath)

	fmt.Printf("\n=== Tiles ===\n")
	fmt.Printf("Saved:        %d\n", result.TilesSaved)
	fmt.Printf("Skipped:      %d\n", result.TilesSkipped)
	fmt.Printf("Failed:       %d\n", result.TilesFailed)

	fmt.Printf("\n=== Metrics ===\n")
	fmt.Printf("Lines Received:     %d\n", snap.LinesReceived)
	fmt.Printf("Lines Unrecognized: %d\n", snap.LinesUnrecognized)
	fmt.Printf("Slot Events:        %d\n", snap.SlotEvents)
	fmt.Printf("Captures:           %d ok, %d failed\n", snap.CaptureSuccess, snap.CaptureFailure)
	fmt.Printf("Storage Writes:     %d ok, %d failed\n", snap.StorageWriteSuccess, snap.StorageWriteFailure)

	if result.StderrTail != "" {
		fmt.Printf("\n=== Server Stderr ===\n")
		fmt.Printf("%s", result.StderrTail)
	}
}
