package runtime

import (
	"context"
	"errors"
	"io"

	"github.com/justapithecus/gridcap/ipc"
	"github.com/justapithecus/gridcap/log"
	"github.com/justapithecus/gridcap/metrics"
	"github.com/justapithecus/gridcap/types"
)

// Inbound is one line received from the server, or the failure that
// ended the stream. Exactly one of Event and Err is set.
type Inbound struct {
	Line  string
	Event types.Event
	Err   error
}

// Coordinator owns the server's stdin and stdout. Outbound page
// requests are written directly; inbound lines are parsed by a single
// reader goroutine and delivered in arrival order.
type Coordinator struct {
	stdin     io.Writer
	reader    *ipc.LineReader
	prefix    string
	logger    *log.Logger
	collector *metrics.Collector
	events    chan Inbound
}

// NewCoordinator creates a coordinator over the server pipes.
// prefix is written before "page:<n>" on every request.
func NewCoordinator(stdin io.Writer, stdout io.Reader, prefix string, logger *log.Logger, collector *metrics.Collector) *Coordinator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Coordinator{
		stdin:     stdin,
		reader:    ipc.NewLineReader(stdout),
		prefix:    prefix,
		logger:    logger,
		collector: collector,
		events:    make(chan Inbound),
	}
}

// Start launches the reader goroutine and returns the event stream.
// The stream ends with a single Inbound carrying a *ChannelError, then
// closes. Canceling ctx stops delivery.
func (c *Coordinator) Start(ctx context.Context) <-chan Inbound {
	go c.pump(ctx)
	return c.events
}

func (c *Coordinator) pump(ctx context.Context) {
	defer close(c.events)

	for {
		line, err := c.reader.ReadLine()
		if errors.Is(err, ipc.ErrLineTooLong) {
			c.collector.IncLineReceived()
			c.collector.IncLineUnrecognized()
			c.logger.Warn("oversized server line skipped", map[string]any{"max_bytes": ipc.MaxLineSize})
			continue
		}
		if err != nil {
			chErr := &ChannelError{Kind: ChannelErrorRead, Err: err}
			if errors.Is(err, io.EOF) {
				chErr.Kind = ChannelErrorClosed
			}
			c.deliver(ctx, Inbound{Err: chErr})
			return
		}

		c.collector.IncLineReceived()
		c.logger.Debug("server line", map[string]any{"line": line})

		ev := ipc.ParseLine(line)
		if ev.Kind() == types.EventKindUnrecognized {
			c.collector.IncLineUnrecognized()
		}
		if !c.deliver(ctx, Inbound{Line: line, Event: ev}) {
			return
		}
	}
}

func (c *Coordinator) deliver(ctx context.Context, in Inbound) bool {
	select {
	case c.events <- in:
		return true
	case <-ctx.Done():
		return false
	}
}

// RequestPage writes one page request line.
func (c *Coordinator) RequestPage(req types.PageRequest) error {
	if err := ipc.WritePageRequest(c.stdin, c.prefix, req); err != nil {
		return &ChannelError{Kind: ChannelErrorWrite, Err: err}
	}
	c.collector.IncPageRequested()
	c.logger.Info("requested page", map[string]any{"page": req.Page})
	return nil
}

// SendCommand writes a raw console command line (e.g. "stop").
func (c *Coordinator) SendCommand(cmd string) error {
	if _, err := io.WriteString(c.stdin, cmd+"\n"); err != nil {
		return &ChannelError{Kind: ChannelErrorWrite, Err: err}
	}
	return nil
}
