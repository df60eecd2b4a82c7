package runtime

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/justapithecus/gridcap/ipc"
	"github.com/justapithecus/gridcap/log"
)

// OperatorCommand is a console command typed by the operator.
type OperatorCommand string

const (
	// CommandStart runs continuously from page 0.
	CommandStart OperatorCommand = "start"
	// CommandOnce runs page 0 only.
	CommandOnce OperatorCommand = "once"
	// CommandQuit ends the session.
	CommandQuit OperatorCommand = "quit"
)

// ParseOperatorCommand matches a console line, ignoring case and
// surrounding whitespace.
func ParseOperatorCommand(line string) (OperatorCommand, bool) {
	switch cmd := OperatorCommand(strings.ToLower(strings.TrimSpace(line))); cmd {
	case CommandStart, CommandOnce, CommandQuit:
		return cmd, true
	default:
		return "", false
	}
}

// readOperator forwards recognized commands from r until EOF or ctx is
// done, then closes out.
func readOperator(ctx context.Context, r io.Reader, out chan<- OperatorCommand, logger *log.Logger) {
	defer close(out)

	reader := ipc.NewLineReader(r)
	for {
		line, err := reader.ReadLine()
		if errors.Is(err, ipc.ErrLineTooLong) {
			logger.Warn("oversized operator input skipped", nil)
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("operator input failed", map[string]any{"error": err.Error()})
			}
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, ok := ParseOperatorCommand(line)
		if !ok {
			logger.Warn("unknown operator command", map[string]any{
				"input": line,
				"valid": "start, once, quit",
			})
			continue
		}

		select {
		case out <- cmd:
		case <-ctx.Done():
			return
		}
	}
}
