package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// StderrTailSize bounds how much server stderr is retained.
const StderrTailSize = 64 * 1024

// ServerConfig configures the external server process.
type ServerConfig struct {
	// Path is the server binary.
	Path string
	// Args are passed verbatim.
	Args []string
	// Dir is the working directory. Empty inherits ours.
	Dir string
	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env []string
}

// ExecutorResult represents the result of server execution.
type ExecutorResult struct {
	// ExitCode is the process exit code (-1 if killed by signal).
	ExitCode int
	// StderrTail is the last StderrTailSize bytes of stderr.
	StderrTail []byte
}

// ServerProcess manages the server process lifecycle.
// Stdin carries page requests, stdout carries the line protocol.
type ServerProcess struct {
	config *ServerConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *tailBuffer
}

// NewServerProcess creates a new server process manager.
func NewServerProcess(config *ServerConfig) *ServerProcess {
	return &ServerProcess{
		config: config,
		stderr: newTailBuffer(StderrTailSize),
	}
}

// Start launches the server with stdin and stdout piped.
func (p *ServerProcess) Start(ctx context.Context) error {
	if p.config.Path == "" {
		return errors.New("server path is required")
	}

	p.cmd = exec.CommandContext(ctx, p.config.Path, p.config.Args...)
	p.cmd.Dir = p.config.Dir
	if len(p.config.Env) > 0 {
		p.cmd.Env = deduplicateEnv(append(os.Environ(), p.config.Env...))
	}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	p.stdin = stdin

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.stdout = stdout

	p.cmd.Stderr = p.stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stdin returns the writer for outbound commands.
func (p *ServerProcess) Stdin() io.Writer {
	return p.stdin
}

// Stdout returns the reader for the inbound line protocol.
func (p *ServerProcess) Stdout() io.Reader {
	return p.stdout
}

// Wait waits for the server to exit and returns the result.
// Must be called after Start. Wait closes the stdout pipe, so the
// line reader must be done with it first.
func (p *ServerProcess) Wait() (*ExecutorResult, error) {
	if p.cmd == nil {
		return nil, errors.New("server not started")
	}

	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	err := p.cmd.Wait()

	result := &ExecutorResult{StderrTail: p.stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("server wait failed: %w", err)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
	}
	return result, nil
}

// Kill terminates the server process.
func (p *ServerProcess) Kill() error {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// deduplicateEnv keeps the last occurrence of each env var key so
// configured values win over inherited ones.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

// tailBuffer retains the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if n >= t.max {
		t.buf = append(t.buf[:0], p[n-t.max:]...)
		return n, nil
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out
}
