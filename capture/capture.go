// Package capture produces page snapshots: a full-screen raster plus its
// decoded image and dimensions.
//
// The raw capture mechanism is external. CommandCapturer runs an operator
// supplied command (grim, import, screencapture, ...) that writes an encoded
// image to stdout; FileCapturer reads a fixture image from disk.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single capture command.
const DefaultTimeout = 30 * time.Second

// ErrEmptyCapture is returned when the backend produced no bytes.
var ErrEmptyCapture = errors.New("capture produced no data")

// Snapshot is the captured raster for one page.
// It is written once by the Capturer and only read afterwards.
type Snapshot struct {
	// Raw is the encoded image exactly as captured.
	Raw []byte
	// Image is the decoded raster.
	Image image.Image
	// Width and Height are the decoded dimensions.
	Width  int
	Height int
	// Format is the decoder name ("png", "jpeg").
	Format string
	// CapturedAt is when the capture completed.
	CapturedAt time.Time
}

// Capturer produces a snapshot of the current screen.
type Capturer interface {
	Capture(ctx context.Context) (*Snapshot, error)
}

// Decode builds a Snapshot from encoded image bytes.
func Decode(raw []byte) (*Snapshot, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyCapture
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	b := img.Bounds()
	return &Snapshot{
		Raw:        raw,
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Format:     format,
		CapturedAt: time.Now(),
	}, nil
}

// CommandConfig configures a CommandCapturer.
type CommandConfig struct {
	// Command is the program and its arguments. The program must write
	// one encoded image to stdout.
	Command []string
	// Timeout bounds one capture. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// CommandCapturer captures the screen by running an external command.
type CommandCapturer struct {
	path    string
	args    []string
	timeout time.Duration
}

// NewCommandCapturer validates cfg and returns a capturer.
func NewCommandCapturer(cfg CommandConfig) (*CommandCapturer, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, errors.New("capture command required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandCapturer{
		path:    cfg.Command[0],
		args:    cfg.Command[1:],
		timeout: timeout,
	}, nil
}

// Capture runs the command and decodes its stdout.
func (c *CommandCapturer) Capture(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("capture command %s failed: %w: %s", c.path, err, msg)
		}
		return nil, fmt.Errorf("capture command %s failed: %w", c.path, err)
	}

	return Decode(stdout.Bytes())
}

// FileCapturer returns the image stored at Path on every capture.
// Useful for calibrating grid geometry against a saved screenshot.
type FileCapturer struct {
	Path string
}

// Capture reads and decodes the fixture file.
func (f *FileCapturer) Capture(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read capture file: %w", err)
	}
	return Decode(raw)
}

// Verify implementations.
var (
	_ Capturer = (*CommandCapturer)(nil)
	_ Capturer = (*FileCapturer)(nil)
)
