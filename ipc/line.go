// Package ipc implements the line protocol spoken with the renderer process.
//
// Inbound lines are parsed into a closed set of typed events:
//   - item_slot:<slot>:<namespace:id>  -> types.SlotNameEvent
//   - __next__ page:<n>                -> types.PageCompletionSignal
//   - anything else                    -> types.UnrecognizedLine
//
// Outbound lines carry a single page request: "<prefix> page:<n>".
//
// The renderer side of the protocol (ParsePageRequest, FormatSlotName,
// FormatPageComplete) is used by the mock server.
package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/justapithecus/gridcap/types"
)

// MaxLineSize bounds a single inbound line (1 MiB).
const MaxLineSize = 1024 * 1024

// DefaultCommandPrefix is written before "page:<n>" on outbound requests.
const DefaultCommandPrefix = "scriptevent mimi:tera"

var (
	slotPattern     = regexp.MustCompile(`item_slot:(\d+):([\w.\-]+:[\w.\-/]+)`)
	completePattern = regexp.MustCompile(`__next__ page:(\d+)`)
	requestPattern  = regexp.MustCompile(`(?:^|\s)page:(\d+)\s*$`)
)

// ParseLine converts one inbound line into a typed event.
// Lines are matched anywhere in the text so server log prefixes
// ("[2025-01-01 INFO] [Scripting] ...") are tolerated.
func ParseLine(line string) types.Event {
	if m := slotPattern.FindStringSubmatch(line); m != nil {
		slot, err := strconv.Atoi(m[1])
		if err == nil {
			return types.SlotNameEvent{Slot: slot, Name: m[2]}
		}
	}
	if m := completePattern.FindStringSubmatch(line); m != nil {
		page, err := strconv.Atoi(m[1])
		if err == nil {
			return types.PageCompletionSignal{Page: page}
		}
	}
	return types.UnrecognizedLine{Line: line}
}

// EncodePageRequest returns the command line for req, without a newline.
func EncodePageRequest(prefix string, req types.PageRequest) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fmt.Sprintf("page:%d", req.Page)
	}
	return fmt.Sprintf("%s page:%d", prefix, req.Page)
}

// WritePageRequest writes one newline-terminated page request to w.
func WritePageRequest(w io.Writer, prefix string, req types.PageRequest) error {
	_, err := io.WriteString(w, EncodePageRequest(prefix, req)+"\n")
	return err
}

// ParsePageRequest extracts the page number from a command line written
// by WritePageRequest. Any prefix is accepted.
func ParsePageRequest(line string) (types.PageRequest, bool) {
	m := requestPattern.FindStringSubmatch(line)
	if m == nil {
		return types.PageRequest{}, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil {
		return types.PageRequest{}, false
	}
	return types.PageRequest{Page: page}, true
}

// FormatSlotName renders ev as the line the renderer prints for it.
func FormatSlotName(ev types.SlotNameEvent) string {
	return fmt.Sprintf("item_slot:%d:%s", ev.Slot, ev.Name)
}

// FormatPageComplete renders the completion line for page.
func FormatPageComplete(page int) string {
	return fmt.Sprintf("__next__ page:%d", page)
}

// ErrLineTooLong is returned when an inbound line exceeds MaxLineSize.
// The oversized line has been consumed, so the reader stays usable.
var ErrLineTooLong = errors.New("line exceeds maximum size")

// LineReader reads newline-delimited lines in arrival order.
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader creates a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// ReadLine returns the next line without its terminator ("\n" or "\r\n").
// Returns io.EOF when the stream ends cleanly. A line longer than
// MaxLineSize is discarded up to its newline and reported as
// ErrLineTooLong; the next call resumes with the following line.
func (l *LineReader) ReadLine() (string, error) {
	var (
		buf      []byte
		overflow bool
	)
	for {
		chunk, err := l.r.ReadSlice('\n')
		if !overflow {
			// Room for MaxLineSize bytes plus "\r\n".
			if len(buf)+len(chunk) > MaxLineSize+2 {
				overflow = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && (!errors.Is(err, io.EOF) || (len(buf) == 0 && !overflow)) {
			return "", err
		}

		line := strings.TrimRight(strings.TrimSuffix(string(buf), "\n"), "\r")
		if overflow || len(line) > MaxLineSize {
			return "", ErrLineTooLong
		}
		return line, nil
	}
}
