package runtime

import (
	"errors"
	"fmt"
)

// ChannelErrorKind classifies control channel failures.
type ChannelErrorKind int

const (
	// ChannelErrorWrite indicates a page request could not be written.
	ChannelErrorWrite ChannelErrorKind = iota
	// ChannelErrorRead indicates the inbound stream failed mid-read.
	ChannelErrorRead
	// ChannelErrorClosed indicates the inbound stream reached EOF.
	ChannelErrorClosed
)

func (k ChannelErrorKind) String() string {
	switch k {
	case ChannelErrorWrite:
		return "write"
	case ChannelErrorRead:
		return "read"
	case ChannelErrorClosed:
		return "closed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ChannelError is a fatal control channel failure.
type ChannelError struct {
	Kind ChannelErrorKind
	Err  error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("control channel %s: %v", e.Kind, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// PageError reports that a page was abandoned.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// IsChannelError returns true if err is a control channel failure.
func IsChannelError(err error) bool {
	var chErr *ChannelError
	return errors.As(err, &chErr)
}

// IsPageError returns true if err abandoned a page.
func IsPageError(err error) bool {
	var pgErr *PageError
	return errors.As(err, &pgErr)
}
