// Package adapter publishes extraction completion notifications to
// downstream systems (webhook, Redis).
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventTypeExtractionCompleted is the only event type published.
const EventTypeExtractionCompleted = "extraction_completed"

// ExtractionCompletedEvent is the payload published when a session ends.
type ExtractionCompletedEvent struct {
	EventType      string `json:"event_type"`
	RunID          string `json:"run_id"`
	Mode           string `json:"mode"`
	Outcome        string `json:"outcome"`
	Message        string `json:"message"`
	PagesCompleted int    `json:"pages_completed"`
	LastPage       int    `json:"last_page"`
	TilesSaved     int    `json:"tiles_saved"`
	TilesSkipped   int    `json:"tiles_skipped"`
	TilesFailed    int    `json:"tiles_failed"`
	StoragePath    string `json:"storage_path"`
	Timestamp      string `json:"timestamp"` // RFC 3339
	DurationMs     int64  `json:"duration_ms"`
}

// Adapter publishes completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *ExtractionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry; it doubles each time.
const BaseBackoff = 500 * time.Millisecond

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when ctx is done or when permanent(err) is true.
// A nil permanent treats every error as retriable.
func Retry(ctx context.Context, retries int, fn func(context.Context) error, permanent func(error) bool) error {
	attempts := 1 + retries
	var lastErr error

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
