package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/gridcap/metrics"
	"github.com/justapithecus/gridcap/types"
)

// SessionReport is the structured JSON report written by --report.
type SessionReport struct {
	RunID          string              `json:"run_id"`
	Mode           Mode                `json:"mode"`
	Outcome        types.OutcomeStatus `json:"outcome"`
	Message        string              `json:"message"`
	ExitCode       int                 `json:"exit_code"`
	DurationMs     int64               `json:"duration_ms"`
	PagesCompleted int                 `json:"pages_completed"`
	LastPage       int                 `json:"last_page"`
	StoragePath    string              `json:"storage_path"`

	Pages   []ReportPage      `json:"pages"`
	Metrics *metrics.Snapshot `json:"metrics"`

	ServerExitCode int    `json:"server_exit_code"`
	Stderr         string `json:"stderr,omitempty"`
}

// ReportPage summarizes one page in the report. Full detail lives in
// the page manifest.
type ReportPage struct {
	Page     int    `json:"page"`
	Saved    int    `json:"saved"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	RawPath  string `json:"raw_path,omitempty"`
	RawError string `json:"raw_error,omitempty"`
}

// BuildSessionReport composes a report from a result and metrics snapshot.
// exitCode is the process exit code that will be returned to the caller.
func BuildSessionReport(result *SessionResult, snap metrics.Snapshot, storagePath string, exitCode int) *SessionReport {
	report := &SessionReport{
		RunID:          result.RunID,
		Mode:           result.Mode,
		Outcome:        result.Outcome.Status,
		Message:        result.Outcome.Message,
		ExitCode:       exitCode,
		DurationMs:     result.Duration.Milliseconds(),
		PagesCompleted: result.PagesCompleted(),
		LastPage:       result.LastPage,
		StoragePath:    storagePath,
		Pages:          make([]ReportPage, 0, len(result.Reports)),
		Metrics:        &snap,
		ServerExitCode: result.ServerExitCode,
		Stderr:         result.StderrTail,
	}

	for _, r := range result.Reports {
		report.Pages = append(report.Pages, ReportPage{
			Page:     r.Page,
			Saved:    r.Saved,
			Skipped:  r.Skipped,
			Failed:   r.Failed,
			RawPath:  r.RawPath,
			RawError: r.RawError,
		})
	}
	return report
}

// WriteSessionReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeSessionReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
