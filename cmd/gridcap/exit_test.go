package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/gridcap/runtime"
	"github.com/justapithecus/gridcap/types"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_WrappedExitCoder(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), cli.Exit("inner error", 42))

	var exitCoder cli.ExitCoder
	if !errors.As(wrapped, &exitCoder) {
		t.Fatal("wrapped error should still match cli.ExitCoder")
	}
	if exitCoder.ExitCode() != 42 {
		t.Errorf("exit code = %d, want 42", exitCoder.ExitCode())
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	err := errors.New("regular error")

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		t.Fatal("regular error should not be cli.ExitCoder")
	}
}

// TestRunExitCodes pins the outcome to exit code contract of `gridcap run`.
func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		status types.OutcomeStatus
		want   int
	}{
		{types.OutcomeExhausted, 0},
		{types.OutcomeSinglePage, 0},
		{types.OutcomeOperatorQuit, 0},
		{types.OutcomePageFailure, 1},
		{types.OutcomeChannelClosed, 2},
		{types.OutcomeCanceled, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			code := runtime.ExitCodeFor(tt.status)
			if code != tt.want {
				t.Errorf("ExitCodeFor(%s) = %d, want %d", tt.status, code, tt.want)
			}

			var exitCoder cli.ExitCoder
			if !errors.As(cli.Exit("", code), &exitCoder) || exitCoder.ExitCode() != tt.want {
				t.Errorf("cli.Exit should carry code %d", tt.want)
			}
		})
	}

	if runtime.ExitCodeConfig != 3 {
		t.Errorf("ExitCodeConfig = %d, want 3", runtime.ExitCodeConfig)
	}
}

// TestExitErrHandler_MessageSuppression verifies empty messages don't print.
func TestExitErrHandler_MessageSuppression(t *testing.T) {
	err := cli.Exit("", 0)
	msg := err.Error()

	if msg != "" && msg != "exit status 0" {
		t.Errorf("Expected empty or 'exit status 0', got %q", msg)
	}
}
