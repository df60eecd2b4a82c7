package runtime

import "github.com/justapithecus/gridcap/types"

// Process exit codes for gridcap itself.
const (
	ExitCodeSuccess     = 0 // exhausted, single_page, operator_quit
	ExitCodePageFailure = 1 // capture failed
	ExitCodeChannel     = 2 // server gone or session canceled
	ExitCodeConfig      = 3 // invalid configuration or arguments
)

// ExitCodeFor maps a run outcome to the process exit code.
func ExitCodeFor(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeExhausted, types.OutcomeSinglePage, types.OutcomeOperatorQuit:
		return ExitCodeSuccess
	case types.OutcomePageFailure:
		return ExitCodePageFailure
	case types.OutcomeChannelClosed, types.OutcomeCanceled:
		return ExitCodeChannel
	default:
		return ExitCodeChannel
	}
}
