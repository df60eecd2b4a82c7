package types

// OutcomeStatus classifies how a run ended.
type OutcomeStatus string

// Run outcome statuses.
const (
	// OutcomeExhausted: a page completed with no slot announcements.
	OutcomeExhausted OutcomeStatus = "exhausted"
	// OutcomeSinglePage: single-page mode finished its page.
	OutcomeSinglePage OutcomeStatus = "single_page"
	// OutcomePageFailure: capture failed; the page was abandoned.
	OutcomePageFailure OutcomeStatus = "page_failure"
	// OutcomeChannelClosed: the external process exited or a pipe broke.
	OutcomeChannelClosed OutcomeStatus = "channel_closed"
	// OutcomeCanceled: the run context was canceled.
	OutcomeCanceled OutcomeStatus = "canceled"
	// OutcomeOperatorQuit: the operator ended an interactive session.
	OutcomeOperatorQuit OutcomeStatus = "operator_quit"
)

// IsSuccess reports whether the outcome is a designed termination.
func (s OutcomeStatus) IsSuccess() bool {
	switch s {
	case OutcomeExhausted, OutcomeSinglePage, OutcomeOperatorQuit:
		return true
	default:
		return false
	}
}

// RunOutcome is the final status of a run.
type RunOutcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}
