package tui

import (
	"github.com/banshee-data/stroke.report/internal/analysis"
	"github.com/banshee-data/stroke.report/internal/live"
)

// BoardChangedMsg is sent whenever the live board changes.
type BoardChangedMsg struct{}

// ConnectionMsg reports a live stream connection transition.
type ConnectionMsg struct {
	State live.ConnectionState
}

// AnalysisLoadedMsg carries the outcome of one analysis load. A non-nil Err
// only ends the load; the failure itself arrives as an AnalysisErrorMsg.
type AnalysisLoadedMsg struct {
	Projection analysis.Projection
	Err        error
	// Exported lists any files the charts were written to.
	Exported  []string
	ExportErr error
}

// AnalysisErrorMsg carries one failure reported by the analysis pipeline,
// including the empty-session notice.
type AnalysisErrorMsg struct {
	Err error
}

// CommandDoneMsg carries the outcome of a start or stop request.
type CommandDoneMsg struct {
	Op  string
	Err error
}
