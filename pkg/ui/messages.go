// Package ui provides the Bubble Tea dashboard for the funding scanner.
package ui

import (
	"time"

	"github.com/dlemos/perparb/pkg/ui/components"
)

// Message types for dashboard updates. Rows arrive pre-calculated; the UI
// never derives financial values itself.

// ScanStartedMsg is sent when a scan cycle begins.
type ScanStartedMsg struct {
	UniverseSize int
}

// ProgressMsg is sent as instruments complete within a scan cycle.
type ProgressMsg struct {
	Completed int
	Total     int
}

// ScanResultMsg is sent when a scan cycle finishes with its ranked rows.
type ScanResultMsg struct {
	Rows     []components.OpportunityRow
	Duration time.Duration
}

// AccountsMsg is sent when the risk guard refreshes account snapshots.
type AccountsMsg struct {
	Rows []components.AccountRow
}

// ErrorMsg is sent when a scan or account refresh fails.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for animations and the rescan countdown.
type TickMsg struct{}
