// Package app contains the scan orchestrator, the prediction sub-model and
// the reporting port.
package app

import (
	"context"

	riskdomain "github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/business/scanner/domain"
)

// Progress carries the monotonically increasing completed/total pair passed
// to the progress callback during a scan.
type Progress struct {
	Completed int
	Total     int
}

// ProgressFunc observes scan progress. Purely informational.
type ProgressFunc func(Progress)

// Reporter is the outbound presentation port. Implementations render scan
// results to the console or to the TUI.
type Reporter interface {
	// Start prepares the reporter and blocks until it terminates (console
	// reporters return immediately, the TUI runs its event loop here).
	Start(ctx context.Context) error

	// ReportScan delivers a finished ranked scan cycle.
	ReportScan(opportunities []domain.Opportunity)

	// ReportProgress delivers mid-scan progress.
	ReportProgress(p Progress)

	// UpdateAccounts delivers the latest account snapshots from the risk
	// guard. Presentation-layer composition only.
	UpdateAccounts(accounts []riskdomain.AccountState)

	// Stop releases the reporter.
	Stop()
}
