package report

import (
	"context"
	"time"

	riskdomain "github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/business/scanner/app"
	"github.com/dlemos/perparb/business/scanner/domain"
	"github.com/dlemos/perparb/pkg/ui"
	"github.com/dlemos/perparb/pkg/ui/components"
)

// TUIReporter forwards scan results into the Bubble Tea program. The
// program itself is owned by the composition root; this adapter only
// translates domain values into display rows.
type TUIReporter struct {
	rescanInterval time.Duration
	topN           int
	volAdjusted    bool
	thresholds     riskdomain.Thresholds

	lastStart time.Time
}

var _ app.Reporter = (*TUIReporter)(nil)

// NewTUIReporter creates the dashboard adapter.
func NewTUIReporter(rescanInterval time.Duration, topN int, volAdjusted bool) *TUIReporter {
	return &TUIReporter{
		rescanInterval: rescanInterval,
		topN:           topN,
		volAdjusted:    volAdjusted,
		thresholds:     riskdomain.DefaultThresholds(),
	}
}

// Start runs the Bubble Tea event loop and blocks until it exits.
func (r *TUIReporter) Start(ctx context.Context) error {
	return ui.Run(r.rescanInterval, r.topN)
}

// Stop terminates the event loop.
func (r *TUIReporter) Stop() {
	ui.Quit()
}

// ReportProgress forwards mid-scan progress. The first report of a cycle
// doubles as the scan-started signal.
func (r *TUIReporter) ReportProgress(p app.Progress) {
	if p.Completed <= 1 {
		r.lastStart = time.Now()
		ui.Send(ui.ScanStartedMsg{UniverseSize: p.Total})
	}
	ui.Send(ui.ProgressMsg{Completed: p.Completed, Total: p.Total})
}

// ReportScan forwards a finished cycle as display rows.
func (r *TUIReporter) ReportScan(opportunities []domain.Opportunity) {
	rows := make([]components.OpportunityRow, 0, len(opportunities))
	for _, opp := range opportunities {
		row := components.OpportunityRow{
			Instrument:    opp.Instrument.String(),
			APR:           opp.APR,
			AdjustedScore: opp.RankScore(true),
			TotalCostPct:  opp.TotalCostPct,
			BreakevenDays: opp.BreakevenDays,
			Depth:         opp.Depth,
			LongVenue:     opp.LongVenue,
			LongRate:      opp.LongRate,
			ShortVenue:    opp.ShortVenue,
			ShortRate:     opp.ShortRate,
			Volatility:    opp.Volatility,
		}
		if opp.Prediction != nil {
			row.Confidence = pairConfidence(opp.Prediction)
			row.Trend = opp.Prediction.Trend
		}
		rows = append(rows, row)
	}

	duration := time.Duration(0)
	if !r.lastStart.IsZero() {
		duration = time.Since(r.lastStart)
	}

	ui.Send(ui.ScanResultMsg{Rows: rows, Duration: duration})
}

// UpdateAccounts forwards the risk guard's snapshots.
func (r *TUIReporter) UpdateAccounts(accounts []riskdomain.AccountState) {
	rows := make([]components.AccountRow, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, components.AccountRow{
			Venue:       acc.Venue,
			Equity:      acc.Equity(),
			MarginLevel: acc.MarginLevel(),
			Level:       string(acc.RiskLevel(r.thresholds)),
		})
	}
	ui.Send(ui.AccountsMsg{Rows: rows})
}

// pairConfidence reports the weaker of the two legs' confidence labels.
func pairConfidence(p *domain.PredictionAnalysis) string {
	rank := map[string]int{
		domain.ConfidenceLow:    0,
		domain.ConfidenceMedium: 1,
		domain.ConfidenceHigh:   2,
	}
	if rank[p.Short.Confidence] < rank[p.Long.Confidence] {
		return p.Short.Confidence
	}
	return p.Long.Confidence
}
