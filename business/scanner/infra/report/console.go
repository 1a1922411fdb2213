// Package report implements the presentation port: a plain console renderer
// and a forwarder into the Bubble Tea dashboard.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	riskdomain "github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/business/scanner/app"
	"github.com/dlemos/perparb/business/scanner/domain"
)

// ConsoleReporter renders scan cycles as text tables. It is the non-TUI
// output path.
type ConsoleReporter struct {
	out  io.Writer
	topN int
	now  func() time.Time
}

var _ app.Reporter = (*ConsoleReporter)(nil)

// NewConsoleReporter writes tables of at most topN rows to out.
func NewConsoleReporter(out io.Writer, topN int) *ConsoleReporter {
	if topN <= 0 {
		topN = 5
	}
	return &ConsoleReporter{out: out, topN: topN, now: time.Now}
}

// Start is a no-op; console output needs no event loop.
func (r *ConsoleReporter) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (r *ConsoleReporter) Stop() {}

// ReportProgress is a no-op; per-instrument progress is noise on a plain
// console.
func (r *ConsoleReporter) ReportProgress(p app.Progress) {}

// ReportScan prints the ranked table for one cycle.
func (r *ConsoleReporter) ReportScan(opportunities []domain.Opportunity) {
	fmt.Fprintf(r.out, "\n[scan] ===================================\n")
	fmt.Fprintf(r.out, "time: %s\n", r.now().Format("15:04:05"))

	if len(opportunities) == 0 {
		fmt.Fprintln(r.out, "market is quiet, nothing above the APR floor")
		return
	}

	fmt.Fprintf(r.out, "found %d opportunities, top %d:\n", len(opportunities), r.topN)
	fmt.Fprintf(r.out, "%-12s %8s %8s %10s %10s  %-44s %8s\n",
		"pair", "apr", "cost%", "breakeven", "depth(U)", "strategy (long / short)", "sigma")

	shown := opportunities
	if len(shown) > r.topN {
		shown = shown[:r.topN]
	}

	hundred := decimal.NewFromInt(100)
	for _, opp := range shown {
		strategy := fmt.Sprintf("Long %s (%s%%) / Short %s (%s%%)",
			opp.LongVenue, opp.LongRate.Mul(hundred).StringFixed(4),
			opp.ShortVenue, opp.ShortRate.Mul(hundred).StringFixed(4))

		breakeven := opp.BreakevenDays.StringFixed(1) + "d"
		if opp.BreakevenDays.IsZero() {
			breakeven = "now"
		}

		fmt.Fprintf(r.out, "%-12s %7s%% %7s%% %10s %10s  %-44s %8.5f\n",
			opp.Instrument.String(),
			opp.APR.StringFixed(1),
			opp.TotalCostPct.StringFixed(2),
			breakeven,
			formatDepth(opp.Depth),
			strategy,
			opp.Volatility,
		)

		if opp.Prediction != nil {
			fmt.Fprintf(r.out, "             predicted: long %s%% (%s) / short %s%% (%s), stability %.2f, %s\n",
				opp.Prediction.Long.PredictedRate.Mul(hundred).StringFixed(4),
				opp.Prediction.Long.Confidence,
				opp.Prediction.Short.PredictedRate.Mul(hundred).StringFixed(4),
				opp.Prediction.Short.Confidence,
				opp.Prediction.StabilityScore,
				opp.Prediction.Trend,
			)
		}
	}
}

// UpdateAccounts prints the margin panel.
func (r *ConsoleReporter) UpdateAccounts(accounts []riskdomain.AccountState) {
	if len(accounts) == 0 {
		return
	}

	thresholds := riskdomain.DefaultThresholds()
	hundred := decimal.NewFromInt(100)

	fmt.Fprintln(r.out, "[accounts]")
	for _, acc := range accounts {
		fmt.Fprintf(r.out, "  %-8s equity $%-9s margin %6s%% %s\n",
			acc.Venue,
			acc.Equity().StringFixed(0),
			acc.MarginLevel().Mul(hundred).StringFixed(1),
			acc.RiskLevel(thresholds),
		)
	}
}

func formatDepth(d decimal.Decimal) string {
	v := d.InexactFloat64()
	if v > 1000 {
		return fmt.Sprintf("%.0fk", v/1000)
	}
	return fmt.Sprintf("%.0f", v)
}
