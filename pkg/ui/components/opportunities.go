// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow is one ranked cross-venue funding opportunity. All values
// are pre-calculated by the domain; the component only formats them.
type OpportunityRow struct {
	Instrument    string
	APR           decimal.Decimal
	AdjustedScore decimal.Decimal
	TotalCostPct  decimal.Decimal
	BreakevenDays decimal.Decimal
	Depth         decimal.Decimal
	LongVenue     string
	LongRate      decimal.Decimal
	ShortVenue    string
	ShortRate     decimal.Decimal
	Volatility    float64
	Confidence    string
	Trend         string
}

// OpportunitiesComponent renders the ranked opportunity table.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
}

// NewOpportunitiesComponent creates an opportunities component showing at
// most maxRows entries.
func NewOpportunitiesComponent(maxRows int) *OpportunitiesComponent {
	return &OpportunitiesComponent{maxRows: maxRows}
}

// Update replaces the table with a fresh scan cycle.
func (o *OpportunitiesComponent) Update(rows []OpportunityRow) {
	o.rows = rows
}

// Clear empties the table.
func (o *OpportunitiesComponent) Clear() {
	o.rows = nil
}

// SortByAdjusted re-ranks the rows by the volatility-adjusted score when
// adjusted is true, by raw APR otherwise.
func (o *OpportunitiesComponent) SortByAdjusted(adjusted bool) {
	sort.SliceStable(o.rows, func(i, j int) bool {
		if adjusted {
			return o.rows[i].AdjustedScore.GreaterThan(o.rows[j].AdjustedScore)
		}
		return o.rows[i].APR.GreaterThan(o.rows[j].APR)
	})
}

// formatDepth renders a notional in USDT as a compact string (50000 -> 50k).
func formatDepth(d decimal.Decimal) string {
	v := d.InexactFloat64()
	if v > 1000 {
		return fmt.Sprintf("%.0fk", v/1000)
	}
	return fmt.Sprintf("%.0f", v)
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	costStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	if len(o.rows) == 0 {
		return headerStyle.Render("OPPORTUNITIES") + "\n\n" +
			mutedStyle.Render("  Market is quiet, nothing above the APR floor...")
	}

	result := headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (top %d)", o.maxRows)) + "\n"
	result += mutedStyle.Render(fmt.Sprintf("%-12s %8s %8s %9s %9s  %-34s %8s",
		"Pair", "APR", "Cost%", "Breakeven", "Depth", "Strategy (long / short)", "Sigma")) + "\n"

	shown := o.rows
	if len(shown) > o.maxRows {
		shown = shown[:o.maxRows]
	}

	for _, row := range shown {
		strategy := fmt.Sprintf("L %s (%s%%) / S %s (%s%%)",
			row.LongVenue,
			row.LongRate.Mul(decimal.NewFromInt(100)).StringFixed(4),
			row.ShortVenue,
			row.ShortRate.Mul(decimal.NewFromInt(100)).StringFixed(4),
		)

		breakeven := row.BreakevenDays.StringFixed(1) + "d"
		if row.BreakevenDays.IsZero() {
			breakeven = "now"
		}

		line := fmt.Sprintf("%-12s %s %s %9s %9s  %-34s %8.5f",
			row.Instrument,
			profitStyle.Render(fmt.Sprintf("%7s%%", row.APR.StringFixed(1))),
			costStyle.Render(fmt.Sprintf("%7s%%", row.TotalCostPct.StringFixed(2))),
			breakeven,
			formatDepth(row.Depth),
			strategy,
			row.Volatility,
		)

		if row.Confidence != "" {
			line += mutedStyle.Render(fmt.Sprintf("  [%s/%s]", row.Confidence, row.Trend))
		}

		result += line + "\n"
	}

	return result
}
