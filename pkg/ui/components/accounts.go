package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// AccountRow is one venue's margin snapshot, pre-calculated by the risk
// guard.
type AccountRow struct {
	Venue       string
	Equity      decimal.Decimal
	MarginLevel decimal.Decimal
	Level       string // "ok", "warning", "danger"
}

// AccountsComponent renders the per-venue margin panel.
type AccountsComponent struct {
	rows []AccountRow
}

// NewAccountsComponent creates an accounts component.
func NewAccountsComponent() *AccountsComponent {
	return &AccountsComponent{}
}

// Update replaces the account snapshots.
func (a *AccountsComponent) Update(rows []AccountRow) {
	a.rows = rows
}

// View renders the accounts component.
func (a *AccountsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dangerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	var result string
	result += headerStyle.Render("ACCOUNTS") + "\n"

	if len(a.rows) == 0 {
		result += mutedStyle.Render("  No account credentials configured")
		return result
	}

	for _, row := range a.rows {
		var style lipgloss.Style
		var icon string
		switch row.Level {
		case "danger":
			style = dangerStyle
			icon = "▲"
		case "warning":
			style = warnStyle
			icon = "!"
		default:
			style = okStyle
			icon = "●"
		}

		result += fmt.Sprintf("  %s %-8s  equity $%-9s  margin %s\n",
			style.Render(icon),
			row.Venue,
			row.Equity.StringFixed(0),
			style.Render(row.MarginLevel.Mul(decimal.NewFromInt(100)).StringFixed(1)+"%"),
		)
	}

	return result
}
