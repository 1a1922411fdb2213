// Package domain holds the account margin model for the risk guard.
package domain

import "github.com/shopspring/decimal"

// marginLevelSentinel is reported when an account has no positive equity;
// any used margin against zero equity is maximally risky.
var marginLevelSentinel = decimal.NewFromInt(999)

// RiskLevel classifies an account's margin usage.
type RiskLevel string

const (
	RiskOK      RiskLevel = "ok"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
)

// Thresholds are the margin-level boundaries between risk levels.
// ok < Warning <= warning < Danger <= danger.
type Thresholds struct {
	Warning decimal.Decimal
	Danger  decimal.Decimal
}

// DefaultThresholds warn at 60% margin usage and escalate at 80%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning: decimal.RequireFromString("0.6"),
		Danger:  decimal.RequireFromString("0.8"),
	}
}

// AccountState is one venue's futures account snapshot, in USDT.
type AccountState struct {
	Venue         string
	Balance       decimal.Decimal
	UnrealizedPnL decimal.Decimal
	UsedMargin    decimal.Decimal
	UpdatedAt     int64
}

// Equity is wallet balance plus unrealized PnL.
func (a AccountState) Equity() decimal.Decimal {
	return a.Balance.Add(a.UnrealizedPnL)
}

// MarginLevel is used margin over equity. Lower is safer. Accounts with no
// positive equity report the 999 sentinel.
func (a AccountState) MarginLevel() decimal.Decimal {
	equity := a.Equity()
	if equity.LessThanOrEqual(decimal.Zero) {
		return marginLevelSentinel
	}
	return a.UsedMargin.Div(equity)
}

// RiskLevel grades the margin level against the thresholds.
func (a AccountState) RiskLevel(t Thresholds) RiskLevel {
	level := a.MarginLevel()
	switch {
	case level.GreaterThanOrEqual(t.Danger):
		return RiskDanger
	case level.GreaterThanOrEqual(t.Warning):
		return RiskWarning
	default:
		return RiskOK
	}
}

// MarginAlert advises reducing exposure on an account past the danger
// threshold. Both legs of a hedged position shrink by the same fraction so
// the hedge stays balanced.
type MarginAlert struct {
	Venue              string
	MarginLevel        decimal.Decimal
	Level              RiskLevel
	DeleverageFraction decimal.Decimal
}

// TransferAdvice suggests moving funds off a venue whose equity has drifted
// above the fleet average.
type TransferAdvice struct {
	FromVenue string
	Excess    decimal.Decimal
	Amount    decimal.Decimal
}
