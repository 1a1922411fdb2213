package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func account(balance, pnl, margin string) AccountState {
	return AccountState{
		Venue:         "binance",
		Balance:       decimal.RequireFromString(balance),
		UnrealizedPnL: decimal.RequireFromString(pnl),
		UsedMargin:    decimal.RequireFromString(margin),
	}
}

func TestEquity(t *testing.T) {
	acc := account("10000", "-200", "3000")
	if want := decimal.RequireFromString("9800"); !acc.Equity().Equal(want) {
		t.Errorf("equity = %s, want %s", acc.Equity(), want)
	}
}

func TestMarginLevel(t *testing.T) {
	tests := []struct {
		name    string
		account AccountState
		want    string
	}{
		{"healthy", account("10000", "500", "3000"), "0.2857142857142857"},
		{"half used", account("10000", "0", "5000"), "0.5"},
		{"underwater pnl", account("10000", "-4000", "3000"), "0.5"},
		{"zero equity sentinel", account("10000", "-10000", "3000"), "999"},
		{"negative equity sentinel", account("10000", "-12000", "3000"), "999"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.account.MarginLevel()
			if want := decimal.RequireFromString(tc.want); !got.Equal(want) {
				t.Errorf("margin level = %s, want %s", got, want)
			}
		})
	}
}

func TestRiskLevel(t *testing.T) {
	thresholds := DefaultThresholds()

	tests := []struct {
		name    string
		account AccountState
		want    RiskLevel
	}{
		{"below warning", account("10000", "0", "5999"), RiskOK},
		{"at warning boundary", account("10000", "0", "6000"), RiskWarning},
		{"between thresholds", account("10000", "0", "7000"), RiskWarning},
		{"at danger boundary", account("10000", "0", "8000"), RiskDanger},
		{"above danger", account("10000", "0", "9500"), RiskDanger},
		{"sentinel is danger", account("0", "0", "3000"), RiskDanger},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.account.RiskLevel(thresholds); got != tc.want {
				t.Errorf("risk level = %q, want %q", got, tc.want)
			}
		})
	}
}
