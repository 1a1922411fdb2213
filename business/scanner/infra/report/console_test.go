package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	marketdomain "github.com/dlemos/perparb/business/market/domain"
	riskdomain "github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/business/scanner/domain"
)

func sampleOpportunity() domain.Opportunity {
	return domain.Opportunity{
		Instrument:    marketdomain.Instrument{Base: "BTC", Quote: "USDT"},
		LongVenue:     "binance",
		ShortVenue:    "bybit",
		LongRate:      decimal.RequireFromString("0.0001"),
		ShortRate:     decimal.RequireFromString("0.0006"),
		APR:           decimal.RequireFromString("54.75"),
		TotalCostPct:  decimal.RequireFromString("0.24"),
		BreakevenDays: decimal.RequireFromString("1.6"),
		Depth:         decimal.NewFromInt(50000),
	}
}

func TestConsoleReporterRendersTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, 5)

	r.ReportScan([]domain.Opportunity{sampleOpportunity()})

	out := buf.String()
	for _, want := range []string{"BTC/USDT", "54.8", "0.24", "1.6d", "50k", "Long binance", "Short bybit"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleReporterQuietMarket(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, 5)

	r.ReportScan(nil)

	if !strings.Contains(buf.String(), "quiet") {
		t.Errorf("expected quiet-market line, got:\n%s", buf.String())
	}
}

func TestConsoleReporterTruncatesToTopN(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, 2)

	opps := make([]domain.Opportunity, 4)
	for i := range opps {
		opps[i] = sampleOpportunity()
	}
	r.ReportScan(opps)

	if got := strings.Count(buf.String(), "BTC/USDT"); got != 2 {
		t.Errorf("rendered %d rows, want 2", got)
	}
}

func TestConsoleReporterAccounts(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, 5)

	r.UpdateAccounts([]riskdomain.AccountState{
		{
			Venue:         "okx",
			Balance:       decimal.NewFromInt(10000),
			UnrealizedPnL: decimal.NewFromInt(-4000),
			UsedMargin:    decimal.NewFromInt(3000),
		},
	})

	out := buf.String()
	if !strings.Contains(out, "okx") || !strings.Contains(out, "6000") {
		t.Errorf("account panel missing venue or equity:\n%s", out)
	}
}
