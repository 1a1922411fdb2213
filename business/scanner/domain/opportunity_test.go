package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	marketdomain "github.com/dlemos/perparb/business/market/domain"
)

func funding(venue, rate, intervalHours string) marketdomain.FundingQuote {
	q := marketdomain.FundingQuote{
		Venue:      venue,
		Instrument: marketdomain.Instrument{Base: "BTC", Quote: "USDT"},
		Rate:       decimal.RequireFromString(rate),
	}
	if intervalHours != "" {
		q.IntervalHours = decimal.RequireFromString(intervalHours)
	}
	return q
}

func book(venue string, side marketdomain.Side, price string) marketdomain.BookQuote {
	return marketdomain.BookQuote{
		Venue:      venue,
		Instrument: marketdomain.Instrument{Base: "BTC", Quote: "USDT"},
		Side:       side,
		Price:      decimal.RequireFromString(price),
		Depth:      decimal.NewFromInt(1_000_000),
	}
}

// Rates 0.0001 vs 0.0006 over 8h settle 3 times a day:
// (0.0006-0.0001)*3*365*100 = 54.75% APR. With a flat book and zero fees
// the position is profitable at entry.
func TestOpportunityZeroCostScenario(t *testing.T) {
	opp := NewOpportunity(OpportunityInputs{
		Long:         funding("binance", "0.0001", "8"),
		Short:        funding("bybit", "0.0006", "8"),
		LongBook:     book("binance", marketdomain.SideBuy, "100.00"),
		ShortBook:    book("bybit", marketdomain.SideSell, "100.00"),
		FeeCost:      decimal.Zero,
		IntervalMode: IntervalModeMin,
	})

	if want := decimal.RequireFromString("54.75"); !opp.APR.Equal(want) {
		t.Errorf("APR = %s, want %s", opp.APR, want)
	}
	if !opp.SpreadCostPct.IsZero() {
		t.Errorf("spread cost = %s, want 0", opp.SpreadCostPct)
	}
	if !opp.TotalCostPct.IsZero() {
		t.Errorf("total cost = %s, want 0", opp.TotalCostPct)
	}
	if !opp.BreakevenDays.IsZero() {
		t.Errorf("breakeven days = %s, want 0", opp.BreakevenDays)
	}
}

// Same rates, ask 100.10 vs bid 100.00 (0.1% spread) plus 0.14% fees:
// total cost 0.24%, daily yield 0.0015, breakeven 1.6 days.
func TestOpportunityBreakevenScenario(t *testing.T) {
	opp := NewOpportunity(OpportunityInputs{
		Long:         funding("binance", "0.0001", "8"),
		Short:        funding("bybit", "0.0006", "8"),
		LongBook:     book("binance", marketdomain.SideBuy, "100.10"),
		ShortBook:    book("bybit", marketdomain.SideSell, "100.00"),
		FeeCost:      decimal.RequireFromString("0.0014"),
		IntervalMode: IntervalModeMin,
	})

	if want := decimal.RequireFromString("0.24"); !opp.TotalCostPct.Equal(want) {
		t.Errorf("total cost = %s%%, want %s%%", opp.TotalCostPct, want)
	}
	if want := decimal.RequireFromString("1.6"); !opp.BreakevenDays.Equal(want) {
		t.Errorf("breakeven days = %s, want %s", opp.BreakevenDays, want)
	}
}

func TestOpportunityBreakevenSentinel(t *testing.T) {
	// Identical rates: positive cost, negligible daily yield.
	opp := NewOpportunity(OpportunityInputs{
		Long:         funding("binance", "0.0001", "8"),
		Short:        funding("bybit", "0.0001", "8"),
		LongBook:     book("binance", marketdomain.SideBuy, "100.10"),
		ShortBook:    book("bybit", marketdomain.SideSell, "100.00"),
		FeeCost:      decimal.RequireFromString("0.0014"),
		IntervalMode: IntervalModeMin,
	})

	if want := decimal.NewFromInt(999); !opp.BreakevenDays.Equal(want) {
		t.Errorf("breakeven days = %s, want sentinel %s", opp.BreakevenDays, want)
	}
}

func TestOpportunityNegativeSpreadOffsetsFees(t *testing.T) {
	// Long entry below the short bid: the spread itself pays.
	opp := NewOpportunity(OpportunityInputs{
		Long:         funding("binance", "0.0001", "8"),
		Short:        funding("bybit", "0.0006", "8"),
		LongBook:     book("binance", marketdomain.SideBuy, "99.50"),
		ShortBook:    book("bybit", marketdomain.SideSell, "100.00"),
		FeeCost:      decimal.RequireFromString("0.0014"),
		IntervalMode: IntervalModeMin,
	})

	if !opp.SpreadCostPct.IsNegative() {
		t.Fatalf("spread cost = %s, want negative", opp.SpreadCostPct)
	}
	if !opp.TotalCostPct.IsNegative() {
		t.Fatalf("total cost = %s, want negative", opp.TotalCostPct)
	}
	if !opp.BreakevenDays.IsZero() {
		t.Errorf("breakeven days = %s, want 0 for negative total cost", opp.BreakevenDays)
	}
}

func TestEffectiveIntervalModes(t *testing.T) {
	tests := []struct {
		name          string
		longInterval  string
		shortInterval string
		mode          IntervalMode
		want          string
	}{
		{"min picks faster side", "8", "4", IntervalModeMin, "4"},
		{"avg averages", "8", "4", IntervalModeAvg, "6"},
		{"missing interval defaults to 8h", "", "4", IntervalModeMin, "4"},
		{"both missing default", "", "", IntervalModeMin, "8"},
		{"avg with one default", "", "4", IntervalModeAvg, "6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := effectiveInterval(
				funding("binance", "0", tt.longInterval),
				funding("bybit", "0", tt.shortInterval),
				tt.mode,
			)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("effectiveInterval = %s, want %s", got, want)
			}
		})
	}
}

func TestRankScoreVolatilityAdjusted(t *testing.T) {
	opp := NewOpportunity(OpportunityInputs{
		Long:         funding("binance", "0.0001", "8"),
		Short:        funding("bybit", "0.0006", "8"),
		LongBook:     book("binance", marketdomain.SideBuy, "100.00"),
		ShortBook:    book("bybit", marketdomain.SideSell, "100.00"),
		FeeCost:      decimal.Zero,
		IntervalMode: IntervalModeMin,
		Volatility:   0.0005,
	})

	raw := opp.RankScore(false)
	if !raw.Equal(opp.APR) {
		t.Errorf("raw rank score = %s, want APR %s", raw, opp.APR)
	}

	adjusted := opp.RankScore(true)
	want := opp.APR.Div(decimal.RequireFromString("0.0005"))
	if !adjusted.Equal(want) {
		t.Errorf("adjusted rank score = %s, want %s", adjusted, want)
	}
}

// A short book with no usable bid cannot price the entry spread; the cost
// model charges the 1% placeholder rather than treating entry as free.
func TestOpportunityUnusableBidPenalizesSpread(t *testing.T) {
	opp := NewOpportunity(OpportunityInputs{
		Long:         funding("binance", "0.0001", "8"),
		Short:        funding("bybit", "0.0006", "8"),
		LongBook:     book("binance", marketdomain.SideBuy, "100.00"),
		ShortBook:    book("bybit", marketdomain.SideSell, "0"),
		FeeCost:      decimal.Zero,
		IntervalMode: IntervalModeMin,
	})

	if want := decimal.NewFromInt(1); !opp.SpreadCostPct.Equal(want) {
		t.Errorf("spread cost = %s%%, want %s%%", opp.SpreadCostPct, want)
	}
	if !opp.BreakevenDays.IsPositive() {
		t.Errorf("breakeven days = %s, want positive with a penalized spread", opp.BreakevenDays)
	}
}
