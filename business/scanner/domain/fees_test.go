package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundTripCostMixed(t *testing.T) {
	schedule := DefaultFeeSchedule()

	tests := []struct {
		name       string
		longVenue  string
		shortVenue string
		want       string
	}{
		{
			// binance taker 0.0005 + bybit taker 0.0006 + binance maker 0.0002 + bybit maker 0.0001
			name:       "binance long bybit short",
			longVenue:  "binance",
			shortVenue: "bybit",
			want:       "0.0014",
		},
		{
			name:       "okx long binance short",
			longVenue:  "okx",
			shortVenue: "binance",
			want:       "0.0014",
		},
		{
			// Unknown venues use the fallback pair on both legs.
			name:       "unknown venues fall back",
			longVenue:  "deribit",
			shortVenue: "kraken",
			want:       "0.0014",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := schedule.RoundTripCost(tt.longVenue, tt.shortVenue, FeeModeMixed)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("RoundTripCost(%s, %s, mixed) = %s, want %s",
					tt.longVenue, tt.shortVenue, got, want)
			}
		})
	}
}

func TestRoundTripCostAllTaker(t *testing.T) {
	schedule := DefaultFeeSchedule()

	// 2*0.0005 + 2*0.0006
	got := schedule.RoundTripCost("binance", "bybit", FeeModeTaker)
	want := decimal.RequireFromString("0.0022")
	if !got.Equal(want) {
		t.Errorf("RoundTripCost(binance, bybit, taker) = %s, want %s", got, want)
	}
}

func TestRoundTripCostTakerAlwaysGeqMixed(t *testing.T) {
	schedule := DefaultFeeSchedule()
	venues := []string{"binance", "bybit", "okx", "unknown"}

	for _, long := range venues {
		for _, short := range venues {
			mixed := schedule.RoundTripCost(long, short, FeeModeMixed)
			taker := schedule.RoundTripCost(long, short, FeeModeTaker)
			if taker.LessThan(mixed) {
				t.Errorf("all-taker cost %s < mixed cost %s for (%s, %s)",
					taker, mixed, long, short)
			}
		}
	}
}
