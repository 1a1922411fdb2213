// Package domain contains the scanner's pure model: fees, history,
// opportunities and prediction records.
package domain

import "github.com/shopspring/decimal"

// FeeMode selects how the round-trip cost of the two-leg position is
// composed. Both legs are opened and closed once.
type FeeMode string

const (
	// FeeModeMixed assumes taker entries and maker exits:
	// longTaker + shortTaker + longMaker + shortMaker.
	FeeModeMixed FeeMode = "mixed"

	// FeeModeTaker is the conservative all-taker composition:
	// 2*longTaker + 2*shortTaker.
	FeeModeTaker FeeMode = "taker"
)

// VenueFees holds one venue's maker and taker rates as fractions.
type VenueFees struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// FeeSchedule maps venue ids to their fee rates. The table is fixed at
// construction and safe for concurrent reads.
type FeeSchedule struct {
	venues   map[string]VenueFees
	fallback VenueFees
}

// NewFeeSchedule builds a schedule from explicit venue rates.
func NewFeeSchedule(venues map[string]VenueFees, fallback VenueFees) *FeeSchedule {
	copied := make(map[string]VenueFees, len(venues))
	for k, v := range venues {
		copied[k] = v
	}
	return &FeeSchedule{venues: copied, fallback: fallback}
}

// DefaultFeeSchedule returns the standard VIP-0 futures rates.
func DefaultFeeSchedule() *FeeSchedule {
	return NewFeeSchedule(map[string]VenueFees{
		"binance": {Maker: decimal.NewFromFloat(0.0002), Taker: decimal.NewFromFloat(0.0005)},
		"bybit":   {Maker: decimal.NewFromFloat(0.0001), Taker: decimal.NewFromFloat(0.0006)},
		"okx":     {Maker: decimal.NewFromFloat(0.0002), Taker: decimal.NewFromFloat(0.0005)},
	}, VenueFees{
		Maker: decimal.NewFromFloat(0.0002),
		Taker: decimal.NewFromFloat(0.0005),
	})
}

// Fees returns the venue's rates, falling back to the default pair for
// unknown venues.
func (s *FeeSchedule) Fees(venue string) VenueFees {
	if fees, ok := s.venues[venue]; ok {
		return fees
	}
	return s.fallback
}

// RoundTripCost returns the total fee fraction for opening and closing the
// long leg on longVenue and the short leg on shortVenue.
func (s *FeeSchedule) RoundTripCost(longVenue, shortVenue string, mode FeeMode) decimal.Decimal {
	long := s.Fees(longVenue)
	short := s.Fees(shortVenue)

	if mode == FeeModeTaker {
		two := decimal.NewFromInt(2)
		return long.Taker.Mul(two).Add(short.Taker.Mul(two))
	}

	return long.Taker.Add(short.Taker).Add(long.Maker).Add(short.Maker)
}
