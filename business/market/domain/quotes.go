package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingQuote is one venue's current funding state for an instrument.
// Rate is the signed per-interval funding rate (0.0001 = 0.01% per interval).
// IntervalHours of zero means the venue did not report an interval and the
// caller substitutes the default.
type FundingQuote struct {
	Venue           string
	Instrument      Instrument
	Rate            decimal.Decimal
	IntervalHours   decimal.Decimal
	NextFundingTime time.Time
	ObservedAt      time.Time
}

// HasInterval reports whether the venue reported a funding interval.
func (q FundingQuote) HasInterval() bool {
	return q.IntervalHours.IsPositive()
}

// BookQuote is the top of one side of a venue's order book.
// Depth is the cumulative quote-currency notional of the top levels, used
// as a coarse executable-liquidity signal.
type BookQuote struct {
	Venue      string
	Instrument Instrument
	Side       Side
	Price      decimal.Decimal
	Depth      decimal.Decimal
	ObservedAt time.Time
}

// PremiumQuote carries the inputs of a venue's premium index calculation.
// Impact prices may be absent; PremiumIndex falls back to the mark/index
// deviation in that case.
type PremiumQuote struct {
	Venue      string
	Instrument Instrument
	MarkPrice  decimal.Decimal
	IndexPrice decimal.Decimal
	ImpactBid  decimal.Decimal
	ImpactAsk  decimal.Decimal
	ObservedAt time.Time
}

// PremiumIndex computes the premium index the way venues document it:
//
//	P = (max(0, impactBid - index) - max(0, index - impactAsk)) / index
//
// falling back to (mark - index) / index when impact prices are missing.
func (q PremiumQuote) PremiumIndex() decimal.Decimal {
	if !q.IndexPrice.IsPositive() {
		return decimal.Zero
	}

	if q.ImpactBid.IsPositive() && q.ImpactAsk.IsPositive() {
		bidPremium := decimal.Max(decimal.Zero, q.ImpactBid.Sub(q.IndexPrice))
		askDiscount := decimal.Max(decimal.Zero, q.IndexPrice.Sub(q.ImpactAsk))
		return bidPremium.Sub(askDiscount).Div(q.IndexPrice)
	}

	return q.MarkPrice.Sub(q.IndexPrice).Div(q.IndexPrice)
}

// Ticker is a 24h volume snapshot used for universe discovery.
type Ticker struct {
	Instrument  Instrument
	QuoteVolume decimal.Decimal
	Perpetual   bool
}
