package domain

import (
	"time"

	"github.com/shopspring/decimal"

	marketdomain "github.com/dlemos/perparb/business/market/domain"
)

// IntervalMode selects how the two venues' settlement intervals combine
// into the effective annualization interval.
type IntervalMode string

const (
	// IntervalModeMin assumes the faster-compounding side dominates.
	IntervalModeMin IntervalMode = "min"

	// IntervalModeAvg averages the two intervals.
	IntervalModeAvg IntervalMode = "avg"
)

// DefaultIntervalHours is substituted when a venue omits its settlement
// interval.
var DefaultIntervalHours = decimal.NewFromInt(8)

// breakevenSentinel caps breakeven days when the daily yield is negligible.
var breakevenSentinel = decimal.NewFromInt(999)

// negligibleDailyYield guards the breakeven division.
var negligibleDailyYield = decimal.NewFromFloat(0.000001)

// spreadCostPlaceholder penalizes pairs whose short bid is unusable, so a
// bad book reads as a 1% entry cost instead of a free one.
var spreadCostPlaceholder = decimal.NewFromFloat(0.01)

// Opportunity is the scan's output unit: long the venue with the lowest
// funding rate, short the one with the highest, and collect the
// differential each settlement. Immutable after construction.
type Opportunity struct {
	Instrument marketdomain.Instrument

	LongVenue  string
	ShortVenue string
	LongRate   decimal.Decimal
	ShortRate  decimal.Decimal
	LongPrice  decimal.Decimal
	ShortPrice decimal.Decimal

	RateDifferential decimal.Decimal
	IntervalHours    decimal.Decimal
	APR              decimal.Decimal

	// Cost fields are percentages (0.24 means 0.24%).
	SpreadCostPct decimal.Decimal
	FeeCostPct    decimal.Decimal
	TotalCostPct  decimal.Decimal
	BreakevenDays decimal.Decimal

	Depth      decimal.Decimal
	Volatility float64

	Prediction *PredictionAnalysis

	ObservedAt time.Time
}

// OpportunityInputs carries everything NewOpportunity derives metrics from.
// Long is the funding quote of the venue with the minimum rate, Short the
// maximum; LongBook is that venue's ask side, ShortBook the bid side.
type OpportunityInputs struct {
	Long         marketdomain.FundingQuote
	Short        marketdomain.FundingQuote
	LongBook     marketdomain.BookQuote
	ShortBook    marketdomain.BookQuote
	FeeCost      decimal.Decimal // round-trip fraction from the FeeSchedule
	IntervalMode IntervalMode
	Volatility   float64
}

// NewOpportunity computes the derived profitability metrics.
func NewOpportunity(in OpportunityInputs) Opportunity {
	rateDiff := in.Short.Rate.Sub(in.Long.Rate)

	interval := effectiveInterval(in.Long, in.Short, in.IntervalMode)
	settlementsPerDay := decimal.NewFromInt(24).Div(interval)

	apr := rateDiff.Mul(settlementsPerDay).Mul(decimal.NewFromInt(365)).Mul(decimal.NewFromInt(100))

	// Entry at the long venue's ask, short entry at the short venue's bid.
	spreadCost := spreadCostPlaceholder
	if in.ShortBook.Price.IsPositive() {
		spreadCost = in.LongBook.Price.Sub(in.ShortBook.Price).Div(in.ShortBook.Price)
	}

	totalCost := spreadCost.Add(in.FeeCost)
	dailyYield := rateDiff.Mul(settlementsPerDay)

	hundred := decimal.NewFromInt(100)

	return Opportunity{
		Instrument:       in.Long.Instrument,
		LongVenue:        in.Long.Venue,
		ShortVenue:       in.Short.Venue,
		LongRate:         in.Long.Rate,
		ShortRate:        in.Short.Rate,
		LongPrice:        in.LongBook.Price,
		ShortPrice:       in.ShortBook.Price,
		RateDifferential: rateDiff,
		IntervalHours:    interval,
		APR:              apr,
		SpreadCostPct:    spreadCost.Mul(hundred),
		FeeCostPct:       in.FeeCost.Mul(hundred),
		TotalCostPct:     totalCost.Mul(hundred),
		BreakevenDays:    breakevenDays(totalCost, dailyYield),
		Depth:            decimal.Min(in.LongBook.Depth, in.ShortBook.Depth),
		Volatility:       in.Volatility,
		ObservedAt:       time.Now(),
	}
}

// effectiveInterval combines the venues' settlement intervals, substituting
// the default where a venue did not report one.
func effectiveInterval(long, short marketdomain.FundingQuote, mode IntervalMode) decimal.Decimal {
	a := long.IntervalHours
	if !a.IsPositive() {
		a = DefaultIntervalHours
	}
	b := short.IntervalHours
	if !b.IsPositive() {
		b = DefaultIntervalHours
	}

	if mode == IntervalModeAvg {
		return a.Add(b).Div(decimal.NewFromInt(2))
	}
	return decimal.Min(a, b)
}

// breakevenDays is zero when the position is profitable at entry, the
// sentinel when the funding income is negligible, otherwise cost over
// daily yield.
func breakevenDays(totalCost, dailyYield decimal.Decimal) decimal.Decimal {
	if totalCost.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if dailyYield.LessThanOrEqual(negligibleDailyYield) {
		return breakevenSentinel
	}
	return totalCost.Div(dailyYield)
}

// RankScore returns the sort key: raw APR, or APR scaled by volatility when
// volatility-adjusted ranking is on.
func (o Opportunity) RankScore(volatilityAdjusted bool) decimal.Decimal {
	if !volatilityAdjusted {
		return o.APR
	}
	vol := o.Volatility
	if vol <= 0 {
		vol = 0.0001
	}
	return o.APR.Div(decimal.NewFromFloat(vol))
}
