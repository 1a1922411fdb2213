// Package app contains the market context's ports and the universe selector.
package app

import (
	"context"

	"github.com/dlemos/perparb/business/market/domain"
)

// VenueGateway is the read-only market data port one venue implements.
// All methods honor the context deadline and return typed unavailable
// errors on transport failure so callers can degrade per venue.
type VenueGateway interface {
	// Venue returns the venue identifier ("binance", "bybit", "okx").
	Venue() string

	// FetchFundingQuote returns the current funding rate, interval and next
	// funding time for the instrument.
	FetchFundingQuote(ctx context.Context, inst domain.Instrument) (domain.FundingQuote, error)

	// FetchBookTop returns the best price and top-of-book depth for one side.
	FetchBookTop(ctx context.Context, inst domain.Instrument, side domain.Side) (domain.BookQuote, error)

	// FetchPremium returns the venue's premium index inputs for the
	// prediction sub-model.
	FetchPremium(ctx context.Context, inst domain.Instrument) (domain.PremiumQuote, error)
}

// UniverseProvider lists the reference venue's highest-volume perpetuals.
type UniverseProvider interface {
	// FetchTopVolumeInstruments returns up to limit perpetual instruments
	// sorted descending by 24h quote volume.
	FetchTopVolumeInstruments(ctx context.Context, limit int) ([]domain.Ticker, error)
}
