// Package mock provides an offline deterministic venue gateway so the
// scanner can run without network access or API credentials.
package mock

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dlemos/perparb/business/market/app"
	"github.com/dlemos/perparb/business/market/domain"
)

// Per-venue funding bias in rate units. The biases differ so every scan
// produces non-zero differentials, mirroring real cross-venue skew.
var venueBias = map[string]float64{
	"binance": 0.00010,
	"bybit":   -0.00020,
	"okx":     0.00004,
}

// Reference prices for the majors; other instruments derive a stable price
// from their symbol hash.
var referencePrices = map[string]float64{
	"BTC/USDT": 42150.5,
	"ETH/USDT": 2245.8,
	"SOL/USDT": 98.4,
}

// Gateway is a deterministic in-memory venue.
type Gateway struct {
	venue string
}

var (
	_ app.VenueGateway     = (*Gateway)(nil)
	_ app.UniverseProvider = (*Gateway)(nil)
)

// NewGateway creates a mock gateway posing as the named venue.
func NewGateway(venue string) *Gateway {
	return &Gateway{venue: venue}
}

// Venue returns the venue identifier.
func (g *Gateway) Venue() string { return g.venue }

// seed derives a stable [0,1) value from venue+instrument+salt.
func (g *Gateway) seed(inst domain.Instrument, salt string) float64 {
	h := fnv.New64a()
	h.Write([]byte(g.venue))
	h.Write([]byte(inst.String()))
	h.Write([]byte(salt))
	return float64(h.Sum64()%10000) / 10000.0
}

func (g *Gateway) basePrice(inst domain.Instrument) float64 {
	if p, ok := referencePrices[inst.String()]; ok {
		return p
	}
	// Anything between 0.5 and 500, stable per instrument.
	return 0.5 + g.seed(inst, "price")*499.5
}

// FetchFundingQuote returns a deterministic funding rate around the venue
// bias. Rates stay inside the usual [-0.075%, +0.075%] clamp.
func (g *Gateway) FetchFundingQuote(ctx context.Context, inst domain.Instrument) (domain.FundingQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.FundingQuote{}, err
	}

	rate := venueBias[g.venue] + (g.seed(inst, "funding")-0.5)*0.0004
	if rate > 0.00075 {
		rate = 0.00075
	}
	if rate < -0.00075 {
		rate = -0.00075
	}

	now := time.Now()
	return domain.FundingQuote{
		Venue:           g.venue,
		Instrument:      inst,
		Rate:            decimal.NewFromFloat(rate),
		IntervalHours:   decimal.NewFromInt(8),
		NextFundingTime: now.Truncate(8 * time.Hour).Add(8 * time.Hour),
		ObservedAt:      now,
	}, nil
}

// FetchBookTop returns a tight synthetic book around the reference price.
func (g *Gateway) FetchBookTop(ctx context.Context, inst domain.Instrument, side domain.Side) (domain.BookQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.BookQuote{}, err
	}

	base := g.basePrice(inst)

	// 1 bps half-spread plus a small per-venue offset.
	offset := base * (0.0001 + (g.seed(inst, "book")-0.5)*0.00005)
	price := base + offset
	if side == domain.SideSell {
		price = base - offset
	}

	return domain.BookQuote{
		Venue:      g.venue,
		Instrument: inst,
		Side:       side,
		Price:      decimal.NewFromFloat(price),
		Depth:      decimal.NewFromFloat(1_000_000 + g.seed(inst, "depth")*9_000_000),
		ObservedAt: time.Now(),
	}, nil
}

// FetchPremium returns mark/index prices consistent with the funding bias.
func (g *Gateway) FetchPremium(ctx context.Context, inst domain.Instrument) (domain.PremiumQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.PremiumQuote{}, err
	}

	index := g.basePrice(inst)
	mark := index * (1 + venueBias[g.venue])

	return domain.PremiumQuote{
		Venue:      g.venue,
		Instrument: inst,
		MarkPrice:  decimal.NewFromFloat(mark),
		IndexPrice: decimal.NewFromFloat(index),
		ObservedAt: time.Now(),
	}, nil
}

// FetchTopVolumeInstruments returns the majors with fixed descending volume.
func (g *Gateway) FetchTopVolumeInstruments(ctx context.Context, limit int) ([]domain.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := []domain.Ticker{
		{Instrument: domain.Instrument{Base: "BTC", Quote: "USDT"}, QuoteVolume: decimal.NewFromInt(8_500_000_000), Perpetual: true},
		{Instrument: domain.Instrument{Base: "ETH", Quote: "USDT"}, QuoteVolume: decimal.NewFromInt(3_200_000_000), Perpetual: true},
		{Instrument: domain.Instrument{Base: "SOL", Quote: "USDT"}, QuoteVolume: decimal.NewFromInt(950_000_000), Perpetual: true},
	}

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
