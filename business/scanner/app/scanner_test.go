package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	marketapp "github.com/dlemos/perparb/business/market/app"
	marketdomain "github.com/dlemos/perparb/business/market/domain"
	"github.com/dlemos/perparb/business/scanner/domain"
	"github.com/dlemos/perparb/internal/logger"
)

type fakeGateway struct {
	venue      string
	rates      map[string]string // instrument -> funding rate
	asks       map[string]string // instrument -> best ask
	bids       map[string]string // instrument -> best bid
	fundingErr error
	bookErr    error
	premium    string
	premiumErr error
}

func (f *fakeGateway) Venue() string { return f.venue }

func (f *fakeGateway) FetchFundingQuote(ctx context.Context, inst marketdomain.Instrument) (marketdomain.FundingQuote, error) {
	if f.fundingErr != nil {
		return marketdomain.FundingQuote{}, f.fundingErr
	}
	rate, ok := f.rates[inst.String()]
	if !ok {
		return marketdomain.FundingQuote{}, errors.New("symbol not listed")
	}
	return marketdomain.FundingQuote{
		Venue:         f.venue,
		Instrument:    inst,
		Rate:          decimal.RequireFromString(rate),
		IntervalHours: decimal.NewFromInt(8),
	}, nil
}

func (f *fakeGateway) FetchBookTop(ctx context.Context, inst marketdomain.Instrument, side marketdomain.Side) (marketdomain.BookQuote, error) {
	if f.bookErr != nil {
		return marketdomain.BookQuote{}, f.bookErr
	}
	prices := f.asks
	if side == marketdomain.SideSell {
		prices = f.bids
	}
	price, ok := prices[inst.String()]
	if !ok {
		return marketdomain.BookQuote{}, errors.New("no book")
	}
	return marketdomain.BookQuote{
		Venue:      f.venue,
		Instrument: inst,
		Side:       side,
		Price:      decimal.RequireFromString(price),
		Depth:      decimal.NewFromInt(1_000_000),
	}, nil
}

func (f *fakeGateway) FetchPremium(ctx context.Context, inst marketdomain.Instrument) (marketdomain.PremiumQuote, error) {
	if f.premiumErr != nil {
		return marketdomain.PremiumQuote{}, f.premiumErr
	}
	premium := f.premium
	if premium == "" {
		premium = "0.0001"
	}
	index := decimal.NewFromInt(100)
	return marketdomain.PremiumQuote{
		Venue:      f.venue,
		Instrument: inst,
		MarkPrice:  index.Mul(decimal.NewFromInt(1).Add(decimal.RequireFromString(premium))),
		IndexPrice: index,
	}, nil
}

type fixedUniverse []marketdomain.Instrument

func (u fixedUniverse) Select(ctx context.Context) []marketdomain.Instrument {
	return []marketdomain.Instrument(u)
}

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func zeroFees() *domain.FeeSchedule {
	return domain.NewFeeSchedule(nil, domain.VenueFees{
		Maker: decimal.Zero,
		Taker: decimal.Zero,
	})
}

func newTestScanner(gateways []marketapp.VenueGateway, universe UniverseSource, fees *domain.FeeSchedule) *Scanner {
	return NewScanner(gateways, universe, fees,
		domain.NewHistoryTracker(50), nil, DefaultScannerConfig(), testLogger())
}

var btc = marketdomain.Instrument{Base: "BTC", Quote: "USDT"}

// Two venues with rates 0.0001 and 0.0006 at 8h intervals, flat books at
// 100.00 and zero fees: 54.75% APR and immediate profitability.
func TestScanZeroCostScenario(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue: "binance",
			rates: map[string]string{"BTC/USDT": "0.0001"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
	}

	scanner := newTestScanner(gateways, fixedUniverse{btc}, zeroFees())
	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}

	opp := opps[0]
	if opp.LongVenue != "binance" || opp.ShortVenue != "bybit" {
		t.Errorf("venue pair = (%s, %s), want (binance, bybit)", opp.LongVenue, opp.ShortVenue)
	}
	if want := decimal.RequireFromString("54.75"); !opp.APR.Equal(want) {
		t.Errorf("APR = %s, want %s", opp.APR, want)
	}
	if !opp.TotalCostPct.IsZero() {
		t.Errorf("total cost = %s%%, want 0", opp.TotalCostPct)
	}
	if !opp.BreakevenDays.IsZero() {
		t.Errorf("breakeven days = %s, want 0", opp.BreakevenDays)
	}
}

// Same rates, 100.10 ask vs 100.00 bid and 0.14% default mixed fees:
// total cost 0.24% and breakeven 1.6 days.
func TestScanBreakevenScenario(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue: "binance",
			rates: map[string]string{"BTC/USDT": "0.0001"},
			asks:  map[string]string{"BTC/USDT": "100.10"},
			bids:  map[string]string{"BTC/USDT": "100.10"},
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
	}

	scanner := newTestScanner(gateways, fixedUniverse{btc}, domain.DefaultFeeSchedule())
	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}

	opp := opps[0]
	if want := decimal.RequireFromString("0.24"); !opp.TotalCostPct.Equal(want) {
		t.Errorf("total cost = %s%%, want %s%%", opp.TotalCostPct, want)
	}
	if want := decimal.RequireFromString("1.6"); !opp.BreakevenDays.Equal(want) {
		t.Errorf("breakeven days = %s, want %s", opp.BreakevenDays, want)
	}
}

func TestScanSingleVenueYieldsNothing(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue: "binance",
			rates: map[string]string{"BTC/USDT": "0.0001"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
		&fakeGateway{venue: "bybit", fundingErr: errors.New("down")},
	}

	scanner := newTestScanner(gateways, fixedUniverse{btc}, zeroFees())
	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("got %d opportunities with one usable venue, want 0", len(opps))
	}
}

func TestScanDegradesOnPartialVenueFailure(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue: "binance",
			rates: map[string]string{"BTC/USDT": "0.0001"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
		&fakeGateway{venue: "okx", fundingErr: errors.New("timeout")},
	}

	scanner := newTestScanner(gateways, fixedUniverse{btc}, zeroFees())
	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1 from the two healthy venues", len(opps))
	}
	if opps[0].LongVenue == "okx" || opps[0].ShortVenue == "okx" {
		t.Errorf("failed venue okx appeared in pair (%s, %s)", opps[0].LongVenue, opps[0].ShortVenue)
	}
}

func TestScanBookFailureDropsInstrument(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue:   "binance",
			rates:   map[string]string{"BTC/USDT": "0.0001"},
			bookErr: errors.New("book down"),
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
	}

	scanner := newTestScanner(gateways, fixedUniverse{btc}, zeroFees())
	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("got %d opportunities with a failed book leg, want 0", len(opps))
	}
}

func TestScanOrderingAndPairProperties(t *testing.T) {
	instruments := []marketdomain.Instrument{
		{Base: "BTC", Quote: "USDT"},
		{Base: "ETH", Quote: "USDT"},
		{Base: "SOL", Quote: "USDT"},
	}

	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue: "binance",
			rates: map[string]string{"BTC/USDT": "0.0001", "ETH/USDT": "0.0004", "SOL/USDT": "-0.0002"},
			asks:  map[string]string{"BTC/USDT": "100.00", "ETH/USDT": "100.00", "SOL/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00", "ETH/USDT": "100.00", "SOL/USDT": "100.00"},
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006", "ETH/USDT": "0.0005", "SOL/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00", "ETH/USDT": "100.00", "SOL/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00", "ETH/USDT": "100.00", "SOL/USDT": "100.00"},
		},
	}

	scanner := newTestScanner(gateways, fixedUniverse(instruments), zeroFees())
	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 3 {
		t.Fatalf("got %d opportunities, want 3", len(opps))
	}

	for _, opp := range opps {
		if opp.LongVenue == opp.ShortVenue {
			t.Errorf("%s: long and short venue both %s", opp.Instrument, opp.LongVenue)
		}
		if opp.LongRate.GreaterThan(opp.ShortRate) {
			t.Errorf("%s: long rate %s > short rate %s", opp.Instrument, opp.LongRate, opp.ShortRate)
		}
		if opp.BreakevenDays.IsNegative() {
			t.Errorf("%s: negative breakeven days %s", opp.Instrument, opp.BreakevenDays)
		}
	}

	// SOL has the widest differential (0.0008), then BTC (0.0005), then ETH.
	for i := 1; i < len(opps); i++ {
		if opps[i].APR.GreaterThan(opps[i-1].APR) {
			t.Errorf("results not sorted descending by APR: %s before %s",
				opps[i-1].APR, opps[i].APR)
		}
	}
	if opps[0].Instrument.Base != "SOL" {
		t.Errorf("top opportunity = %s, want SOL/USDT", opps[0].Instrument)
	}
}

func TestScanProgressIsMonotonic(t *testing.T) {
	instruments := []marketdomain.Instrument{
		{Base: "BTC", Quote: "USDT"},
		{Base: "ETH", Quote: "USDT"},
		{Base: "SOL", Quote: "USDT"},
		{Base: "XRP", Quote: "USDT"},
	}

	rates1 := map[string]string{}
	rates2 := map[string]string{}
	books := map[string]string{}
	for _, inst := range instruments {
		rates1[inst.String()] = "0.0001"
		rates2[inst.String()] = "0.0006"
		books[inst.String()] = "100.00"
	}

	gateways := []marketapp.VenueGateway{
		&fakeGateway{venue: "binance", rates: rates1, asks: books, bids: books},
		&fakeGateway{venue: "bybit", rates: rates2, asks: books, bids: books},
	}

	var mu sync.Mutex
	var seen []Progress

	scanner := newTestScanner(gateways, fixedUniverse(instruments), zeroFees())
	_, err := scanner.Scan(context.Background(), func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if len(seen) != len(instruments) {
		t.Fatalf("progress callback invoked %d times, want %d", len(seen), len(instruments))
	}
	for i, p := range seen {
		if p.Total != len(instruments) {
			t.Errorf("progress[%d].Total = %d, want %d", i, p.Total, len(instruments))
		}
		if i > 0 && p.Completed <= seen[i-1].Completed {
			t.Errorf("progress not monotonic: %d after %d", p.Completed, seen[i-1].Completed)
		}
	}
	if seen[len(seen)-1].Completed != len(instruments) {
		t.Errorf("final completed = %d, want %d", seen[len(seen)-1].Completed, len(instruments))
	}
}

func TestScanEmptyUniverse(t *testing.T) {
	scanner := newTestScanner(nil, fixedUniverse{}, zeroFees())
	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("got %d opportunities from empty universe, want 0", len(opps))
	}
}

func TestScanMinAPRFilter(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue: "binance",
			rates: map[string]string{"BTC/USDT": "0.0001"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
	}

	cfg := DefaultScannerConfig()
	cfg.MinAPR = decimal.NewFromInt(100) // above the 54.75% this setup yields

	scanner := NewScanner(gateways, fixedUniverse{btc}, zeroFees(),
		domain.NewHistoryTracker(50), nil, cfg, testLogger())

	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("got %d opportunities below the APR floor, want 0", len(opps))
	}
}

// stalledGateway never answers; every call parks until its context expires.
type stalledGateway struct {
	venue string
}

func (g *stalledGateway) Venue() string { return g.venue }

func (g *stalledGateway) FetchFundingQuote(ctx context.Context, inst marketdomain.Instrument) (marketdomain.FundingQuote, error) {
	<-ctx.Done()
	return marketdomain.FundingQuote{}, ctx.Err()
}

func (g *stalledGateway) FetchBookTop(ctx context.Context, inst marketdomain.Instrument, side marketdomain.Side) (marketdomain.BookQuote, error) {
	<-ctx.Done()
	return marketdomain.BookQuote{}, ctx.Err()
}

func (g *stalledGateway) FetchPremium(ctx context.Context, inst marketdomain.Instrument) (marketdomain.PremiumQuote, error) {
	<-ctx.Done()
	return marketdomain.PremiumQuote{}, ctx.Err()
}

// A venue that hangs on every call is cut off by the per-call timeout: the
// scan finishes promptly with the healthy pair instead of waiting on the
// stalled join.
func TestScanCallTimeoutBoundsStalledVenue(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue: "binance",
			rates: map[string]string{"BTC/USDT": "0.0001"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
		&stalledGateway{venue: "okx"},
	}

	cfg := DefaultScannerConfig()
	cfg.CallTimeout = 50 * time.Millisecond

	scanner := NewScanner(gateways, fixedUniverse{btc}, zeroFees(),
		domain.NewHistoryTracker(50), nil, cfg, testLogger())

	start := time.Now()
	opps, err := scanner.Scan(context.Background(), nil)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("scan took %s with a 50ms call timeout", elapsed)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1 from the two responsive venues", len(opps))
	}
	if opps[0].LongVenue == "okx" || opps[0].ShortVenue == "okx" {
		t.Errorf("stalled venue okx appeared in pair (%s, %s)", opps[0].LongVenue, opps[0].ShortVenue)
	}
}
