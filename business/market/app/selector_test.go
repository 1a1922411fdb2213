package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dlemos/perparb/business/market/domain"
	"github.com/dlemos/perparb/internal/logger"
)

type stubProvider struct {
	tickers []domain.Ticker
	err     error
	calls   int
}

func (s *stubProvider) FetchTopVolumeInstruments(ctx context.Context, limit int) ([]domain.Ticker, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tickers, nil
}

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func ticker(base string, volume string, perpetual bool) domain.Ticker {
	return domain.Ticker{
		Instrument:  domain.Instrument{Base: base, Quote: "USDT"},
		QuoteVolume: decimal.RequireFromString(volume),
		Perpetual:   perpetual,
	}
}

func TestSelectorFiltersSortsAndTruncates(t *testing.T) {
	provider := &stubProvider{
		tickers: []domain.Ticker{
			ticker("DOGE", "100", true),
			ticker("BTC", "9000", true),
			{Instrument: domain.Instrument{Base: "BTC", Quote: "USDC"}, QuoteVolume: decimal.RequireFromString("5000"), Perpetual: true},
			ticker("SOL", "300", true),
			ticker("XRP", "0", true),      // zero volume
			ticker("DATED", "800", false), // quarterly future lookalike
			ticker("ETH", "4000", true),
		},
	}

	selector := NewUniverseSelector(provider, 3, testLogger())
	universe := selector.Select(context.Background())

	want := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}
	if len(universe) != len(want) {
		t.Fatalf("universe size = %d, want %d (%v)", len(universe), len(want), universe)
	}
	for i, inst := range universe {
		if inst.String() != want[i] {
			t.Errorf("universe[%d] = %s, want %s", i, inst, want[i])
		}
	}
}

func TestSelectorCachesWithinTTL(t *testing.T) {
	provider := &stubProvider{tickers: []domain.Ticker{ticker("BTC", "100", true)}}
	selector := NewUniverseSelector(provider, 10, testLogger())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	selector.now = func() time.Time { return now }

	selector.Select(context.Background())
	now = base.Add(299 * time.Second)
	selector.Select(context.Background())

	if provider.calls != 1 {
		t.Fatalf("provider calls within TTL = %d, want 1", provider.calls)
	}

	now = base.Add(301 * time.Second)
	selector.Select(context.Background())

	if provider.calls != 2 {
		t.Fatalf("provider calls after TTL expiry = %d, want 2", provider.calls)
	}
}

func TestSelectorFallsBackOnDiscoveryFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("boom")}
	selector := NewUniverseSelector(provider, 10, testLogger())

	universe := selector.Select(context.Background())

	want := []string{"BTC/USDT", "ETH/USDT"}
	if len(universe) != len(want) {
		t.Fatalf("fallback universe size = %d, want %d", len(universe), len(want))
	}
	for i, inst := range universe {
		if inst.String() != want[i] {
			t.Errorf("fallback[%d] = %s, want %s", i, inst, want[i])
		}
	}
}

func TestSelectorPrefersStaleCacheOverFallback(t *testing.T) {
	provider := &stubProvider{tickers: []domain.Ticker{ticker("SOL", "100", true)}}
	selector := NewUniverseSelector(provider, 10, testLogger())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	selector.now = func() time.Time { return now }

	first := selector.Select(context.Background())
	if len(first) != 1 || first[0].String() != "SOL/USDT" {
		t.Fatalf("unexpected first universe: %v", first)
	}

	// Discovery starts failing after the cache expires.
	provider.err = errors.New("rate limited")
	now = base.Add(10 * time.Minute)

	second := selector.Select(context.Background())
	if len(second) != 1 || second[0].String() != "SOL/USDT" {
		t.Fatalf("expected stale cache to survive discovery failure, got %v", second)
	}
}

// gatedProvider blocks inside discovery until released, signalling entry so
// the test can interleave other selector calls with an in-flight fetch.
type gatedProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) FetchTopVolumeInstruments(ctx context.Context, limit int) ([]domain.Ticker, error) {
	close(p.entered)
	<-p.release
	return []domain.Ticker{ticker("BTC", "100", true)}, nil
}

// The cache mutex must not be held across the discovery round-trip:
// in-memory operations like Invalidate stay responsive while a fetch is in
// flight.
func TestSelectorReleasesLockDuringDiscovery(t *testing.T) {
	provider := &gatedProvider{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	selector := NewUniverseSelector(provider, 10, testLogger())

	done := make(chan struct{})
	go func() {
		selector.Select(context.Background())
		close(done)
	}()

	<-provider.entered

	invalidated := make(chan struct{})
	go func() {
		selector.Invalidate()
		close(invalidated)
	}()

	select {
	case <-invalidated:
	case <-time.After(time.Second):
		t.Fatal("Invalidate blocked while discovery was in flight")
	}

	close(provider.release)
	<-done
}
