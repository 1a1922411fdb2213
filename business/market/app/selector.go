package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dlemos/perparb/business/market/domain"
	"github.com/dlemos/perparb/internal/apm"
	"github.com/dlemos/perparb/internal/logger"
)

const (
	universeCacheTTL   = 300 * time.Second
	selectorTracerName = "market.universe"
)

// fallbackUniverse is used when discovery fails and no cache exists. The
// majors trade on every supported venue.
var fallbackUniverse = []domain.Instrument{
	{Base: "BTC", Quote: "USDT"},
	{Base: "ETH", Quote: "USDT"},
}

// UniverseSelector picks the instruments each scan cycle covers: the
// reference venue's top perpetuals by 24h quote volume. Results are cached
// so repeated scans within the TTL don't hit the discovery endpoint.
type UniverseSelector struct {
	provider  UniverseProvider
	limit     int
	logger    logger.LoggerInterface
	tracer    apm.Tracer
	cacheHits metric.Int64Counter
	now       func() time.Time

	// mu guards the cache fields only; discovery runs unlocked, so
	// concurrent callers may fetch twice and the later write wins.
	mu       sync.Mutex
	cached   []domain.Instrument
	cachedAt time.Time
}

// NewUniverseSelector creates a selector over the given reference provider.
func NewUniverseSelector(provider UniverseProvider, limit int, log logger.LoggerInterface) *UniverseSelector {
	meter := otel.GetMeterProvider().Meter(selectorTracerName)
	cacheHits, _ := meter.Int64Counter("universe_cache_hits_total",
		metric.WithDescription("Scan universe requests served from the TTL cache"))

	return &UniverseSelector{
		provider:  provider,
		limit:     limit,
		logger:    log,
		tracer:    apm.NewTracer(selectorTracerName),
		cacheHits: cacheHits,
		now:       time.Now,
	}
}

// Select returns the current scan universe. Stale caches are refreshed;
// discovery failures fall back to the last good result, then to the
// hardcoded majors.
func (s *UniverseSelector) Select(ctx context.Context) []domain.Instrument {
	if cached, ok := s.freshCache(ctx); ok {
		return cached
	}

	ctx, span := s.tracer.StartSpanFromContext(ctx, "universe.refresh",
		trace.WithAttributes(attribute.Int("limit", s.limit)))
	defer span.End()

	tickers, err := s.provider.FetchTopVolumeInstruments(ctx, s.limit)
	if err != nil {
		span.NoticeError(err)
		s.logger.Warn(ctx, "universe discovery failed", "error", err)
		return s.lastGood()
	}

	universe := s.filterAndRank(tickers)
	if len(universe) == 0 {
		span.AddEvent("no tradable perpetuals")
		s.logger.Warn(ctx, "universe discovery returned no tradable perpetuals, using fallback")
		return s.lastGood()
	}

	s.store(universe)

	span.SetAttributes(attribute.Int("instruments", len(universe)))
	s.logger.Info(ctx, "scan universe refreshed",
		"instruments", len(universe),
		"top", universe[0].String())

	return universe
}

// freshCache returns the cached universe when it is within the TTL.
func (s *UniverseSelector) freshCache(ctx context.Context) ([]domain.Instrument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < universeCacheTTL {
		s.cacheHits.Add(ctx, 1)
		return s.cached, true
	}
	return nil, false
}

// lastGood returns the stale cache if one exists, otherwise the fallback.
func (s *UniverseSelector) lastGood() []domain.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached
	}
	return fallbackUniverse
}

func (s *UniverseSelector) store(universe []domain.Instrument) {
	s.mu.Lock()
	s.cached = universe
	s.cachedAt = s.now()
	s.mu.Unlock()
}

// filterAndRank drops non-USDT, non-perpetual and zero-volume tickers, then
// sorts descending by quote volume and truncates to the configured limit.
func (s *UniverseSelector) filterAndRank(tickers []domain.Ticker) []domain.Instrument {
	eligible := make([]domain.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if t.Instrument.Quote != "USDT" {
			continue
		}
		if !t.Perpetual {
			continue
		}
		if !t.QuoteVolume.IsPositive() {
			continue
		}
		eligible = append(eligible, t)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].QuoteVolume.GreaterThan(eligible[j].QuoteVolume)
	})

	if len(eligible) > s.limit {
		eligible = eligible[:s.limit]
	}

	universe := make([]domain.Instrument, len(eligible))
	for i, t := range eligible {
		universe[i] = t.Instrument
	}
	return universe
}

// Invalidate drops the cached universe so the next Select re-discovers.
func (s *UniverseSelector) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.cachedAt = time.Time{}
}
