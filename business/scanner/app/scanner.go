package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	marketapp "github.com/dlemos/perparb/business/market/app"
	marketdomain "github.com/dlemos/perparb/business/market/domain"
	"github.com/dlemos/perparb/business/scanner/domain"
	"github.com/dlemos/perparb/internal/apperror"
	"github.com/dlemos/perparb/internal/logger"
)

const (
	// DefaultSymbolWorkers bounds the per-instrument fan-out.
	DefaultSymbolWorkers = 10

	// DefaultVenueWorkers bounds the per-venue funding fetch fan-out
	// inside one instrument.
	DefaultVenueWorkers = 3

	// defaultCallTimeout bounds every individual gateway call. A slow
	// venue degrades only the instruments waiting on it.
	defaultCallTimeout = 30 * time.Second

	tracerName = "scanner"
)

// UniverseSource yields the instrument set for one scan cycle.
type UniverseSource interface {
	Select(ctx context.Context) []marketdomain.Instrument
}

// Config holds the orchestrator's tuning knobs.
type Config struct {
	SymbolWorkers      int
	VenueWorkers       int
	CallTimeout        time.Duration
	FeeMode            domain.FeeMode
	IntervalMode       domain.IntervalMode
	VolatilityAdjusted bool
	MinAPR             decimal.Decimal
}

// DefaultScannerConfig returns the defaults matching the documented widths.
func DefaultScannerConfig() Config {
	return Config{
		SymbolWorkers: DefaultSymbolWorkers,
		VenueWorkers:  DefaultVenueWorkers,
		CallTimeout:   defaultCallTimeout,
		FeeMode:       domain.FeeModeMixed,
		IntervalMode:  domain.IntervalModeMin,
	}
}

// Scanner coordinates one scan cycle: universe selection, bounded fan-out
// over instruments and venues, cost modeling and ranking.
type Scanner struct {
	gateways  []marketapp.VenueGateway
	universe  UniverseSource
	fees      *domain.FeeSchedule
	history   *domain.HistoryTracker
	predictor *Predictor // nil disables enrichment
	cfg       Config
	logger    logger.LoggerInterface
	tracer    trace.Tracer

	scanCounter metric.Int64Counter
	oppCounter  metric.Int64Counter
}

// NewScanner creates the orchestrator. predictor may be nil.
func NewScanner(
	gateways []marketapp.VenueGateway,
	universe UniverseSource,
	fees *domain.FeeSchedule,
	history *domain.HistoryTracker,
	predictor *Predictor,
	cfg Config,
	log logger.LoggerInterface,
) *Scanner {
	if cfg.SymbolWorkers <= 0 {
		cfg.SymbolWorkers = DefaultSymbolWorkers
	}
	if cfg.VenueWorkers <= 0 {
		cfg.VenueWorkers = DefaultVenueWorkers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.FeeMode == "" {
		cfg.FeeMode = domain.FeeModeMixed
	}
	if cfg.IntervalMode == "" {
		cfg.IntervalMode = domain.IntervalModeMin
	}

	meter := otel.GetMeterProvider().Meter(tracerName)
	scanCounter, _ := meter.Int64Counter("scanner_cycles_total",
		metric.WithDescription("Total number of scan cycles"))
	oppCounter, _ := meter.Int64Counter("scanner_opportunities_total",
		metric.WithDescription("Total number of opportunities emitted"))

	return &Scanner{
		gateways:    gateways,
		universe:    universe,
		fees:        fees,
		history:     history,
		predictor:   predictor,
		cfg:         cfg,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		scanCounter: scanCounter,
		oppCounter:  oppCounter,
	}
}

// Scan runs one cycle and returns the ranked opportunity list. Instruments
// that fail anywhere in their pipeline are dropped, never fatal; an empty
// universe yields an empty result and a nil error.
func (s *Scanner) Scan(ctx context.Context, progress ProgressFunc) ([]domain.Opportunity, error) {
	ctx, span := s.tracer.Start(ctx, "scanner.scan")
	defer span.End()

	started := time.Now()

	instruments := s.universe.Select(ctx)
	span.SetAttributes(attribute.Int("universe_size", len(instruments)))

	if len(instruments) == 0 {
		s.logger.Warn(ctx, "scan universe is empty")
		return []domain.Opportunity{}, nil
	}

	var (
		mu            sync.Mutex
		opportunities []domain.Opportunity
		progressMu    sync.Mutex
		completed     int
	)

	total := len(instruments)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SymbolWorkers)

	for _, inst := range instruments {
		inst := inst
		g.Go(func() error {
			opp, err := s.scanInstrument(gctx, inst)

			// Increment and notify under one lock so observers see a
			// strictly increasing completed count.
			progressMu.Lock()
			completed++
			if progress != nil {
				progress(Progress{Completed: completed, Total: total})
			}
			progressMu.Unlock()

			if err != nil {
				// Contained at the instrument boundary.
				s.logger.Debug(gctx, "instrument dropped from scan",
					"instrument", inst.String(), "error", err)
				return nil
			}

			if s.cfg.MinAPR.IsPositive() && opp.APR.LessThan(s.cfg.MinAPR) {
				return nil
			}

			mu.Lock()
			opportunities = append(opportunities, opp)
			mu.Unlock()
			return nil
		})
	}

	// Worker funcs always return nil; Wait only observes ctx cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].RankScore(s.cfg.VolatilityAdjusted).
			GreaterThan(opportunities[j].RankScore(s.cfg.VolatilityAdjusted))
	})

	s.scanCounter.Add(ctx, 1)
	s.oppCounter.Add(ctx, int64(len(opportunities)))

	span.SetAttributes(attribute.Int("opportunities", len(opportunities)))
	s.logger.Info(ctx, "scan cycle complete",
		"instruments", total,
		"opportunities", len(opportunities),
		"elapsed", time.Since(started).String())

	return opportunities, nil
}

// scanInstrument runs the per-instrument pipeline: funding fan-out, venue
// pair selection, book fetch, cost model, history and enrichment.
func (s *Scanner) scanInstrument(ctx context.Context, inst marketdomain.Instrument) (domain.Opportunity, error) {
	ctx, span := s.tracer.Start(ctx, "scanner.scan_instrument",
		trace.WithAttributes(attribute.String("instrument", inst.String())))
	defer span.End()

	quotes := s.fetchFundingQuotes(ctx, inst)
	if len(quotes) < 2 {
		return domain.Opportunity{}, apperror.New(apperror.CodeInsufficientData,
			apperror.WithContext(inst.String()))
	}

	long, short := pickVenuePair(quotes)

	longBook, shortBook, err := s.fetchBooks(ctx, inst, long.Venue, short.Venue)
	if err != nil {
		return domain.Opportunity{}, err
	}

	feeCost := s.fees.RoundTripCost(long.Venue, short.Venue, s.cfg.FeeMode)

	diff, _ := short.Rate.Sub(long.Rate).Float64()
	s.history.Record(inst, diff)
	volatility := s.history.Volatility(inst)

	opp := domain.NewOpportunity(domain.OpportunityInputs{
		Long:         long,
		Short:        short,
		LongBook:     longBook,
		ShortBook:    shortBook,
		FeeCost:      feeCost,
		IntervalMode: s.cfg.IntervalMode,
		Volatility:   volatility,
	})

	if s.predictor != nil {
		analysis, err := s.predictor.Analyze(ctx, long, short)
		if err != nil {
			// Enrichment is additive; drop the block, keep the record.
			s.logger.Debug(ctx, "prediction enrichment omitted",
				"instrument", inst.String(), "error", err)
		} else {
			opp.Prediction = analysis
		}
	}

	span.SetAttributes(
		attribute.String("long_venue", opp.LongVenue),
		attribute.String("short_venue", opp.ShortVenue),
		attribute.String("apr", opp.APR.String()),
	)

	return opp, nil
}

// fetchFundingQuotes fans out over all gateways with a bounded width and
// gathers whichever succeed. Unanimous success is not required.
func (s *Scanner) fetchFundingQuotes(ctx context.Context, inst marketdomain.Instrument) []marketdomain.FundingQuote {
	var (
		mu     sync.Mutex
		quotes []marketdomain.FundingQuote
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.VenueWorkers)

	for _, gw := range s.gateways {
		gw := gw
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
			defer cancel()

			quote, err := gw.FetchFundingQuote(callCtx, inst)
			if err != nil {
				s.logger.Debug(ctx, "funding quote unavailable",
					"venue", gw.Venue(), "instrument", inst.String(), "error", err)
				return nil
			}

			mu.Lock()
			quotes = append(quotes, quote)
			mu.Unlock()
			return nil
		})
	}

	// Join barrier: downstream always sees the full gathered set.
	_ = g.Wait()

	return quotes
}

// fetchBooks fetches the long venue's ask side and the short venue's bid
// side concurrently. Either failing drops the instrument.
func (s *Scanner) fetchBooks(ctx context.Context, inst marketdomain.Instrument, longVenue, shortVenue string) (marketdomain.BookQuote, marketdomain.BookQuote, error) {
	var longBook, shortBook marketdomain.BookQuote

	g := new(errgroup.Group)

	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()

		book, err := s.gatewayFor(longVenue).FetchBookTop(callCtx, inst, marketdomain.SideBuy)
		if err != nil {
			return err
		}
		longBook = book
		return nil
	})

	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()

		book, err := s.gatewayFor(shortVenue).FetchBookTop(callCtx, inst, marketdomain.SideSell)
		if err != nil {
			return err
		}
		shortBook = book
		return nil
	})

	if err := g.Wait(); err != nil {
		return marketdomain.BookQuote{}, marketdomain.BookQuote{},
			apperror.Wrap(err, apperror.CodeOrderbookFetchFailed, inst.String())
	}

	return longBook, shortBook, nil
}

func (s *Scanner) gatewayFor(venue string) marketapp.VenueGateway {
	for _, gw := range s.gateways {
		if gw.Venue() == venue {
			return gw
		}
	}
	// Unreachable: venues come from this scanner's own gateway set.
	panic("scanner: unknown venue " + venue)
}

// pickVenuePair returns the minimum-rate quote (long leg) and the
// maximum-rate quote (short leg).
func pickVenuePair(quotes []marketdomain.FundingQuote) (long, short marketdomain.FundingQuote) {
	long, short = quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.Rate.LessThan(long.Rate) {
			long = q
		}
		if q.Rate.GreaterThan(short.Rate) {
			short = q
		}
	}

	// All rates equal: keep the legs on distinct venues.
	if long.Venue == short.Venue {
		for _, q := range quotes {
			if q.Venue != long.Venue {
				short = q
				break
			}
		}
	}
	return long, short
}
