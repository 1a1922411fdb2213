// Package bybit implements the Bybit linear perpetuals gateway.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dlemos/perparb/business/market/app"
	"github.com/dlemos/perparb/business/market/domain"
	"github.com/dlemos/perparb/internal/apperror"
	"github.com/dlemos/perparb/internal/circuitbreaker"
	"github.com/dlemos/perparb/internal/httpclient"
	"github.com/dlemos/perparb/internal/logger"
	"github.com/dlemos/perparb/internal/ratelimit"
)

const (
	VenueName = "bybit"

	BaseAPIURL = "https://api.bybit.com"

	tickersEndpoint     = "/v5/market/tickers"
	orderbookEndpoint   = "/v5/market/orderbook"
	instrumentsEndpoint = "/v5/market/instruments-info"

	// All linear perpetuals live under one category.
	categoryLinear = "linear"

	tracerName = "market.bybit"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerMinute = 600
)

// Config holds Bybit gateway configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// DefaultConfig returns sensible defaults for the public v5 API.
func DefaultConfig() Config {
	return Config{
		BaseURL:           BaseAPIURL,
		Timeout:           defaultTimeout,
		RequestsPerMinute: defaultRequestsPerMinute,
	}
}

// Gateway provides Bybit market data over REST.
type Gateway struct {
	client  httpclient.Client
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	tracer  trace.Tracer

	fundingBreaker *circuitbreaker.CircuitBreaker[domain.FundingQuote]
	bookBreaker    *circuitbreaker.CircuitBreaker[domain.BookQuote]
	premiumBreaker *circuitbreaker.CircuitBreaker[domain.PremiumQuote]
}

var _ app.VenueGateway = (*Gateway)(nil)

// NewGateway creates a Bybit gateway.
func NewGateway(cfg Config, log logger.LoggerInterface) (*Gateway, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseAPIURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(VenueName),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTracer(tracer),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig()

	return &Gateway{
		client:         client,
		limiter:        ratelimit.New(rpm),
		logger:         log,
		tracer:         tracer,
		fundingBreaker: circuitbreaker.New[domain.FundingQuote](VenueName+".funding", cbCfg, log),
		bookBreaker:    circuitbreaker.New[domain.BookQuote](VenueName+".book", cbCfg, log),
		premiumBreaker: circuitbreaker.New[domain.PremiumQuote](VenueName+".premium", cbCfg, log),
	}, nil
}

// Venue returns the venue identifier.
func (g *Gateway) Venue() string { return VenueName }

// envelope is the common v5 response wrapper.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type tickerResult struct {
	List []tickerEntry `json:"list"`
}

type tickerEntry struct {
	Symbol          string `json:"symbol"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
}

type instrumentsResult struct {
	List []instrumentEntry `json:"list"`
}

type instrumentEntry struct {
	Symbol          string `json:"symbol"`
	FundingInterval int    `json:"fundingInterval"` // minutes
}

// FetchFundingQuote returns the current funding rate and interval. The
// interval comes from instruments-info (Bybit reports it in minutes; some
// alts fund hourly rather than every 8h).
func (g *Gateway) FetchFundingQuote(ctx context.Context, inst domain.Instrument) (domain.FundingQuote, error) {
	return g.fundingBreaker.Execute(func() (domain.FundingQuote, error) {
		ctx, span := g.tracer.Start(ctx, "bybit.fetch_funding",
			trace.WithAttributes(attribute.String("instrument", inst.String())))
		defer span.End()

		ticker, err := g.fetchTicker(ctx, inst)
		if err != nil {
			span.RecordError(err)
			return domain.FundingQuote{}, apperror.New(apperror.CodeFundingFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}

		rate, err := decimal.NewFromString(ticker.FundingRate)
		if err != nil {
			return domain.FundingQuote{}, apperror.New(apperror.CodeFundingFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(fmt.Sprintf("bad funding rate %q", ticker.FundingRate)))
		}

		quote := domain.FundingQuote{
			Venue:      VenueName,
			Instrument: inst,
			Rate:       rate,
			ObservedAt: time.Now(),
		}

		if ms, err := strconv.ParseInt(ticker.NextFundingTime, 10, 64); err == nil && ms > 0 {
			quote.NextFundingTime = time.UnixMilli(ms)
		}

		// Interval lookup is best effort; a zero interval defaults upstream.
		if minutes, err := g.fetchFundingIntervalMinutes(ctx, inst); err == nil && minutes > 0 {
			quote.IntervalHours = decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
		} else if err != nil {
			g.logger.Debug(ctx, "funding interval lookup failed", "venue", VenueName,
				"instrument", inst.String(), "error", err)
		}

		span.SetAttributes(attribute.String("funding_rate", rate.String()))

		return quote, nil
	})
}

// FetchPremium returns the mark/index premium inputs from the ticker.
func (g *Gateway) FetchPremium(ctx context.Context, inst domain.Instrument) (domain.PremiumQuote, error) {
	return g.premiumBreaker.Execute(func() (domain.PremiumQuote, error) {
		ctx, span := g.tracer.Start(ctx, "bybit.fetch_premium",
			trace.WithAttributes(attribute.String("instrument", inst.String())))
		defer span.End()

		ticker, err := g.fetchTicker(ctx, inst)
		if err != nil {
			span.RecordError(err)
			return domain.PremiumQuote{}, apperror.New(apperror.CodePremiumFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}

		mark, errMark := decimal.NewFromString(ticker.MarkPrice)
		index, errIndex := decimal.NewFromString(ticker.IndexPrice)
		if errMark != nil || errIndex != nil {
			return domain.PremiumQuote{}, apperror.New(apperror.CodePremiumFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext("unparseable mark/index price"))
		}

		return domain.PremiumQuote{
			Venue:      VenueName,
			Instrument: inst,
			MarkPrice:  mark,
			IndexPrice: index,
			ObservedAt: time.Now(),
		}, nil
	})
}

func (g *Gateway) fetchTicker(ctx context.Context, inst domain.Instrument) (*tickerEntry, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeVenueRateLimited,
			apperror.WithVenue(VenueName), apperror.WithCause(err))
	}

	var env envelope
	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "tickers"),
			httpclient.NewLabel("symbol", inst.Symbol()),
		),
	).
		SetQueryParam("category", categoryLinear).
		SetQueryParam("symbol", inst.Symbol()).
		SetResult(&env).
		Get(ctx, tickersEndpoint)

	if err != nil {
		return nil, err
	}
	if resp.IsError() || env.RetCode != 0 {
		return nil, fmt.Errorf("bybit API error %d: %s", env.RetCode, env.RetMsg)
	}

	var result tickerResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode ticker result: %w", err)
	}
	if len(result.List) == 0 {
		return nil, apperror.New(apperror.CodeSymbolNotSupported,
			apperror.WithVenue(VenueName), apperror.WithContext(inst.String()))
	}
	return &result.List[0], nil
}

func (g *Gateway) fetchFundingIntervalMinutes(ctx context.Context, inst domain.Instrument) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var env envelope
	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "instruments"),
			httpclient.NewLabel("symbol", inst.Symbol()),
		),
	).
		SetQueryParam("category", categoryLinear).
		SetQueryParam("symbol", inst.Symbol()).
		SetResult(&env).
		Get(ctx, instrumentsEndpoint)

	if err != nil {
		return 0, err
	}
	if resp.IsError() || env.RetCode != 0 {
		return 0, fmt.Errorf("bybit API error %d: %s", env.RetCode, env.RetMsg)
	}

	var result instrumentsResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return 0, err
	}
	if len(result.List) == 0 {
		return 0, nil
	}
	return result.List[0].FundingInterval, nil
}

type orderbookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

// FetchBookTop returns the best price on one side plus the cumulative
// notional of the top five levels.
func (g *Gateway) FetchBookTop(ctx context.Context, inst domain.Instrument, side domain.Side) (domain.BookQuote, error) {
	return g.bookBreaker.Execute(func() (domain.BookQuote, error) {
		ctx, span := g.tracer.Start(ctx, "bybit.fetch_book_top",
			trace.WithAttributes(
				attribute.String("instrument", inst.String()),
				attribute.String("side", string(side)),
			))
		defer span.End()

		if err := g.limiter.Wait(ctx); err != nil {
			return domain.BookQuote{}, apperror.New(apperror.CodeVenueRateLimited,
				apperror.WithVenue(VenueName), apperror.WithCause(err))
		}

		var env envelope
		resp, err := g.client.NewRequestWithOptions(
			httpclient.WithLabels(
				httpclient.NewLabel("endpoint", "orderbook"),
				httpclient.NewLabel("symbol", inst.Symbol()),
			),
		).
			SetQueryParam("category", categoryLinear).
			SetQueryParam("symbol", inst.Symbol()).
			SetQueryParam("limit", "5").
			SetResult(&env).
			Get(ctx, orderbookEndpoint)

		if err != nil {
			span.RecordError(err)
			return domain.BookQuote{}, apperror.New(apperror.CodeOrderbookFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}
		if resp.IsError() || env.RetCode != 0 {
			return domain.BookQuote{}, apperror.New(apperror.CodeOrderbookFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(fmt.Sprintf("bybit API error %d: %s", env.RetCode, env.RetMsg)))
		}

		var book orderbookResult
		if err := json.Unmarshal(env.Result, &book); err != nil {
			return domain.BookQuote{}, apperror.New(apperror.CodeOrderbookFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext("failed to decode orderbook"),
				apperror.WithCause(err))
		}

		levels := book.Asks
		if side == domain.SideSell {
			levels = book.Bids
		}

		quote, err := bookTopFromLevels(inst, side, levels)
		if err != nil {
			span.RecordError(err)
			return domain.BookQuote{}, err
		}

		span.SetAttributes(
			attribute.String("price", quote.Price.String()),
			attribute.String("depth", quote.Depth.String()),
		)

		return quote, nil
	})
}

func bookTopFromLevels(inst domain.Instrument, side domain.Side, levels [][]string) (domain.BookQuote, error) {
	if len(levels) == 0 {
		return domain.BookQuote{}, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("%s: empty %s side", inst, side)))
	}

	best, err := decimal.NewFromString(levels[0][0])
	if err != nil || !best.IsPositive() {
		return domain.BookQuote{}, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("%s: bad best price %q", inst, levels[0][0])))
	}

	depth := decimal.Zero
	for i, level := range levels {
		if i >= 5 || len(level) < 2 {
			break
		}
		price, errP := decimal.NewFromString(level[0])
		qty, errQ := decimal.NewFromString(level[1])
		if errP != nil || errQ != nil {
			continue
		}
		depth = depth.Add(price.Mul(qty))
	}

	return domain.BookQuote{
		Venue:      VenueName,
		Instrument: inst,
		Side:       side,
		Price:      best,
		Depth:      depth,
		ObservedAt: time.Now(),
	}, nil
}
