// Package okx implements the OKX perpetual swap gateway.
package okx

import (
	"context"
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
	VenueName = "okx"

	BaseAPIURL = "https://www.okx.com"

	fundingRateEndpoint = "/api/v5/public/funding-rate"
	booksEndpoint       = "/api/v5/market/books"
	markPriceEndpoint   = "/api/v5/public/mark-price"
	indexTickerEndpoint = "/api/v5/market/index-tickers"

	tracerName = "market.okx"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerMinute = 600
)

// Config holds OKX gateway configuration.
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

// Gateway provides OKX market data over REST.
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

// NewGateway creates an OKX gateway.
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

// InstID translates "BTC/USDT" into OKX's swap identifier "BTC-USDT-SWAP".
func InstID(inst domain.Instrument) string {
	return inst.Base + "-" + inst.Quote + "-SWAP"
}

// envelope is the common v5 response wrapper. Data is decoded per endpoint.
type envelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

type fundingRateEntry struct {
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`
	FundingTime     string `json:"fundingTime"`
	NextFundingTime string `json:"nextFundingTime"`
}

// FetchFundingQuote returns the current funding rate. The interval is
// derived from the gap between the current and next funding timestamps.
func (g *Gateway) FetchFundingQuote(ctx context.Context, inst domain.Instrument) (domain.FundingQuote, error) {
	return g.fundingBreaker.Execute(func() (domain.FundingQuote, error) {
		ctx, span := g.tracer.Start(ctx, "okx.fetch_funding",
			trace.WithAttributes(attribute.String("instrument", inst.String())))
		defer span.End()

		if err := g.limiter.Wait(ctx); err != nil {
			return domain.FundingQuote{}, apperror.New(apperror.CodeVenueRateLimited,
				apperror.WithVenue(VenueName), apperror.WithCause(err))
		}

		var env envelope[fundingRateEntry]
		resp, err := g.client.NewRequestWithOptions(
			httpclient.WithLabels(
				httpclient.NewLabel("endpoint", "funding-rate"),
				httpclient.NewLabel("instId", InstID(inst)),
			),
		).
			SetQueryParam("instId", InstID(inst)).
			SetResult(&env).
			Get(ctx, fundingRateEndpoint)

		if err != nil {
			span.RecordError(err)
			return domain.FundingQuote{}, apperror.New(apperror.CodeFundingFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}
		if resp.IsError() || env.Code != "0" {
			return domain.FundingQuote{}, apperror.New(apperror.CodeFundingFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(fmt.Sprintf("okx API error %s: %s", env.Code, env.Msg)))
		}
		if len(env.Data) == 0 {
			return domain.FundingQuote{}, apperror.New(apperror.CodeSymbolNotSupported,
				apperror.WithVenue(VenueName), apperror.WithContext(inst.String()))
		}

		entry := env.Data[0]
		rate, err := decimal.NewFromString(entry.FundingRate)
		if err != nil {
			return domain.FundingQuote{}, apperror.New(apperror.CodeFundingFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(fmt.Sprintf("bad funding rate %q", entry.FundingRate)))
		}

		quote := domain.FundingQuote{
			Venue:      VenueName,
			Instrument: inst,
			Rate:       rate,
			ObservedAt: time.Now(),
		}

		current, errCur := strconv.ParseInt(entry.FundingTime, 10, 64)
		next, errNext := strconv.ParseInt(entry.NextFundingTime, 10, 64)
		if errNext == nil && next > 0 {
			quote.NextFundingTime = time.UnixMilli(next)
		}
		if errCur == nil && errNext == nil && next > current {
			hours := time.UnixMilli(next).Sub(time.UnixMilli(current)).Hours()
			quote.IntervalHours = decimal.NewFromFloat(hours)
		}

		span.SetAttributes(attribute.String("funding_rate", rate.String()))

		return quote, nil
	})
}

type bookEntry struct {
	// OKX book levels are [price, size, liquidatedOrders, orderCount].
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
}

// FetchBookTop returns the best price on one side plus the cumulative
// notional of the top five levels.
func (g *Gateway) FetchBookTop(ctx context.Context, inst domain.Instrument, side domain.Side) (domain.BookQuote, error) {
	return g.bookBreaker.Execute(func() (domain.BookQuote, error) {
		ctx, span := g.tracer.Start(ctx, "okx.fetch_book_top",
			trace.WithAttributes(
				attribute.String("instrument", inst.String()),
				attribute.String("side", string(side)),
			))
		defer span.End()

		if err := g.limiter.Wait(ctx); err != nil {
			return domain.BookQuote{}, apperror.New(apperror.CodeVenueRateLimited,
				apperror.WithVenue(VenueName), apperror.WithCause(err))
		}

		var env envelope[bookEntry]
		resp, err := g.client.NewRequestWithOptions(
			httpclient.WithLabels(
				httpclient.NewLabel("endpoint", "books"),
				httpclient.NewLabel("instId", InstID(inst)),
			),
		).
			SetQueryParam("instId", InstID(inst)).
			SetQueryParam("sz", "5").
			SetResult(&env).
			Get(ctx, booksEndpoint)

		if err != nil {
			span.RecordError(err)
			return domain.BookQuote{}, apperror.New(apperror.CodeOrderbookFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}
		if resp.IsError() || env.Code != "0" || len(env.Data) == 0 {
			return domain.BookQuote{}, apperror.New(apperror.CodeOrderbookFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(fmt.Sprintf("okx API error %s: %s", env.Code, env.Msg)))
		}

		levels := env.Data[0].Asks
		if side == domain.SideSell {
			levels = env.Data[0].Bids
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

type markPriceEntry struct {
	InstID string `json:"instId"`
	MarkPx string `json:"markPx"`
}

type indexTickerEntry struct {
	InstID string `json:"instId"`
	IdxPx  string `json:"idxPx"`
}

// FetchPremium returns mark and index prices. OKX exposes them on separate
// endpoints; the index instrument drops the -SWAP suffix.
func (g *Gateway) FetchPremium(ctx context.Context, inst domain.Instrument) (domain.PremiumQuote, error) {
	return g.premiumBreaker.Execute(func() (domain.PremiumQuote, error) {
		ctx, span := g.tracer.Start(ctx, "okx.fetch_premium",
			trace.WithAttributes(attribute.String("instrument", inst.String())))
		defer span.End()

		mark, err := g.fetchMarkPrice(ctx, inst)
		if err != nil {
			span.RecordError(err)
			return domain.PremiumQuote{}, err
		}

		index, err := g.fetchIndexPrice(ctx, inst)
		if err != nil {
			span.RecordError(err)
			return domain.PremiumQuote{}, err
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

func (g *Gateway) fetchMarkPrice(ctx context.Context, inst domain.Instrument) (decimal.Decimal, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return decimal.Zero, apperror.New(apperror.CodeVenueRateLimited,
			apperror.WithVenue(VenueName), apperror.WithCause(err))
	}

	var env envelope[markPriceEntry]
	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "mark-price"),
			httpclient.NewLabel("instId", InstID(inst)),
		),
	).
		SetQueryParam("instType", "SWAP").
		SetQueryParam("instId", InstID(inst)).
		SetResult(&env).
		Get(ctx, markPriceEndpoint)

	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodePremiumFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(inst.String()),
			apperror.WithCause(err))
	}
	if resp.IsError() || env.Code != "0" || len(env.Data) == 0 {
		return decimal.Zero, apperror.New(apperror.CodePremiumFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("okx API error %s: %s", env.Code, env.Msg)))
	}

	mark, err := decimal.NewFromString(env.Data[0].MarkPx)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodePremiumFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("bad mark price %q", env.Data[0].MarkPx)))
	}
	return mark, nil
}

func (g *Gateway) fetchIndexPrice(ctx context.Context, inst domain.Instrument) (decimal.Decimal, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return decimal.Zero, apperror.New(apperror.CodeVenueRateLimited,
			apperror.WithVenue(VenueName), apperror.WithCause(err))
	}

	indexID := inst.Base + "-" + inst.Quote

	var env envelope[indexTickerEntry]
	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "index-tickers"),
			httpclient.NewLabel("instId", indexID),
		),
	).
		SetQueryParam("instId", indexID).
		SetResult(&env).
		Get(ctx, indexTickerEndpoint)

	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodePremiumFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(inst.String()),
			apperror.WithCause(err))
	}
	if resp.IsError() || env.Code != "0" || len(env.Data) == 0 {
		return decimal.Zero, apperror.New(apperror.CodePremiumFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("okx API error %s: %s", env.Code, env.Msg)))
	}

	index, err := decimal.NewFromString(env.Data[0].IdxPx)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodePremiumFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("bad index price %q", env.Data[0].IdxPx)))
	}
	return index, nil
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
