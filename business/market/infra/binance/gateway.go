// Package binance implements the Binance USDT-margined futures gateway.
// It doubles as the universe reference venue.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
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
	VenueName = "binance"

	// Binance futures REST API
	BaseAPIURL = "https://fapi.binance.com"

	premiumIndexEndpoint = "/fapi/v1/premiumIndex"
	depthEndpoint        = "/fapi/v1/depth"
	ticker24hEndpoint    = "/fapi/v1/ticker/24hr"

	tracerName = "market.binance"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerMinute = 1200
)

// Config holds Binance gateway configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// DefaultConfig returns sensible defaults for the public futures API.
func DefaultConfig() Config {
	return Config{
		BaseURL:           BaseAPIURL,
		Timeout:           defaultTimeout,
		RequestsPerMinute: defaultRequestsPerMinute,
	}
}

// Gateway provides Binance market data over REST.
type Gateway struct {
	client  httpclient.Client
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	tracer  trace.Tracer

	fundingBreaker *circuitbreaker.CircuitBreaker[domain.FundingQuote]
	bookBreaker    *circuitbreaker.CircuitBreaker[domain.BookQuote]
	premiumBreaker *circuitbreaker.CircuitBreaker[domain.PremiumQuote]
}

var (
	_ app.VenueGateway     = (*Gateway)(nil)
	_ app.UniverseProvider = (*Gateway)(nil)
)

// NewGateway creates a Binance gateway.
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

// premiumIndexResponse is the /fapi/v1/premiumIndex payload.
type premiumIndexResponse struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
	Time            int64  `json:"time"`
}

// FetchFundingQuote returns the current funding rate for the instrument.
// Binance does not report the funding interval here; the quote carries a
// zero interval and the caller substitutes the default.
func (g *Gateway) FetchFundingQuote(ctx context.Context, inst domain.Instrument) (domain.FundingQuote, error) {
	return g.fundingBreaker.Execute(func() (domain.FundingQuote, error) {
		ctx, span := g.tracer.Start(ctx, "binance.fetch_funding",
			trace.WithAttributes(attribute.String("instrument", inst.String())))
		defer span.End()

		if err := g.limiter.Wait(ctx); err != nil {
			return domain.FundingQuote{}, apperror.New(apperror.CodeVenueRateLimited,
				apperror.WithVenue(VenueName), apperror.WithCause(err))
		}

		raw, err := g.fetchPremiumIndex(ctx, inst)
		if err != nil {
			span.RecordError(err)
			return domain.FundingQuote{}, apperror.New(apperror.CodeFundingFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}

		rate, err := decimal.NewFromString(raw.LastFundingRate)
		if err != nil {
			return domain.FundingQuote{}, apperror.New(apperror.CodeFundingFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(fmt.Sprintf("bad funding rate %q", raw.LastFundingRate)))
		}

		span.SetAttributes(attribute.String("funding_rate", rate.String()))

		return domain.FundingQuote{
			Venue:           VenueName,
			Instrument:      inst,
			Rate:            rate,
			NextFundingTime: time.UnixMilli(raw.NextFundingTime),
			ObservedAt:      time.Now(),
		}, nil
	})
}

// FetchPremium returns the mark/index premium inputs. Binance does not
// expose impact prices on this endpoint, so PremiumIndex falls back to the
// mark/index deviation.
func (g *Gateway) FetchPremium(ctx context.Context, inst domain.Instrument) (domain.PremiumQuote, error) {
	return g.premiumBreaker.Execute(func() (domain.PremiumQuote, error) {
		ctx, span := g.tracer.Start(ctx, "binance.fetch_premium",
			trace.WithAttributes(attribute.String("instrument", inst.String())))
		defer span.End()

		if err := g.limiter.Wait(ctx); err != nil {
			return domain.PremiumQuote{}, apperror.New(apperror.CodeVenueRateLimited,
				apperror.WithVenue(VenueName), apperror.WithCause(err))
		}

		raw, err := g.fetchPremiumIndex(ctx, inst)
		if err != nil {
			span.RecordError(err)
			return domain.PremiumQuote{}, apperror.New(apperror.CodePremiumFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}

		mark, errMark := decimal.NewFromString(raw.MarkPrice)
		index, errIndex := decimal.NewFromString(raw.IndexPrice)
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

func (g *Gateway) fetchPremiumIndex(ctx context.Context, inst domain.Instrument) (*premiumIndexResponse, error) {
	var result premiumIndexResponse
	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "premiumIndex"),
			httpclient.NewLabel("symbol", inst.Symbol()),
		),
		httpclient.WithResponseErrorHandler(binanceErrorHandler),
	).
		SetQueryParam("symbol", inst.Symbol()).
		SetResult(&result).
		Get(ctx, premiumIndexEndpoint)

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.String())
	}
	return &result, nil
}

// depthResponse is the /fapi/v1/depth payload.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// FetchBookTop returns the best price on one side plus the cumulative
// notional of the top five levels.
func (g *Gateway) FetchBookTop(ctx context.Context, inst domain.Instrument, side domain.Side) (domain.BookQuote, error) {
	return g.bookBreaker.Execute(func() (domain.BookQuote, error) {
		ctx, span := g.tracer.Start(ctx, "binance.fetch_book_top",
			trace.WithAttributes(
				attribute.String("instrument", inst.String()),
				attribute.String("side", string(side)),
			))
		defer span.End()

		if err := g.limiter.Wait(ctx); err != nil {
			return domain.BookQuote{}, apperror.New(apperror.CodeVenueRateLimited,
				apperror.WithVenue(VenueName), apperror.WithCause(err))
		}

		var result depthResponse
		resp, err := g.client.NewRequestWithOptions(
			httpclient.WithLabels(
				httpclient.NewLabel("endpoint", "depth"),
				httpclient.NewLabel("symbol", inst.Symbol()),
			),
			httpclient.WithResponseErrorHandler(binanceErrorHandler),
		).
			SetQueryParam("symbol", inst.Symbol()).
			SetQueryParam("limit", "5").
			SetResult(&result).
			Get(ctx, depthEndpoint)

		if err != nil {
			span.RecordError(err)
			return domain.BookQuote{}, apperror.New(apperror.CodeOrderbookFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(inst.String()),
				apperror.WithCause(err))
		}
		if resp.IsError() {
			return domain.BookQuote{}, apperror.New(apperror.CodeOrderbookFetchFailed,
				apperror.WithVenue(VenueName),
				apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
		}

		levels := result.Asks
		if side == domain.SideSell {
			levels = result.Bids
		}

		quote, err := bookTopFromLevels(VenueName, inst, side, levels)
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

// bookTopFromLevels converts [[price, qty], ...] levels into a BookQuote.
// Shared by the venues whose books use the same string-pair encoding.
func bookTopFromLevels(venue string, inst domain.Instrument, side domain.Side, levels [][]string) (domain.BookQuote, error) {
	if len(levels) == 0 {
		return domain.BookQuote{}, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithVenue(venue),
			apperror.WithContext(fmt.Sprintf("%s: empty %s side", inst, side)))
	}

	best, err := decimal.NewFromString(levels[0][0])
	if err != nil || !best.IsPositive() {
		return domain.BookQuote{}, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithVenue(venue),
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
		Venue:      venue,
		Instrument: inst,
		Side:       side,
		Price:      best,
		Depth:      depth,
		ObservedAt: time.Now(),
	}, nil
}

// ticker24hEntry is one element of the /fapi/v1/ticker/24hr array.
type ticker24hEntry struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

// FetchTopVolumeInstruments lists USDT perpetuals sorted by quote volume.
// Dated futures carry an underscore suffix (BTCUSDT_250926) and are marked
// non-perpetual for the selector to drop.
func (g *Gateway) FetchTopVolumeInstruments(ctx context.Context, limit int) ([]domain.Ticker, error) {
	ctx, span := g.tracer.Start(ctx, "binance.fetch_universe",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeVenueRateLimited,
			apperror.WithVenue(VenueName), apperror.WithCause(err))
	}

	var result []ticker24hEntry
	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "ticker24h")),
		httpclient.WithResponseErrorHandler(binanceErrorHandler),
	).
		SetResult(&result).
		Get(ctx, ticker24hEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeUniverseDiscoveryFailed,
			apperror.WithVenue(VenueName), apperror.WithCause(err))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeUniverseDiscoveryFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("HTTP %d", resp.StatusCode)))
	}

	tickers := make([]domain.Ticker, 0, len(result))
	for _, entry := range result {
		perpetual := !strings.Contains(entry.Symbol, "_")
		symbol := entry.Symbol
		if idx := strings.Index(symbol, "_"); idx > 0 {
			symbol = symbol[:idx]
		}
		if !strings.HasSuffix(symbol, "USDT") {
			continue
		}

		volume, err := decimal.NewFromString(entry.QuoteVolume)
		if err != nil {
			continue
		}

		tickers = append(tickers, domain.Ticker{
			Instrument: domain.Instrument{
				Base:  strings.TrimSuffix(symbol, "USDT"),
				Quote: "USDT",
			},
			QuoteVolume: volume,
			Perpetual:   perpetual,
		})
	}

	span.SetAttributes(attribute.Int("tickers", len(tickers)))

	g.logger.Debug(ctx, "fetched universe tickers", "venue", VenueName, "count", len(tickers))

	return tickers, nil
}

// apiError represents an error response from the Binance API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

// binanceErrorHandler parses Binance API error responses.
func binanceErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
