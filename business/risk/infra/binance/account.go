// Package binance reads the USDT-margined futures account over the signed
// REST API. It never places orders or transfers funds.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dlemos/perparb/business/risk/app"
	"github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/internal/apperror"
	"github.com/dlemos/perparb/internal/httpclient"
	"github.com/dlemos/perparb/internal/logger"
	"github.com/dlemos/perparb/internal/ratelimit"
)

const (
	VenueName = "binance"

	BaseAPIURL = "https://fapi.binance.com"

	accountEndpoint = "/fapi/v2/account"

	tracerName = "risk.binance"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerMinute = 1200

	// recvWindow tells the venue to reject requests whose timestamp has
	// drifted more than this many milliseconds.
	recvWindow = "5000"
)

// Config holds the signed account reader configuration.
type Config struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	Timeout           time.Duration
	RequestsPerMinute int
}

// AccountGateway reads the futures account snapshot.
type AccountGateway struct {
	client    httpclient.Client
	limiter   *ratelimit.Limiter
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	apiSecret string
	now       func() time.Time
}

var _ app.AccountGateway = (*AccountGateway)(nil)

// NewAccountGateway creates a signed Binance account reader. Both API key
// and secret are required.
func NewAccountGateway(cfg Config, log logger.LoggerInterface) (*AccountGateway, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, apperror.New(apperror.CodeMissingCredentials,
			apperror.WithVenue(VenueName),
			apperror.WithContext("account reads require an API key and secret"))
	}

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
		httpclient.WithProviderName(VenueName+".account"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTracer(tracer),
		httpclient.WithHeaders(map[string]string{
			"Accept":       "application/json",
			"X-MBX-APIKEY": cfg.APIKey,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &AccountGateway{
		client:    client,
		limiter:   ratelimit.New(rpm),
		logger:    log,
		tracer:    tracer,
		apiSecret: cfg.APISecret,
		now:       time.Now,
	}, nil
}

// Venue returns the venue identifier.
func (g *AccountGateway) Venue() string { return VenueName }

// accountResponse is the subset of /fapi/v2/account the guard needs.
type accountResponse struct {
	TotalWalletBalance    string `json:"totalWalletBalance"`
	TotalUnrealizedProfit string `json:"totalUnrealizedProfit"`
	TotalInitialMargin    string `json:"totalInitialMargin"`
	UpdateTime            int64  `json:"updateTime"`
}

// FetchAccountState returns the account totals in USDT.
func (g *AccountGateway) FetchAccountState(ctx context.Context) (domain.AccountState, error) {
	ctx, span := g.tracer.Start(ctx, "binance.fetch_account")
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		return domain.AccountState{}, apperror.New(apperror.CodeVenueRateLimited,
			apperror.WithVenue(VenueName), apperror.WithCause(err))
	}

	var result accountResponse
	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "account")),
	).
		SetResult(&result).
		Get(ctx, accountEndpoint+"?"+g.signedQuery())

	if err != nil {
		span.RecordError(err)
		return domain.AccountState{}, apperror.New(apperror.CodeAccountFetchFailed,
			apperror.WithVenue(VenueName), apperror.WithCause(err))
	}
	if resp.IsError() {
		return domain.AccountState{}, apperror.New(apperror.CodeAccountFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	balance, errBal := decimal.NewFromString(result.TotalWalletBalance)
	pnl, errPnl := decimal.NewFromString(result.TotalUnrealizedProfit)
	margin, errMargin := decimal.NewFromString(result.TotalInitialMargin)
	if errBal != nil || errPnl != nil || errMargin != nil {
		return domain.AccountState{}, apperror.New(apperror.CodeAccountFetchFailed,
			apperror.WithVenue(VenueName),
			apperror.WithContext("unparseable account totals"))
	}

	return domain.AccountState{
		Venue:         VenueName,
		Balance:       balance,
		UnrealizedPnL: pnl,
		UsedMargin:    margin,
		UpdatedAt:     result.UpdateTime / 1000,
	}, nil
}

// signedQuery builds the timestamped query string with the HMAC-SHA256
// signature appended last, as the venue requires.
func (g *AccountGateway) signedQuery() string {
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(g.now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)

	payload := params.Encode()

	mac := hmac.New(sha256.New, []byte(g.apiSecret))
	mac.Write([]byte(payload))

	return payload + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}
