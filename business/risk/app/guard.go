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

	"github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/internal/logger"
)

const (
	// DefaultPollInterval is the account monitoring cadence.
	DefaultPollInterval = 5 * time.Second

	// defaultFetchTimeout bounds every individual account read.
	defaultFetchTimeout = 15 * time.Second

	tracerName = "risk"
)

// deleverageFraction is the advised position cut when an account crosses
// the danger threshold. Both hedge legs shrink by the same fraction.
var deleverageFraction = decimal.RequireFromString("0.2")

// Config holds the guard's tuning knobs.
type Config struct {
	PollInterval   time.Duration
	Thresholds     domain.Thresholds
	TransferBuffer decimal.Decimal
}

// DefaultGuardConfig polls every 5s with the 60%/80% thresholds and a
// 1000 USDT transfer buffer.
func DefaultGuardConfig() Config {
	return Config{
		PollInterval:   DefaultPollInterval,
		Thresholds:     domain.DefaultThresholds(),
		TransferBuffer: decimal.NewFromInt(1000),
	}
}

// Guard polls venue accounts and derives margin alerts and fund-balancing
// advice. It is read-only: advice is surfaced, never executed.
type Guard struct {
	gateways []AccountGateway
	cfg      Config
	logger   logger.LoggerInterface
	tracer   trace.Tracer

	alertCounter metric.Int64Counter

	mu       sync.RWMutex
	accounts map[string]domain.AccountState
}

// NewGuard creates a guard over the given account gateways.
func NewGuard(gateways []AccountGateway, cfg Config, log logger.LoggerInterface) *Guard {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Thresholds.Warning.IsZero() || cfg.Thresholds.Danger.IsZero() {
		cfg.Thresholds = domain.DefaultThresholds()
	}
	if cfg.TransferBuffer.LessThanOrEqual(decimal.Zero) {
		cfg.TransferBuffer = decimal.NewFromInt(1000)
	}

	meter := otel.GetMeterProvider().Meter(tracerName)
	alertCounter, _ := meter.Int64Counter("risk_margin_alerts_total",
		metric.WithDescription("Total number of margin alerts raised"))

	return &Guard{
		gateways:     gateways,
		cfg:          cfg,
		logger:       log,
		tracer:       otel.Tracer(tracerName),
		alertCounter: alertCounter,
		accounts:     make(map[string]domain.AccountState),
	}
}

// Refresh fetches every venue's account concurrently. A venue that fails
// keeps its previous snapshot; the error is logged and contained.
func (g *Guard) Refresh(ctx context.Context) {
	ctx, span := g.tracer.Start(ctx, "risk.refresh")
	defer span.End()

	grp, ctx := errgroup.WithContext(ctx)
	for _, gw := range g.gateways {
		gw := gw
		grp.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
			defer cancel()

			state, err := gw.FetchAccountState(callCtx)
			if err != nil {
				g.logger.Warn(ctx, "account refresh failed",
					"venue", gw.Venue(), "error", err)
				return nil
			}

			g.mu.Lock()
			g.accounts[gw.Venue()] = state
			g.mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	span.SetAttributes(attribute.Int("accounts", len(g.Snapshot())))
}

// Snapshot returns the current account states sorted by venue.
func (g *Guard) Snapshot() []domain.AccountState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.AccountState, 0, len(g.accounts))
	for _, acc := range g.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// CheckMarginHealth raises an alert for every account at or past the
// danger threshold, advising a 20% bilateral position cut.
func (g *Guard) CheckMarginHealth() []domain.MarginAlert {
	var alerts []domain.MarginAlert
	for _, acc := range g.Snapshot() {
		level := acc.RiskLevel(g.cfg.Thresholds)
		if level != domain.RiskDanger {
			continue
		}
		alerts = append(alerts, domain.MarginAlert{
			Venue:              acc.Venue,
			MarginLevel:        acc.MarginLevel(),
			Level:              level,
			DeleverageFraction: deleverageFraction,
		})
	}
	return alerts
}

// SuggestTransfers advises moving half the excess off any venue whose
// equity sits more than the buffer above the fleet average.
func (g *Guard) SuggestTransfers() []domain.TransferAdvice {
	accounts := g.Snapshot()
	if len(accounts) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, acc := range accounts {
		total = total.Add(acc.Equity())
	}
	avg := total.Div(decimal.NewFromInt(int64(len(accounts))))

	var advice []domain.TransferAdvice
	for _, acc := range accounts {
		excess := acc.Equity().Sub(avg)
		if excess.LessThanOrEqual(g.cfg.TransferBuffer) {
			continue
		}
		advice = append(advice, domain.TransferAdvice{
			FromVenue: acc.Venue,
			Excess:    excess,
			Amount:    excess.Div(decimal.NewFromInt(2)),
		})
	}
	return advice
}

// Run polls accounts on the configured interval until the context ends.
// Each cycle's snapshot is handed to onUpdate when set.
func (g *Guard) Run(ctx context.Context, onUpdate func([]domain.AccountState)) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	g.logger.Info(ctx, "risk guard started",
		"poll_interval", g.cfg.PollInterval.String(), "venues", len(g.gateways))

	for {
		g.cycle(ctx, onUpdate)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (g *Guard) cycle(ctx context.Context, onUpdate func([]domain.AccountState)) {
	g.Refresh(ctx)

	for _, alert := range g.CheckMarginHealth() {
		g.alertCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("venue", alert.Venue)))
		g.logger.Warn(ctx, "margin level past danger threshold",
			"venue", alert.Venue,
			"margin_level", alert.MarginLevel.StringFixed(4),
			"advised_deleverage", alert.DeleverageFraction.String())
	}

	for _, adv := range g.SuggestTransfers() {
		g.logger.Info(ctx, "equity drift above fleet average",
			"venue", adv.FromVenue,
			"excess", adv.Excess.StringFixed(0),
			"suggested_transfer", adv.Amount.StringFixed(0))
	}

	if onUpdate != nil {
		onUpdate(g.Snapshot())
	}
}
