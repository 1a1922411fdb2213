// Package risk implements the account margin monitoring bounded context.
package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dlemos/perparb/business/risk/app"
	riskDI "github.com/dlemos/perparb/business/risk/di"
	"github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/business/risk/infra/binance"
	"github.com/dlemos/perparb/business/risk/infra/mock"
	"github.com/dlemos/perparb/internal/config"
	"github.com/dlemos/perparb/internal/di"
	"github.com/dlemos/perparb/internal/logger"
	"github.com/dlemos/perparb/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers all risk services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Account gateways (private). Venues without credentials are skipped:
	// the guard monitors what it can read.
	di.RegisterToken(c, riskDI.AccountGateways, func(sr di.ServiceRegistry) []app.AccountGateway {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Scanner.Mock {
			return []app.AccountGateway{
				mock.NewAccountGateway("binance"),
				mock.NewAccountGateway("bybit"),
				mock.NewAccountGateway("okx"),
			}
		}

		var gateways []app.AccountGateway

		if cfg.Venues.Binance.Enabled && cfg.Venues.Binance.HasCredentials() {
			gw, err := binance.NewAccountGateway(binance.Config{
				BaseURL:           cfg.Venues.Binance.BaseURL,
				APIKey:            cfg.Venues.Binance.APIKey,
				APISecret:         cfg.Venues.Binance.APISecret,
				Timeout:           cfg.Venues.Binance.RequestTimeout,
				RequestsPerMinute: cfg.Venues.Binance.RequestsPerMinute,
			}, log)
			if err != nil {
				panic("failed to create binance account gateway: " + err.Error())
			}
			gateways = append(gateways, gw)
		}

		return gateways
	})

	// Guard (public)
	di.RegisterToken(c, riskDI.Guard, func(sr di.ServiceRegistry) *app.Guard {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		guardCfg := app.DefaultGuardConfig()
		if cfg.Risk.PollInterval > 0 {
			guardCfg.PollInterval = cfg.Risk.PollInterval
		}
		if cfg.Risk.WarningThreshold > 0 && cfg.Risk.DangerThreshold > 0 {
			guardCfg.Thresholds = domain.Thresholds{
				Warning: decimal.NewFromFloat(cfg.Risk.WarningThreshold),
				Danger:  decimal.NewFromFloat(cfg.Risk.DangerThreshold),
			}
		}
		if cfg.Risk.TransferBuffer > 0 {
			guardCfg.TransferBuffer = decimal.NewFromFloat(cfg.Risk.TransferBuffer)
		}

		return app.NewGuard(riskDI.GetAccountGateways(sr), guardCfg, log)
	})

	return nil
}

// Startup initializes the risk module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if !cfg.Risk.Enabled {
		log.Info(ctx, "risk module disabled")
		return nil
	}

	gateways := riskDI.GetAccountGateways(mono.Services())
	log.Info(ctx, "risk module started", "accounts", len(gateways), "mock", cfg.Scanner.Mock)
	return nil
}
