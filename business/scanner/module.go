// Package scanner implements the opportunity scanning bounded context.
package scanner

import (
	"context"
	"os"

	marketDI "github.com/dlemos/perparb/business/market/di"
	"github.com/dlemos/perparb/business/scanner/app"
	scannerDI "github.com/dlemos/perparb/business/scanner/di"
	"github.com/dlemos/perparb/business/scanner/domain"
	"github.com/dlemos/perparb/business/scanner/infra/report"
	"github.com/dlemos/perparb/internal/config"
	"github.com/dlemos/perparb/internal/di"
	"github.com/dlemos/perparb/internal/logger"
	"github.com/dlemos/perparb/internal/monolith"
)

// Module implements the scanner bounded context.
type Module struct{}

// RegisterServices registers all scanner services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, scannerDI.FeeSchedule, func(sr di.ServiceRegistry) *domain.FeeSchedule {
		return domain.DefaultFeeSchedule()
	})

	di.RegisterToken(c, scannerDI.HistoryTracker, func(sr di.ServiceRegistry) *domain.HistoryTracker {
		cfg := sr.Get("config").(*config.Config)
		return domain.NewHistoryTracker(cfg.Scanner.HistoryWindow)
	})

	// Predictor (private, nil when prediction is disabled)
	di.RegisterToken(c, scannerDI.Predictor, func(sr di.ServiceRegistry) *app.Predictor {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Prediction.Enabled {
			return nil
		}
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewPredictor(marketDI.GetVenueGateways(sr), cfg.Prediction.Lookback, log)
	})

	// Scanner (public)
	di.RegisterToken(c, scannerDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		scanCfg := app.DefaultScannerConfig()
		scanCfg.SymbolWorkers = cfg.Scanner.MaxConcurrentSymbols
		scanCfg.VenueWorkers = cfg.Scanner.MaxConcurrentVenues
		scanCfg.FeeMode = domain.FeeMode(cfg.Scanner.FeeMode)
		scanCfg.IntervalMode = domain.IntervalMode(cfg.Scanner.IntervalMode)
		scanCfg.VolatilityAdjusted = cfg.Scanner.VolatilityAdjustedRank
		scanCfg.MinAPR = cfg.Scanner.MinAPRDecimal()

		return app.NewScanner(
			marketDI.GetVenueGateways(sr),
			marketDI.GetUniverseSelector(sr),
			scannerDI.GetFeeSchedule(sr),
			scannerDI.GetHistoryTracker(sr),
			scannerDI.GetPredictor(sr),
			scanCfg,
			log,
		)
	})

	// Reporter (public)
	di.RegisterToken(c, scannerDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Scanner.TUIMode {
			return report.NewTUIReporter(
				cfg.Scanner.ScanInterval,
				cfg.Scanner.TopN,
				cfg.Scanner.VolatilityAdjustedRank,
			)
		}
		return report.NewConsoleReporter(os.Stdout, cfg.Scanner.TopN)
	})

	return nil
}

// Startup initializes the scanner module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	log.Info(ctx, "scanner module started",
		"fee_mode", cfg.Scanner.FeeMode,
		"interval_mode", cfg.Scanner.IntervalMode,
		"universe_limit", cfg.Scanner.UniverseLimit,
		"prediction", cfg.Prediction.Enabled,
	)
	return nil
}
