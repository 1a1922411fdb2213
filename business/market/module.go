// Package market implements the venue market data bounded context.
package market

import (
	"context"

	"github.com/dlemos/perparb/business/market/app"
	marketDI "github.com/dlemos/perparb/business/market/di"
	"github.com/dlemos/perparb/business/market/infra/binance"
	"github.com/dlemos/perparb/business/market/infra/bybit"
	"github.com/dlemos/perparb/business/market/infra/mock"
	"github.com/dlemos/perparb/business/market/infra/okx"
	"github.com/dlemos/perparb/internal/config"
	"github.com/dlemos/perparb/internal/di"
	"github.com/dlemos/perparb/internal/logger"
	"github.com/dlemos/perparb/internal/monolith"
)

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Venue gateways (public - the scanner fans out over them)
	di.RegisterToken(c, marketDI.VenueGateways, func(sr di.ServiceRegistry) []app.VenueGateway {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Scanner.Mock {
			return []app.VenueGateway{
				mock.NewGateway(binance.VenueName),
				mock.NewGateway(bybit.VenueName),
				mock.NewGateway(okx.VenueName),
			}
		}

		var gateways []app.VenueGateway

		if cfg.Venues.Binance.Enabled {
			gw, err := binance.NewGateway(binance.Config{
				BaseURL:           cfg.Venues.Binance.BaseURL,
				Timeout:           cfg.Venues.Binance.RequestTimeout,
				RequestsPerMinute: cfg.Venues.Binance.RequestsPerMinute,
			}, log)
			if err != nil {
				panic("failed to create binance gateway: " + err.Error())
			}
			gateways = append(gateways, gw)
		}

		if cfg.Venues.Bybit.Enabled {
			gw, err := bybit.NewGateway(bybit.Config{
				BaseURL:           cfg.Venues.Bybit.BaseURL,
				Timeout:           cfg.Venues.Bybit.RequestTimeout,
				RequestsPerMinute: cfg.Venues.Bybit.RequestsPerMinute,
			}, log)
			if err != nil {
				panic("failed to create bybit gateway: " + err.Error())
			}
			gateways = append(gateways, gw)
		}

		if cfg.Venues.OKX.Enabled {
			gw, err := okx.NewGateway(okx.Config{
				BaseURL:           cfg.Venues.OKX.BaseURL,
				Timeout:           cfg.Venues.OKX.RequestTimeout,
				RequestsPerMinute: cfg.Venues.OKX.RequestsPerMinute,
			}, log)
			if err != nil {
				panic("failed to create okx gateway: " + err.Error())
			}
			gateways = append(gateways, gw)
		}

		return gateways
	})

	// Universe provider (private - Binance is the reference venue)
	di.RegisterToken(c, marketDI.UniverseProvider, func(sr di.ServiceRegistry) app.UniverseProvider {
		cfg := sr.Get("config").(*config.Config)

		gateways := marketDI.GetVenueGateways(sr)
		for _, gw := range gateways {
			if provider, ok := gw.(app.UniverseProvider); ok && (gw.Venue() == binance.VenueName || cfg.Scanner.Mock) {
				return provider
			}
		}

		// No reference venue available; any gateway exposing discovery works.
		for _, gw := range gateways {
			if provider, ok := gw.(app.UniverseProvider); ok {
				return provider
			}
		}

		panic("no universe provider available: enable binance or mock mode")
	})

	// Universe selector (public)
	di.RegisterToken(c, marketDI.UniverseSelector, func(sr di.ServiceRegistry) *app.UniverseSelector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewUniverseSelector(marketDI.GetUniverseProvider(sr), cfg.Scanner.UniverseLimit, log)
	})

	return nil
}

// Startup initializes the market module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	gateways := marketDI.GetVenueGateways(mono.Services())
	venues := make([]string, len(gateways))
	for i, gw := range gateways {
		venues[i] = gw.Venue()
	}

	log.Info(ctx, "market module started", "venues", venues, "mock", mono.Config().Scanner.Mock)
	return nil
}
