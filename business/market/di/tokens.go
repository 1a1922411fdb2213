// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/dlemos/perparb/business/market/app"
	"github.com/dlemos/perparb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	VenueGateways    = di.NewToken[[]app.VenueGateway]("market.VenueGateways")
	UniverseSelector = di.NewToken[*app.UniverseSelector]("market.UniverseSelector")
)

// Private dependency tokens - internal to the market module
var (
	UniverseProvider = di.NewToken[app.UniverseProvider]("market:universeProvider")
)

// Helper functions for type-safe access
func GetVenueGateways(c di.ServiceRegistry) []app.VenueGateway {
	return di.GetToken(c, VenueGateways)
}

func GetUniverseSelector(c di.ServiceRegistry) *app.UniverseSelector {
	return di.GetToken(c, UniverseSelector)
}

func GetUniverseProvider(c di.ServiceRegistry) app.UniverseProvider {
	return di.GetToken(c, UniverseProvider)
}
