// Package di contains dependency injection tokens for the risk context.
package di

import (
	"github.com/dlemos/perparb/business/risk/app"
	"github.com/dlemos/perparb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Guard = di.NewToken[*app.Guard]("risk.Guard")
)

// Private dependency tokens - internal to the risk module
var (
	AccountGateways = di.NewToken[[]app.AccountGateway]("risk:accountGateways")
)

// Helper functions for type-safe access
func GetGuard(c di.ServiceRegistry) *app.Guard {
	return di.GetToken(c, Guard)
}

func GetAccountGateways(c di.ServiceRegistry) []app.AccountGateway {
	return di.GetToken(c, AccountGateways)
}
