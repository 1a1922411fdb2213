package app

import (
	"context"

	"github.com/dlemos/perparb/business/risk/domain"
)

// AccountGateway reads one venue's futures account. Implementations never
// place orders or move funds.
type AccountGateway interface {
	Venue() string
	FetchAccountState(ctx context.Context) (domain.AccountState, error)
}
