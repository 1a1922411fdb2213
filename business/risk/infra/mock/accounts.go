// Package mock provides an offline account gateway with slowly drifting
// synthetic balances, so the risk guard can run without credentials.
package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dlemos/perparb/business/risk/app"
	"github.com/dlemos/perparb/business/risk/domain"
)

// Seed balances per venue. OKX starts deep underwater so the warning path
// is visible in mock runs.
var seedStates = map[string]struct {
	balance, pnl, margin int64
}{
	"binance": {10000, 500, 3000},
	"bybit":   {10000, -200, 3000},
	"okx":     {10000, -4000, 3000},
}

// maxDriftUSDT bounds the per-poll unrealized PnL move.
const maxDriftUSDT = 100.0

// AccountGateway simulates one venue's futures account.
type AccountGateway struct {
	venue string
	rng   *rand.Rand

	mu    sync.Mutex
	state domain.AccountState
}

var _ app.AccountGateway = (*AccountGateway)(nil)

// NewAccountGateway creates a mock account for the named venue. Unknown
// venues start from the binance seed.
func NewAccountGateway(venue string) *AccountGateway {
	seed, ok := seedStates[venue]
	if !ok {
		seed = seedStates["binance"]
	}

	return &AccountGateway{
		venue: venue,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		state: domain.AccountState{
			Venue:         venue,
			Balance:       decimal.NewFromInt(seed.balance),
			UnrealizedPnL: decimal.NewFromInt(seed.pnl),
			UsedMargin:    decimal.NewFromInt(seed.margin),
		},
	}
}

// Venue returns the venue identifier.
func (g *AccountGateway) Venue() string { return g.venue }

// FetchAccountState drifts the unrealized PnL by up to ±100 USDT per call
// and returns the updated snapshot.
func (g *AccountGateway) FetchAccountState(ctx context.Context) (domain.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return domain.AccountState{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	drift := decimal.NewFromFloat((g.rng.Float64()*2 - 1) * maxDriftUSDT)
	g.state.UnrealizedPnL = g.state.UnrealizedPnL.Add(drift).Round(2)
	g.state.UpdatedAt = time.Now().Unix()

	return g.state, nil
}
