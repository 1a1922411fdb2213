package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/internal/logger"
)

type fakeAccountGateway struct {
	venue string
	state domain.AccountState
	err   error
}

func (f *fakeAccountGateway) Venue() string { return f.venue }

func (f *fakeAccountGateway) FetchAccountState(ctx context.Context) (domain.AccountState, error) {
	if f.err != nil {
		return domain.AccountState{}, f.err
	}
	return f.state, nil
}

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func accountState(venue, balance, pnl, margin string) domain.AccountState {
	return domain.AccountState{
		Venue:         venue,
		Balance:       decimal.RequireFromString(balance),
		UnrealizedPnL: decimal.RequireFromString(pnl),
		UsedMargin:    decimal.RequireFromString(margin),
	}
}

func newGuard(gateways ...AccountGateway) *Guard {
	return NewGuard(gateways, DefaultGuardConfig(), testLogger())
}

func TestRefreshAndSnapshotSorted(t *testing.T) {
	guard := newGuard(
		&fakeAccountGateway{venue: "okx", state: accountState("okx", "10000", "-4000", "3000")},
		&fakeAccountGateway{venue: "binance", state: accountState("binance", "10000", "500", "3000")},
		&fakeAccountGateway{venue: "bybit", state: accountState("bybit", "10000", "-200", "3000")},
	)

	guard.Refresh(context.Background())

	snap := guard.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot has %d accounts, want 3", len(snap))
	}
	for i, want := range []string{"binance", "bybit", "okx"} {
		if snap[i].Venue != want {
			t.Errorf("snapshot[%d].Venue = %q, want %q", i, snap[i].Venue, want)
		}
	}
}

func TestRefreshKeepsStaleSnapshotOnFailure(t *testing.T) {
	gw := &fakeAccountGateway{venue: "binance", state: accountState("binance", "10000", "500", "3000")}
	guard := newGuard(gw)

	guard.Refresh(context.Background())
	if len(guard.Snapshot()) != 1 {
		t.Fatal("first refresh did not record the account")
	}

	gw.err = errors.New("signature rejected")
	guard.Refresh(context.Background())

	snap := guard.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("stale snapshot dropped: %d accounts, want 1", len(snap))
	}
	if want := decimal.RequireFromString("10500"); !snap[0].Equity().Equal(want) {
		t.Errorf("stale equity = %s, want %s", snap[0].Equity(), want)
	}
}

func TestCheckMarginHealthAlertsOnDangerOnly(t *testing.T) {
	guard := newGuard(
		&fakeAccountGateway{venue: "binance", state: accountState("binance", "10000", "0", "3000")}, // 0.3
		&fakeAccountGateway{venue: "bybit", state: accountState("bybit", "10000", "0", "7000")},     // 0.7 warning
		&fakeAccountGateway{venue: "okx", state: accountState("okx", "10000", "-2000", "7000")},     // 0.875 danger
	)

	guard.Refresh(context.Background())

	alerts := guard.CheckMarginHealth()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}

	alert := alerts[0]
	if alert.Venue != "okx" {
		t.Errorf("alert venue = %q, want okx", alert.Venue)
	}
	if want := decimal.RequireFromString("0.875"); !alert.MarginLevel.Equal(want) {
		t.Errorf("alert margin level = %s, want %s", alert.MarginLevel, want)
	}
	if want := decimal.RequireFromString("0.2"); !alert.DeleverageFraction.Equal(want) {
		t.Errorf("deleverage fraction = %s, want %s", alert.DeleverageFraction, want)
	}
}

func TestCheckMarginHealthZeroEquity(t *testing.T) {
	guard := newGuard(
		&fakeAccountGateway{venue: "binance", state: accountState("binance", "5000", "-5000", "1000")},
	)

	guard.Refresh(context.Background())

	alerts := guard.CheckMarginHealth()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1 for zero-equity account", len(alerts))
	}
	if want := decimal.NewFromInt(999); !alerts[0].MarginLevel.Equal(want) {
		t.Errorf("margin level = %s, want sentinel %s", alerts[0].MarginLevel, want)
	}
}

func TestSuggestTransfers(t *testing.T) {
	// Equities: 14000, 9800, 6000; average 9933.33. Only binance exceeds
	// the average by more than the 1000 buffer.
	guard := newGuard(
		&fakeAccountGateway{venue: "binance", state: accountState("binance", "12000", "2000", "3000")},
		&fakeAccountGateway{venue: "bybit", state: accountState("bybit", "10000", "-200", "3000")},
		&fakeAccountGateway{venue: "okx", state: accountState("okx", "10000", "-4000", "3000")},
	)

	guard.Refresh(context.Background())

	advice := guard.SuggestTransfers()
	if len(advice) != 1 {
		t.Fatalf("got %d transfer suggestions, want 1", len(advice))
	}

	adv := advice[0]
	if adv.FromVenue != "binance" {
		t.Errorf("advised venue = %q, want binance", adv.FromVenue)
	}
	if !adv.Amount.Equal(adv.Excess.Div(decimal.NewFromInt(2))) {
		t.Errorf("advised amount %s is not half the excess %s", adv.Amount, adv.Excess)
	}
}

func TestSuggestTransfersBalancedFleet(t *testing.T) {
	guard := newGuard(
		&fakeAccountGateway{venue: "binance", state: accountState("binance", "10000", "0", "3000")},
		&fakeAccountGateway{venue: "bybit", state: accountState("bybit", "10500", "0", "3000")},
	)

	guard.Refresh(context.Background())

	if advice := guard.SuggestTransfers(); len(advice) != 0 {
		t.Fatalf("got %d transfer suggestions for a balanced fleet, want 0", len(advice))
	}
}

func TestSuggestTransfersEmpty(t *testing.T) {
	guard := newGuard()
	if advice := guard.SuggestTransfers(); advice != nil {
		t.Fatalf("got %v from empty guard, want nil", advice)
	}
}
