// Package domain contains the market data model shared by venue gateways.
package domain

import (
	"fmt"
	"strings"
)

// Instrument identifies a perpetual swap by its base and quote currency.
// The canonical form is "BASE/QUOTE" (e.g. "BTC/USDT"); each venue gateway
// translates it to the venue's native symbol.
type Instrument struct {
	Base  string
	Quote string
}

// ParseInstrument parses "BTC/USDT" into an Instrument.
func ParseInstrument(s string) (Instrument, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Instrument{}, fmt.Errorf("invalid instrument %q, expected BASE/QUOTE", s)
	}
	return Instrument{
		Base:  strings.ToUpper(parts[0]),
		Quote: strings.ToUpper(parts[1]),
	}, nil
}

// String returns the canonical "BASE/QUOTE" form.
func (i Instrument) String() string {
	return i.Base + "/" + i.Quote
}

// Symbol returns the concatenated form used by Binance and Bybit ("BTCUSDT").
func (i Instrument) Symbol() string {
	return i.Base + i.Quote
}

// IsZero reports whether the instrument is unset.
func (i Instrument) IsZero() bool {
	return i.Base == "" && i.Quote == ""
}

// Side represents an order book side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)
