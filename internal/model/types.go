package model

import (
	"strconv"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Symbols
// -----------------------------------------------------------------------------

// Symbol identifies one instrument in the fixed universe. Canonical form is
// uppercase; use NormalizeSymbol before comparing against the universe.
type Symbol string

// NormalizeSymbol canonicalizes raw symbol text: surrounding whitespace is
// trimmed and the result uppercased. It does not validate membership; the
// feed registry is the single source of truth for that.
func NormalizeSymbol(text string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(text)))
}

// -----------------------------------------------------------------------------
// Prices
// -----------------------------------------------------------------------------

// Price is a dollar price that serializes to JSON with exactly two decimal
// places (250 marshals as 250.00). The zero value is omitted by omitempty,
// which outbound envelopes rely on; generated prices are never zero.
type Price float64

// MarshalJSON renders the price as a plain JSON number with two decimals.
func (p Price) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(p), 'f', 2, 64), nil
}

// UnmarshalJSON accepts any JSON number.
func (p *Price) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*p = Price(f)
	return nil
}

// -----------------------------------------------------------------------------
// Ticks
// -----------------------------------------------------------------------------

// PriceTick is one generated price observation for a symbol. Immutable once
// produced. Seq is per-symbol monotonic from 1; Time is generation time.
// Neither appears in the client wire format (PRICE_UPDATE carries only
// symbol and price); both serve the tick writers.
type PriceTick struct {
	Symbol Symbol    `json:"symbol"`
	Price  float64   `json:"price"`
	Seq    int64     `json:"seq"`
	Time   time.Time `json:"time"`
}
