package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
)

// Currency is one of the closed set of currencies the ledger books in.
type Currency string

const (
	USD Currency = "USD"
	HKD Currency = "HKD"
	BTC Currency = "BTC"
)

// ErrUnknownCurrency is returned when a code is outside the closed set.
var ErrUnknownCurrency = errors.New("unknown currency")

// Currencies lists every supported currency.
var Currencies = []Currency{USD, HKD, BTC}

func init() {
	// go-money ships fiat codes only; BTC needs satoshi precision for display.
	if gomoney.GetCurrency(string(BTC)) == nil {
		gomoney.AddCurrency(string(BTC), "₿", "1 $", ".", ",", 8)
	}
}

// ParseCurrency normalizes a currency code case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
	return c, nil
}

// Valid reports whether c belongs to the closed set.
func (c Currency) Valid() bool {
	switch c {
	case USD, HKD, BTC:
		return true
	}
	return false
}

// DisplayPrecision is the number of fraction digits used when presenting
// amounts in c.
func (c Currency) DisplayPrecision() int32 {
	if cur := gomoney.GetCurrency(string(c)); cur != nil {
		return int32(cur.Fraction)
	}
	return 2
}

func (c Currency) String() string { return string(c) }
