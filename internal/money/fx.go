package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// HKDPerUSD is the Hong Kong dollar peg.
var HKDPerUSD = decimal.NewFromFloat(7.8)

// DefaultHKDToUSD converts 1 HKD into USD at the peg (1/7.8).
var DefaultHKDToUSD = decimal.NewFromInt(1).Div(HKDPerUSD)

// FXSnapshot records the rate used to express a leg's native currency in
// To. Rate converts one native unit into To.
type FXSnapshot struct {
	To   Currency
	Rate decimal.Decimal
}

// NewFXSnapshot validates a snapshot.
func NewFXSnapshot(to Currency, rate decimal.Decimal) (FXSnapshot, error) {
	if !to.Valid() {
		return FXSnapshot{}, fmt.Errorf("NewFXSnapshot: %w: %q", ErrUnknownCurrency, to)
	}
	if !rate.IsPositive() {
		return FXSnapshot{}, fmt.Errorf("NewFXSnapshot: rate must be positive, got %s", rate)
	}
	return FXSnapshot{To: to, Rate: rate}, nil
}

// Convert expresses m in fx.To, rounded to two decimal places.
func Convert(m Money, fx FXSnapshot) Money {
	return Money{Amount: m.Amount.Mul(fx.Rate).Round(2), Currency: fx.To}
}

// ConvertAmount applies a rate to a bare decimal, rounded to two places.
func ConvertAmount(amount decimal.Decimal, fx FXSnapshot) decimal.Decimal {
	return amount.Mul(fx.Rate).Round(2)
}
