// Package money implements currency-aware decimal amounts and FX snapshots.
//
// All arithmetic is exact; rounding happens only in Convert (to cents) and
// at presentation time in Display.
package money

import (
	"fmt"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// CurrencyMismatchError reports arithmetic attempted across currencies.
type CurrencyMismatchError struct {
	A, B Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.A, e.B)
}

// New builds a Money from a decimal amount.
func New(amount decimal.Decimal, c Currency) Money {
	return Money{Amount: amount, Currency: c}
}

// FromString parses a decimal string amount.
func FromString(amount string, c Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("FromString: parsing %q: %w", amount, err)
	}
	return Money{Amount: d, Currency: c}, nil
}

// MustParse is FromString for literals in seed data and tests.
func MustParse(amount string, c Currency) Money {
	m, err := FromString(amount, c)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in c.
func Zero(c Currency) Money { return Money{Amount: decimal.Zero, Currency: c} }

func (m Money) check(n Money) error {
	if m.Currency != n.Currency {
		return &CurrencyMismatchError{A: m.Currency, B: n.Currency}
	}
	return nil
}

// Add returns m+n.
func (m Money) Add(n Money) (Money, error) {
	if err := m.check(n); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(n.Amount), Currency: m.Currency}, nil
}

// Sub returns m-n.
func (m Money) Sub(n Money) (Money, error) {
	if err := m.check(n); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(n.Amount), Currency: m.Currency}, nil
}

// Cmp compares m and n: -1 if m < n, 0 if equal, +1 if m > n.
func (m Money) Cmp(n Money) (int, error) {
	if err := m.check(n); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(n.Amount), nil
}

// Mul scales m by a unitless factor.
func (m Money) Mul(f decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(f), Currency: m.Currency}
}

func (m Money) Neg() Money         { return Money{Amount: m.Amount.Neg(), Currency: m.Currency} }
func (m Money) Abs() Money         { return Money{Amount: m.Amount.Abs(), Currency: m.Currency} }
func (m Money) IsZero() bool       { return m.Amount.IsZero() }
func (m Money) IsNegative() bool   { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool   { return m.Amount.IsPositive() }
func (m Money) Equal(n Money) bool { return m.Currency == n.Currency && m.Amount.Equal(n.Amount) }

// Round rounds to the given number of decimal places (half away from zero).
func (m Money) Round(places int32) Money {
	return Money{Amount: m.Amount.Round(places), Currency: m.Currency}
}

// Display formats m with the currency's symbol and display precision.
func (m Money) Display() string {
	p := m.Currency.DisplayPrecision()
	minor := m.Amount.Shift(p).Round(0).IntPart()
	return gomoney.New(minor, string(m.Currency)).Display()
}

// String renders the exact amount followed by the currency code.
func (m Money) String() string {
	return m.Amount.String() + " " + string(m.Currency)
}
