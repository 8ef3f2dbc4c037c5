package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/money"
)

// PnLAccountID is the reserved virtual account absorbing profit and loss.
const PnLAccountID = "__pnl__"

// Direction is the side of a leg.
type Direction string

const (
	Debit  Direction = "Debit"
	Credit Direction = "Credit"
)

// ParseDirection normalizes a direction case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit":
		return Debit, nil
	case "credit":
		return Credit, nil
	}
	return "", &InvalidEnumError{Field: "direction", Value: s}
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

// LegAmount is the tagged amount of a leg: Fiat or Crypto. Magnitudes are
// non-negative; the sign lives in the leg direction.
type LegAmount interface {
	// Unit is the currency code or asset symbol the amount is measured in.
	Unit() string
	Magnitude() decimal.Decimal
	isLegAmount()
}

// Fiat is an amount in a ledger currency.
type Fiat struct {
	Money money.Money
}

// Crypto is a quantity of an on-chain or exchange asset.
type Crypto struct {
	Asset    string
	Quantity decimal.Decimal
}

func (f Fiat) Unit() string                 { return string(f.Money.Currency) }
func (f Fiat) Magnitude() decimal.Decimal   { return f.Money.Amount.Abs() }
func (Fiat) isLegAmount()                   {}
func (c Crypto) Unit() string               { return strings.ToUpper(c.Asset) }
func (c Crypto) Magnitude() decimal.Decimal { return c.Quantity.Abs() }
func (Crypto) isLegAmount()                 {}

// Leg is one side of a journal entry.
type Leg struct {
	AccountID string
	Direction Direction
	Amount    LegAmount
	FX        *money.FXSnapshot
	// CategoryID references an envelope and is only meaningful on P&L legs.
	CategoryID  string
	FeeOfLegIdx *int
	Notes       string
}

// IsPnL reports whether the leg hits the virtual P&L account.
func (l Leg) IsPnL() bool { return l.AccountID == PnLAccountID }

// Signed returns the magnitude with debit positive and credit negative.
func (l Leg) Signed() decimal.Decimal {
	m := l.Amount.Magnitude()
	if l.Direction == Credit {
		return m.Neg()
	}
	return m
}

// FiatMoney returns the leg's money when the amount is fiat.
func (l Leg) FiatMoney() (money.Money, bool) {
	f, ok := l.Amount.(Fiat)
	if !ok {
		return money.Money{}, false
	}
	return f.Money, true
}

// AppendNote adds a token to the leg's notes, separated by "; ".
func (l *Leg) AppendNote(token string) {
	if l.Notes == "" {
		l.Notes = token
		return
	}
	l.Notes += "; " + token
}
