// Package envelope implements per-category budget envelopes: monthly
// rollover, funding, deficit netting and floor enforcement.
package envelope

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/money"
)

// Kind distinguishes fixed bills from variable spending.
type Kind string

const (
	Fixed    Kind = "Fixed"
	Variable Kind = "Variable"
)

// Status gates mutation; inactive envelopes are frozen.
type Status string

const (
	Active   Status = "Active"
	Inactive Status = "Inactive"
)

// Frequency of funding. Only monthly funding exists today.
type Frequency string

const Monthly Frequency = "Monthly"

// DeficitPolicy decides how funding meets a negative balance.
type DeficitPolicy string

const (
	AutoNet         DeficitPolicy = "AutoNet"
	RequireTransfer DeficitPolicy = "RequireTransfer"
)

// Funding is the amount added to the envelope each period.
type Funding struct {
	Amount    money.Money
	Frequency Frequency
}

// Envelope is a named budget pool with its own currency.
type Envelope struct {
	ID     string
	Name   string
	Kind   Kind
	Status Status

	Funding  *Funding
	Rollover Rollover
	Balance  money.Money
	// PeriodLimit is advisory and never enforced.
	PeriodLimit *money.Money
	// LastPeriod is the "YYYY-MM" of the last processed period.
	LastPeriod    string
	AllowNegative bool
	// MinBalance is the most negative balance allowed when AllowNegative.
	MinBalance    *decimal.Decimal
	DeficitPolicy DeficitPolicy
}

// ErrKind enumerates envelope failures.
type ErrKind string

const (
	KindInsufficientFunds  ErrKind = "InsufficientFunds"
	KindMinBalanceExceeded ErrKind = "MinBalanceExceeded"
	KindInactive           ErrKind = "InactiveEnvelope"
	KindNotFound           ErrKind = "EnvelopeNotFound"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds}
	ErrMinBalanceExceeded = &Error{Kind: KindMinBalanceExceeded}
	ErrInactive           = &Error{Kind: KindInactive}
	ErrNotFound           = &Error{Kind: KindNotFound}

	// ErrNegativeAmount rejects credits and debits below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Error is an envelope operation failure tied to an envelope id.
type Error struct {
	Kind       ErrKind
	EnvelopeID string
}

func (e *Error) Error() string {
	if e.EnvelopeID == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.EnvelopeID)
}

// Is matches on kind only so callers can compare against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrKind, id string) error {
	return &Error{Kind: kind, EnvelopeID: id}
}

// Currency is the envelope's fixed currency.
func (e *Envelope) Currency() money.Currency { return e.Balance.Currency }

// Validate checks the configuration is internally consistent.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope id is required")
	}
	if !e.Currency().Valid() {
		return fmt.Errorf("envelope %s: %w: %q", e.ID, money.ErrUnknownCurrency, e.Currency())
	}
	if e.Status != Active && e.Status != Inactive {
		return fmt.Errorf("envelope %s: invalid status %q", e.ID, e.Status)
	}
	if e.Rollover == nil {
		return fmt.Errorf("envelope %s: rollover policy is required", e.ID)
	}
	if err := e.Rollover.validate(); err != nil {
		return fmt.Errorf("envelope %s: %w", e.ID, err)
	}
	if e.Funding != nil && e.Funding.Amount.Currency != e.Currency() {
		return fmt.Errorf("envelope %s funding: %w", e.ID,
			&money.CurrencyMismatchError{A: e.Funding.Amount.Currency, B: e.Currency()})
	}
	if e.MinBalance != nil && e.MinBalance.IsPositive() {
		return fmt.Errorf("envelope %s: min_balance %s must not be positive", e.ID, e.MinBalance)
	}
	return nil
}

// Clone returns a deep copy.
func (e *Envelope) Clone() *Envelope {
	c := *e
	if e.Funding != nil {
		f := *e.Funding
		c.Funding = &f
	}
	if e.PeriodLimit != nil {
		p := *e.PeriodLimit
		c.PeriodLimit = &p
	}
	if e.MinBalance != nil {
		m := *e.MinBalance
		c.MinBalance = &m
	}
	return &c
}
