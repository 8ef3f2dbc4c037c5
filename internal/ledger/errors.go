package ledger

import (
	"errors"
	"fmt"

	"github.com/wyat/capital/internal/money"
)

var (
	// ErrUnbalancedTransaction is returned when legs fail the balance
	// invariant and no P&L leg can be synthesized.
	ErrUnbalancedTransaction = errors.New("unbalanced transaction")

	// ErrDuplicate is returned by stores when an id already exists.
	ErrDuplicate = errors.New("duplicate id")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReservedAccount is returned when a real account claims the P&L id.
	ErrReservedAccount = errors.New("reserved account id")
)

// CurrencyMismatchError is re-exported so callers can match it without
// importing the money package.
type CurrencyMismatchError = money.CurrencyMismatchError

// InvalidEnumError reports an unknown value for an enumerated field.
type InvalidEnumError struct {
	Field string
	Value string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// InvalidDateTimeError reports an unparseable or out-of-range timestamp.
type InvalidDateTimeError struct {
	Field string
	Value string
}

func (e *InvalidDateTimeError) Error() string {
	return fmt.Sprintf("invalid datetime in %s: %q", e.Field, e.Value)
}

// ParseError reports upstream input that did not match the expected shape.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "parse: " + e.Msg }

// Parsef builds a ParseError.
func Parsef(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// UnbalancedError carries the offending groups of an unbalanced transaction
// and matches ErrUnbalancedTransaction with errors.Is.
type UnbalancedError struct {
	TxID   string
	Groups []GroupImbalance
	Reason string
}

func (e *UnbalancedError) Error() string {
	msg := "unbalanced transaction"
	if e.TxID != "" {
		msg += " " + e.TxID
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	for _, g := range e.Groups {
		msg += fmt.Sprintf(" [%s %s]", g.Key, g.Sum)
	}
	return msg
}

func (e *UnbalancedError) Is(target error) bool { return target == ErrUnbalancedTransaction }
