package envelope

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/money"
)

// PeriodKey formats a period marker as "YYYY-MM".
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// StartNewPeriod advances the envelope to (year, month). It reports whether
// the envelope changed; a repeated call for the same period is a no-op.
func (e *Envelope) StartNewPeriod(year, month int) (bool, error) {
	if month < 1 || month > 12 {
		return false, fmt.Errorf("StartNewPeriod: month %d out of range", month)
	}
	period := PeriodKey(year, month)
	if e.LastPeriod == period {
		return false, nil
	}
	if e.Status == Inactive {
		e.LastPeriod = period
		return true, nil
	}
	if e.Rollover == nil {
		return false, fmt.Errorf("StartNewPeriod: envelope %s has no rollover policy", e.ID)
	}

	next := e.Rollover.apply(e, e.Balance.Amount)

	if e.Funding != nil && e.Funding.Frequency == Monthly {
		if e.Funding.Amount.Currency != e.Currency() {
			return false, fmt.Errorf("StartNewPeriod: envelope %s funding: %w", e.ID,
				&money.CurrencyMismatchError{A: e.Funding.Amount.Currency, B: e.Currency()})
		}
		// AutoNet nets the deficit by adding funding. RequireTransfer and an
		// absent policy add funding too; explicit credits resolve deficits.
		next = next.Add(e.Funding.Amount.Amount)
		if sf, ok := e.Rollover.(SinkingFund); ok {
			next = clip(e, next, sf.Cap)
		}
	}

	e.Balance.Amount = next
	e.LastPeriod = period
	return true, nil
}

// Credit adds m to the balance.
func (e *Envelope) Credit(m money.Money) error {
	if e.Status == Inactive {
		return newError(KindInactive, e.ID)
	}
	if m.IsNegative() {
		return fmt.Errorf("Credit: envelope %s: %w", e.ID, ErrNegativeAmount)
	}
	next, err := e.Balance.Add(m)
	if err != nil {
		return fmt.Errorf("Credit: envelope %s: %w", e.ID, err)
	}
	e.Balance = next
	return nil
}

// Debit subtracts m from the balance, enforcing the floor.
func (e *Envelope) Debit(m money.Money) error {
	if e.Status == Inactive {
		return newError(KindInactive, e.ID)
	}
	if m.IsNegative() {
		return fmt.Errorf("Debit: envelope %s: %w", e.ID, ErrNegativeAmount)
	}
	prospective, err := e.Balance.Sub(m)
	if err != nil {
		return fmt.Errorf("Debit: envelope %s: %w", e.ID, err)
	}
	if e.AllowNegative {
		if e.MinBalance != nil && prospective.Amount.LessThan(*e.MinBalance) {
			return newError(KindMinBalanceExceeded, e.ID)
		}
	} else if prospective.Amount.LessThan(decimal.Zero) {
		return newError(KindInsufficientFunds, e.ID)
	}
	e.Balance = prospective
	return nil
}
