package envelope

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/money"
)

// Rollover transforms the prior balance at the start of a period, before
// funding.
type Rollover interface {
	Name() string
	apply(e *Envelope, balance decimal.Decimal) decimal.Decimal
	validate() error
}

type (
	// ResetToZero drops the balance, except that a permitted deficit is
	// carried unchanged.
	ResetToZero struct{}

	// CarryOver keeps the balance, clipped to Cap.
	CarryOver struct{ Cap *money.Money }

	// SinkingFund keeps the balance like CarryOver. Its cap is a savings
	// target and also bounds the funded balance.
	SinkingFund struct{ Cap *money.Money }

	// Decay keeps KeepRatio of the balance, clipped to Cap.
	Decay struct {
		KeepRatio decimal.Decimal
		Cap       *money.Money
	}
)

func (ResetToZero) Name() string { return "ResetToZero" }
func (CarryOver) Name() string   { return "CarryOver" }
func (SinkingFund) Name() string { return "SinkingFund" }
func (Decay) Name() string       { return "Decay" }

func (ResetToZero) apply(e *Envelope, b decimal.Decimal) decimal.Decimal {
	if e.AllowNegative && b.IsNegative() {
		return b
	}
	return decimal.Zero
}

func (r CarryOver) apply(e *Envelope, b decimal.Decimal) decimal.Decimal {
	return clip(e, b, r.Cap)
}

func (r SinkingFund) apply(e *Envelope, b decimal.Decimal) decimal.Decimal {
	return clip(e, b, r.Cap)
}

func (r Decay) apply(e *Envelope, b decimal.Decimal) decimal.Decimal {
	return clip(e, b.Mul(r.KeepRatio), r.Cap)
}

func (ResetToZero) validate() error { return nil }
func (CarryOver) validate() error   { return nil }
func (SinkingFund) validate() error { return nil }

func (r Decay) validate() error {
	if r.KeepRatio.IsNegative() || r.KeepRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("decay keep_ratio %s outside [0,1]", r.KeepRatio)
	}
	return nil
}

// clip bounds b by cap when the cap is set and in the envelope currency.
func clip(e *Envelope, b decimal.Decimal, cap *money.Money) decimal.Decimal {
	if cap == nil || cap.Currency != e.Currency() {
		return b
	}
	if b.GreaterThan(cap.Amount) {
		return cap.Amount
	}
	return b
}

// RolloverCap returns the cap of a policy, if any.
func RolloverCap(r Rollover) *money.Money {
	switch p := r.(type) {
	case ResetToZero:
		return nil
	case CarryOver:
		return p.Cap
	case SinkingFund:
		return p.Cap
	case Decay:
		return p.Cap
	default:
		panic(fmt.Sprintf("envelope: unhandled rollover %T", r))
	}
}
