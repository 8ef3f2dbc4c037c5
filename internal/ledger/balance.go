package ledger

import (
	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest residual accepted as zero.
var BalanceTolerance = decimal.New(1, -6)

// GroupImbalance is the signed residual of one currency or asset group,
// debit positive.
type GroupImbalance struct {
	Key string
	Sum decimal.Decimal
}

type groupSums struct {
	order []string
	sums  map[string]decimal.Decimal
}

func sumGroups(legs []Leg) groupSums {
	g := groupSums{sums: make(map[string]decimal.Decimal)}
	for _, l := range legs {
		if l.Amount == nil {
			continue
		}
		k := l.Amount.Unit()
		if _, ok := g.sums[k]; !ok {
			g.order = append(g.order, k)
			g.sums[k] = decimal.Zero
		}
		g.sums[k] = g.sums[k].Add(l.Signed())
	}
	return g
}

func isZero(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(BalanceTolerance)
}

// Imbalances returns the groups whose signed sum is not zero, ignoring FX,
// in order of first appearance.
func Imbalances(legs []Leg) []GroupImbalance {
	g := sumGroups(legs)
	var out []GroupImbalance
	for _, k := range g.order {
		if !isZero(g.sums[k]) {
			out = append(out, GroupImbalance{Key: k, Sum: g.sums[k]})
		}
	}
	return out
}

// CheckBalance verifies that debits equal credits per currency or asset.
// When legs carry FX snapshots, unbalanced groups are converted into the
// snapshot's target currency and must net to zero there instead.
func CheckBalance(legs []Leg) error {
	off := Imbalances(legs)
	if len(off) == 0 {
		return nil
	}

	var (
		ref     string
		pending *decimal.Decimal
		rates   = make(map[string]decimal.Decimal)
	)
	for _, l := range legs {
		if l.FX == nil || l.Amount == nil {
			continue
		}
		to := string(l.FX.To)
		if ref == "" {
			ref = to
		} else if ref != to {
			return &UnbalancedError{Groups: off, Reason: "conflicting FX targets " + ref + " and " + to}
		}
		unit := l.Amount.Unit()
		if unit == ref {
			// Rate quoted on the target-side leg prices the counter currency.
			if pending == nil {
				r := l.FX.Rate
				pending = &r
			}
			continue
		}
		if _, ok := rates[unit]; !ok {
			rates[unit] = l.FX.Rate
		}
	}
	if ref == "" {
		return &UnbalancedError{Groups: off}
	}

	total := decimal.Zero
	for _, g := range off {
		if g.Key == ref {
			total = total.Add(g.Sum)
			continue
		}
		rate, ok := rates[g.Key]
		if !ok {
			if pending == nil {
				return &UnbalancedError{Groups: off, Reason: "no FX rate for " + g.Key}
			}
			rate = *pending
		}
		total = total.Add(g.Sum.Mul(rate).Round(2))
	}
	if !isZero(total) {
		return &UnbalancedError{Groups: off, Reason: "FX residual " + total.String() + " " + ref}
	}
	return nil
}
