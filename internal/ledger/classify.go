package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/money"
)

// DefaultFeeThreshold is the fiat magnitude under which a two-leg P&L debit
// is treated as a bank fee. It is not currency-aware.
var DefaultFeeThreshold = decimal.NewFromInt(15)

// Classifier labels transactions from leg shape alone.
type Classifier struct {
	FeeThreshold decimal.Decimal
}

// DefaultClassifier uses DefaultFeeThreshold.
var DefaultClassifier = Classifier{FeeThreshold: DefaultFeeThreshold}

// Classify labels tx with the default classifier.
func Classify(tx *Transaction) TxType {
	return DefaultClassifier.Classify(tx.Legs)
}

// Classify is a pure function of the legs. Transactions with more than one
// P&L leg are ill-formed and degrade to adjustment.
func (c Classifier) Classify(legs []Leg) TxType {
	var pnl []Leg
	for _, l := range legs {
		if l.IsPnL() {
			pnl = append(pnl, l)
		}
	}

	switch len(pnl) {
	case 1:
		p := pnl[0]
		if p.Direction == Credit {
			return TxIncome
		}
		if len(legs) == 2 {
			if f, ok := p.Amount.(Fiat); ok && f.Money.Amount.Abs().LessThan(c.FeeThreshold) {
				return TxFeeOnly
			}
		}
		return TxSpending

	case 0:
		if len(legs) < 2 {
			return TxAdjustment
		}
		fiatCcys := make(map[money.Currency]struct{})
		var hasCrypto, hasFiat bool
		for _, l := range legs {
			switch a := l.Amount.(type) {
			case Fiat:
				hasFiat = true
				fiatCcys[a.Money.Currency] = struct{}{}
			case Crypto:
				hasCrypto = true
			}
		}
		if len(fiatCcys) > 1 {
			return TxTransferFX
		}
		if hasCrypto && (hasFiat || len(legs) > 2) {
			return TxTrade
		}
		if len(fiatCcys) == 1 || (hasCrypto && !hasFiat) {
			return TxTransfer
		}
		return TxAdjustment

	default:
		return TxAdjustment
	}
}
