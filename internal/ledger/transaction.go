package ledger

import (
	"fmt"
	"strings"
	"time"
)

// TxType is the classifier's label for a transaction.
type TxType string

const (
	TxSpending   TxType = "spending"
	TxIncome     TxType = "income"
	TxFeeOnly    TxType = "fee_only"
	TxTransfer   TxType = "transfer"
	TxTransferFX TxType = "transfer_fx"
	TxTrade      TxType = "trade"
	TxAdjustment TxType = "adjustment"
)

// ParseTxType validates a tx_type value. The empty string is accepted and
// means unclassified.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "", TxSpending, TxIncome, TxFeeOnly, TxTransfer, TxTransferFX, TxTrade, TxAdjustment:
		return t, nil
	}
	return "", &InvalidEnumError{Field: "tx_type", Value: s}
}

// SingleSided reports whether the type books against exactly one P&L leg.
func (t TxType) SingleSided() bool {
	return t == TxSpending || t == TxIncome || t == TxFeeOnly
}

// ExternalRef links a transaction to an outside record, e.g. a statement.
type ExternalRef struct {
	Kind  string
	Value string
}

// Transaction is a multi-leg journal entry. All legs share TS.
type Transaction struct {
	ID           string
	TS           time.Time
	PostedTS     *time.Time
	Source       string
	Payee        string
	Memo         string
	Status       string
	Reconciled   bool
	ExternalRefs []ExternalRef
	Legs         []Leg
	// TxType is empty for unclassified rows.
	TxType TxType
}

// PnLLegs returns the indices of legs against the P&L account.
func (tx *Transaction) PnLLegs() []int {
	var idx []int
	for i, l := range tx.Legs {
		if l.IsPnL() {
			idx = append(idx, i)
		}
	}
	return idx
}

// PnLLeg returns the single P&L leg, or nil when there is none or several.
func (tx *Transaction) PnLLeg() *Leg {
	idx := tx.PnLLegs()
	if len(idx) != 1 {
		return nil
	}
	return &tx.Legs[idx[0]]
}

// Validate checks the persisted-transaction invariants: at least two legs,
// balance, a single P&L leg for single-sided types, categories on P&L legs
// only, and in-range fee references.
func (tx *Transaction) Validate() error {
	if len(tx.Legs) < 2 {
		return fmt.Errorf("transaction %s: %d legs, need at least 2", tx.ID, len(tx.Legs))
	}
	for i, l := range tx.Legs {
		if l.Amount == nil {
			return fmt.Errorf("transaction %s: leg %d has no amount", tx.ID, i)
		}
		if l.Direction != Debit && l.Direction != Credit {
			return &InvalidEnumError{Field: "direction", Value: string(l.Direction)}
		}
		if l.CategoryID != "" && !l.IsPnL() {
			return fmt.Errorf("transaction %s: leg %d carries category %q on custody account %s",
				tx.ID, i, l.CategoryID, l.AccountID)
		}
		if l.FeeOfLegIdx != nil && (*l.FeeOfLegIdx < 0 || *l.FeeOfLegIdx >= len(tx.Legs) || *l.FeeOfLegIdx == i) {
			return fmt.Errorf("transaction %s: leg %d fee_of_leg_idx %d out of range", tx.ID, i, *l.FeeOfLegIdx)
		}
	}
	if tx.TxType.SingleSided() && len(tx.PnLLegs()) > 1 {
		return fmt.Errorf("transaction %s: %s with %d P&L legs", tx.ID, tx.TxType, len(tx.PnLLegs()))
	}
	if err := CheckBalance(tx.Legs); err != nil {
		if ub, ok := err.(*UnbalancedError); ok {
			ub.TxID = tx.ID
		}
		return err
	}
	return nil
}

// HasCategoryOnCustodyLeg reports the legacy placement of category_id on a
// real account instead of the P&L leg.
func (tx *Transaction) HasCategoryOnCustodyLeg() bool {
	for _, l := range tx.Legs {
		if l.CategoryID != "" && !l.IsPnL() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate.
func (tx *Transaction) Clone() *Transaction {
	c := *tx
	if tx.PostedTS != nil {
		p := *tx.PostedTS
		c.PostedTS = &p
	}
	c.ExternalRefs = append([]ExternalRef(nil), tx.ExternalRefs...)
	c.Legs = make([]Leg, len(tx.Legs))
	for i, l := range tx.Legs {
		if l.FX != nil {
			fx := *l.FX
			l.FX = &fx
		}
		if l.FeeOfLegIdx != nil {
			idx := *l.FeeOfLegIdx
			l.FeeOfLegIdx = &idx
		}
		c.Legs[i] = l
	}
	return &c
}
