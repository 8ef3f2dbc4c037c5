package ledger

import (
	"context"
	"strings"

	"github.com/wyat/capital/internal/money"
)

// TransactionRepository persists transactions in capital_ledger.
type TransactionRepository interface {
	// InsertTransaction fails with ErrDuplicate when the id exists.
	InsertTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// ScanTransactions calls fn for each match in (ts, id) order and stops
	// at filter.Limit when it is positive, or when fn returns an error.
	ScanTransactions(ctx context.Context, filter TxFilter, fn func(*Transaction) error) error
	UpdateTxType(ctx context.Context, id string, t TxType) error
	UpdateReconciled(ctx context.Context, id string, reconciled bool) error
	// ReplaceLegs rewrites legs in place; used by denomination patches.
	ReplaceLegs(ctx context.Context, id string, legs []Leg) error
	DeleteTransaction(ctx context.Context, id string) error
}

// TxFilter selects transactions. Zero fields match everything.
type TxFilter struct {
	Source string
	// PnLCurrency matches documents with a fiat P&L leg in this currency
	// whose notes do not contain ExcludeNote.
	PnLCurrency money.Currency
	ExcludeNote string
	// CategoryOnCustody matches legacy rows with category_id on a
	// non-P&L leg.
	CategoryOnCustody bool
	Limit             int
}

// Matches evaluates the filter in memory. Document stores translate the
// same predicate into a query.
func (f TxFilter) Matches(tx *Transaction) bool {
	if f.Source != "" && tx.Source != f.Source {
		return false
	}
	if f.CategoryOnCustody && !tx.HasCategoryOnCustodyLeg() {
		return false
	}
	if f.PnLCurrency != "" {
		found := false
		for _, l := range tx.Legs {
			if !l.IsPnL() {
				continue
			}
			m, ok := l.FiatMoney()
			if !ok || m.Currency != f.PnLCurrency {
				continue
			}
			if f.ExcludeNote != "" && strings.Contains(l.Notes, f.ExcludeNote) {
				continue
			}
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}
