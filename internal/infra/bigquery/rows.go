// Package bigquery exports ledger legs to a BigQuery table for reporting.
package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/wyat/capital/internal/ledger"
)

// numericScale is the fractional precision of a BigQuery NUMERIC column.
const numericScale = 9

// LegRow is one ledger leg flattened for analytics. A transaction with n
// legs becomes n rows sharing transaction_id.
type LegRow struct {
	TransactionID   string     `bigquery:"transaction_id"`
	LegIdx          int64      `bigquery:"leg_idx"`
	TransactionDate civil.Date `bigquery:"transaction_date"`
	TS              time.Time  `bigquery:"ts"`

	Source string              `bigquery:"source"`
	Payee  bigquery.NullString `bigquery:"payee"`
	TxType bigquery.NullString `bigquery:"tx_type"`

	AccountID string `bigquery:"account_id"`
	IsPnL     bool   `bigquery:"is_pnl"`
	Direction string `bigquery:"direction"`
	Kind      string `bigquery:"kind"`
	Unit      string `bigquery:"unit"`

	// Amount is signed, debit positive, rounded to NUMERIC scale.
	// AmountText keeps the exact decimal.
	Amount     *big.Rat `bigquery:"amount"`
	AmountText string   `bigquery:"amount_text"`

	CategoryID bigquery.NullString `bigquery:"category_id"`
	FXTo       bigquery.NullString `bigquery:"fx_to"`
	FXRate     bigquery.NullString `bigquery:"fx_rate"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// InsertID is the streaming dedup key for the row.
func (r *LegRow) InsertID() string {
	return fmt.Sprintf("%s:%d", r.TransactionID, r.LegIdx)
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// LegRows flattens tx into one row per leg.
func LegRows(tx *ledger.Transaction, exportedAt time.Time) []*LegRow {
	rows := make([]*LegRow, 0, len(tx.Legs))
	for i, l := range tx.Legs {
		signed := l.Signed()
		r := &LegRow{
			TransactionID:   tx.ID,
			LegIdx:          int64(i),
			TransactionDate: civil.DateOf(tx.TS.UTC()),
			TS:              tx.TS,
			Source:          tx.Source,
			Payee:           nullString(tx.Payee),
			TxType:          nullString(string(tx.TxType)),
			AccountID:       l.AccountID,
			IsPnL:           l.IsPnL(),
			Direction:       string(l.Direction),
			Unit:            l.Amount.Unit(),
			Amount:          signed.Round(numericScale).Rat(),
			AmountText:      signed.String(),
			CategoryID:      nullString(l.CategoryID),
			ExportedTS:      exportedAt,
		}
		switch l.Amount.(type) {
		case ledger.Fiat:
			r.Kind = "Fiat"
		case ledger.Crypto:
			r.Kind = "Crypto"
		}
		if l.FX != nil {
			r.FXTo = nullString(string(l.FX.To))
			r.FXRate = nullString(l.FX.Rate.String())
		}
		rows = append(rows, r)
	}
	return rows
}

// CategorySpendRow is the monthly P&L total for one envelope category.
type CategorySpendRow struct {
	CategoryID string   `bigquery:"category_id"`
	Period     string   `bigquery:"period"`
	Currency   string   `bigquery:"currency"`
	Total      *big.Rat `bigquery:"total"`
	Legs       int64    `bigquery:"legs"`
}
