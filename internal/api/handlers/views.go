package handlers

import (
	"time"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/ledger"
)

// JSON shapes returned by the API. Decimals are strings.

type refView struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type legView struct {
	AccountID   string `json:"account_id"`
	Direction   string `json:"direction"`
	Kind        string `json:"kind"`
	Unit        string `json:"unit"`
	Amount      string `json:"amount"`
	FXTo        string `json:"fx_to,omitempty"`
	FXRate      string `json:"fx_rate,omitempty"`
	CategoryID  string `json:"category_id,omitempty"`
	FeeOfLegIdx *int   `json:"fee_of_leg_idx,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type transactionView struct {
	ID           string     `json:"id"`
	TS           time.Time  `json:"ts"`
	PostedTS     *time.Time `json:"posted_ts,omitempty"`
	Source       string     `json:"source"`
	Payee        string     `json:"payee,omitempty"`
	Memo         string     `json:"memo,omitempty"`
	Status       string     `json:"status,omitempty"`
	Reconciled   bool       `json:"reconciled"`
	TxType       string     `json:"tx_type,omitempty"`
	ExternalRefs []refView  `json:"external_refs,omitempty"`
	Legs         []legView  `json:"legs"`
}

func newTransactionView(tx *ledger.Transaction) transactionView {
	v := transactionView{
		ID:         tx.ID,
		TS:         tx.TS,
		PostedTS:   tx.PostedTS,
		Source:     tx.Source,
		Payee:      tx.Payee,
		Memo:       tx.Memo,
		Status:     tx.Status,
		Reconciled: tx.Reconciled,
		TxType:     string(tx.TxType),
		Legs:       make([]legView, 0, len(tx.Legs)),
	}
	for _, r := range tx.ExternalRefs {
		v.ExternalRefs = append(v.ExternalRefs, refView{Kind: r.Kind, Value: r.Value})
	}
	for _, l := range tx.Legs {
		lv := legView{
			AccountID:   l.AccountID,
			Direction:   string(l.Direction),
			Unit:        l.Amount.Unit(),
			Amount:      l.Amount.Magnitude().String(),
			CategoryID:  l.CategoryID,
			FeeOfLegIdx: l.FeeOfLegIdx,
			Notes:       l.Notes,
		}
		switch l.Amount.(type) {
		case ledger.Fiat:
			lv.Kind = string(importer.KindFiat)
		case ledger.Crypto:
			lv.Kind = string(importer.KindCrypto)
		}
		if l.FX != nil {
			lv.FXTo = string(l.FX.To)
			lv.FXRate = l.FX.Rate.String()
		}
		v.Legs = append(v.Legs, lv)
	}
	return v
}

type envelopeView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	Balance       string `json:"balance"`
	Display       string `json:"display"`
	Rollover      string `json:"rollover"`
	RolloverCap   string `json:"rollover_cap,omitempty"`
	Funding       string `json:"funding,omitempty"`
	PeriodLimit   string `json:"period_limit,omitempty"`
	LastPeriod    string `json:"last_period,omitempty"`
	AllowNegative bool   `json:"allow_negative"`
	MinBalance    string `json:"min_balance,omitempty"`
	DeficitPolicy string `json:"deficit_policy"`
}

func newEnvelopeView(e *envelope.Envelope) envelopeView {
	v := envelopeView{
		ID:            e.ID,
		Name:          e.Name,
		Kind:          string(e.Kind),
		Status:        string(e.Status),
		Currency:      string(e.Currency()),
		Balance:       e.Balance.Amount.String(),
		Display:       e.Balance.Display(),
		Rollover:      e.Rollover.Name(),
		LastPeriod:    e.LastPeriod,
		AllowNegative: e.AllowNegative,
		DeficitPolicy: string(e.DeficitPolicy),
	}
	if c := envelope.RolloverCap(e.Rollover); c != nil {
		v.RolloverCap = c.Amount.String()
	}
	if e.Funding != nil {
		v.Funding = e.Funding.Amount.Amount.String()
	}
	if e.PeriodLimit != nil {
		v.PeriodLimit = e.PeriodLimit.Amount.String()
	}
	if e.MinBalance != nil {
		v.MinBalance = e.MinBalance.String()
	}
	return v
}

type rowErrorView struct {
	Row   int    `json:"row"`
	TxID  string `json:"txid,omitempty"`
	Error string `json:"error"`
}

type summaryView struct {
	Rows            int            `json:"rows"`
	Transactions    int            `json:"transactions"`
	Inserted        int            `json:"inserted"`
	Duplicates      int            `json:"duplicates"`
	Failed          int            `json:"failed"`
	EnvelopeUpdates int            `json:"envelope_updates"`
	InsertedIDs     []string       `json:"inserted_ids"`
	Errors          []rowErrorView `json:"errors"`
	Warnings        []string       `json:"warnings"`
}

func newSummaryView(s *importer.Summary) summaryView {
	v := summaryView{
		Rows:            s.Rows,
		Transactions:    s.Transactions,
		Inserted:        s.Inserted,
		Duplicates:      s.Duplicates,
		Failed:          s.Failed,
		EnvelopeUpdates: s.EnvelopeUpdates,
		InsertedIDs:     s.InsertedIDs,
		Errors:          []rowErrorView{},
		Warnings:        s.Warnings,
	}
	if v.InsertedIDs == nil {
		v.InsertedIDs = []string{}
	}
	if v.Warnings == nil {
		v.Warnings = []string{}
	}
	for _, e := range s.Errors {
		v.Errors = append(v.Errors, rowErrorView{Row: e.Row, TxID: e.TxID, Error: e.Err.Error()})
	}
	return v
}
