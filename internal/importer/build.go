package importer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/money"
)

const (
	// DefaultSource is stamped on rows without a source.
	DefaultSource = "assistant_extraction"
	// DefaultStatus is stamped on rows without a status.
	DefaultStatus = "imported"
)

// Options control normalization and persistence of a batch.
type Options struct {
	// Source replaces DefaultSource for rows without a source.
	Source string
	// TxType, when set, is used instead of the direction-derived default.
	TxType ledger.TxType
	// Reclassify stamps tx_type from the classifier after the legs are
	// built, ignoring row values and defaults.
	Reclassify bool
	// Classifier overrides ledger.DefaultClassifier when Reclassify is set.
	Classifier *ledger.Classifier
	// GenerateIDs assigns a UUID to rows without a txid instead of
	// rejecting them. Each such row becomes its own transaction.
	GenerateIDs bool
	// ApplyEnvelopes replays inserted transactions against envelopes.
	ApplyEnvelopes bool
	// DryRun builds and validates without writing.
	DryRun bool
}

// RowError ties a failure to the input row that caused it.
type RowError struct {
	Row  int
	TxID string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (txid %q): %v", e.Row, e.TxID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type group struct {
	txid string
	rows []int
}

// groupRows groups row indices by txid in first-appearance order.
func groupRows(rows []FlatRow, opts Options) ([]group, []RowError) {
	var (
		groups []group
		errs   []RowError
		byID   = make(map[string]int)
	)
	for i, r := range rows {
		id := r.TxID.String()
		if id == "" {
			if !opts.GenerateIDs {
				errs = append(errs, RowError{Row: i, Err: fmt.Errorf("txid is required")})
				continue
			}
			groups = append(groups, group{txid: uuid.NewString(), rows: []int{i}})
			continue
		}
		if gi, ok := byID[id]; ok {
			groups[gi].rows = append(groups[gi].rows, i)
			continue
		}
		byID[id] = len(groups)
		groups = append(groups, group{txid: id, rows: []int{i}})
	}
	return groups, errs
}

// buildLeg validates one row and turns it into a custody leg.
func buildLeg(r FlatRow) (ledger.Leg, error) {
	required := []struct {
		name string
		f    Field
	}{
		{"date", r.Date},
		{"account_id", r.AccountID},
		{"direction", r.Direction},
		{"kind", r.Kind},
		{"ccy_or_asset", r.CcyOrAsset},
		{"amount_or_qty", r.AmountOrQty},
	}
	for _, req := range required {
		if req.f.Empty() {
			return ledger.Leg{}, fmt.Errorf("%s is required", req.name)
		}
	}

	dir, err := ledger.ParseDirection(r.Direction.String())
	if err != nil {
		return ledger.Leg{}, err
	}
	kind, err := ParseLegKind(r.Kind.String())
	if err != nil {
		return ledger.Leg{}, err
	}
	qty, err := r.AmountOrQty.Decimal()
	if err != nil {
		return ledger.Leg{}, ledger.Parsef("amount_or_qty: %v", err)
	}
	qty = qty.Abs()

	leg := ledger.Leg{AccountID: r.AccountID.String(), Direction: dir}
	if leg.IsPnL() {
		leg.CategoryID = r.CategoryID.String()
	}

	switch kind {
	case KindFiat:
		ccy, err := money.ParseCurrency(r.CcyOrAsset.String())
		if err != nil {
			return ledger.Leg{}, fmt.Errorf("ccy_or_asset: %w", err)
		}
		leg.Amount = ledger.Fiat{Money: money.New(qty, ccy)}
	case KindCrypto:
		leg.Amount = ledger.Crypto{Asset: r.CcyOrAsset.String(), Quantity: qty}
	}

	if !r.Price.Empty() {
		rate, err := r.Price.Decimal()
		if err != nil {
			return ledger.Leg{}, ledger.Parsef("price: %v", err)
		}
		to, err := money.ParseCurrency(r.PriceCcy.String())
		if err != nil {
			return ledger.Leg{}, fmt.Errorf("price_ccy: %w", err)
		}
		fx, err := money.NewFXSnapshot(to, rate)
		if err != nil {
			return ledger.Leg{}, fmt.Errorf("price: %w", err)
		}
		leg.FX = &fx
	}
	return leg, nil
}

// backfillPnL synthesizes the P&L leg that balances legs when exactly one
// currency or asset group is off.
func backfillPnL(txid string, legs []ledger.Leg, txType ledger.TxType, category string) ([]ledger.Leg, error) {
	off := ledger.Imbalances(legs)
	if len(off) != 1 {
		return nil, &ledger.UnbalancedError{TxID: txid, Groups: off, Reason: "cannot synthesize P&L leg"}
	}
	if category == "" && (txType == ledger.TxSpending || txType == ledger.TxIncome) {
		return nil, &ledger.UnbalancedError{TxID: txid, Groups: off, Reason: "no category for P&L leg"}
	}

	g := off[0]
	dir := ledger.Debit
	if g.Sum.IsPositive() {
		dir = ledger.Credit
	}
	mag := g.Sum.Abs()

	var amount ledger.LegAmount
	for _, l := range legs {
		if amount != nil || l.Amount.Unit() != g.Key {
			continue
		}
		switch a := l.Amount.(type) {
		case ledger.Fiat:
			amount = ledger.Fiat{Money: money.New(mag, a.Money.Currency)}
		case ledger.Crypto:
			amount = ledger.Crypto{Asset: a.Unit(), Quantity: mag}
		default:
			panic(fmt.Sprintf("importer: unhandled leg amount %T", a))
		}
	}

	return append(legs, ledger.Leg{
		AccountID:  ledger.PnLAccountID,
		Direction:  dir,
		Amount:     amount,
		CategoryID: category,
	}), nil
}

// defaultTxType derives the type from the first row's direction.
func defaultTxType(dir ledger.Direction) ledger.TxType {
	if dir == ledger.Debit {
		return ledger.TxSpending
	}
	return ledger.TxIncome
}

func firstNonEmpty(rows []FlatRow, idx []int, get func(FlatRow) Field) string {
	for _, i := range idx {
		if v := get(rows[i]).String(); v != "" {
			return v
		}
	}
	return ""
}

// buildTransaction turns one txid group into a validated transaction.
// Warnings are non-fatal notes, such as a dropped posted_ts.
func buildTransaction(rows []FlatRow, g group, opts Options) (*ledger.Transaction, []string, *RowError) {
	fail := func(row int, err error) (*ledger.Transaction, []string, *RowError) {
		return nil, nil, &RowError{Row: row, TxID: g.txid, Err: err}
	}

	first := rows[g.rows[0]]
	ts, err := parseDate(first.Date)
	if err != nil {
		return fail(g.rows[0], err)
	}

	var warnings []string
	posted, err := parsePostedTS(first.PostedTS)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("txid %s: %v; posted_ts dropped", g.txid, err))
		posted = nil
	}

	tx := &ledger.Transaction{
		ID:       g.txid,
		TS:       ts,
		PostedTS: posted,
		Source:   firstNonEmpty(rows, g.rows, func(r FlatRow) Field { return r.Source }),
		Payee:    firstNonEmpty(rows, g.rows, func(r FlatRow) Field { return r.Payee }),
		Memo:     firstNonEmpty(rows, g.rows, func(r FlatRow) Field { return r.Memo }),
		Status:   firstNonEmpty(rows, g.rows, func(r FlatRow) Field { return r.Status }),
	}
	if tx.Source == "" {
		tx.Source = opts.Source
		if tx.Source == "" {
			tx.Source = DefaultSource
		}
	}
	if tx.Status == "" {
		tx.Status = DefaultStatus
	}

	seenRef := make(map[ledger.ExternalRef]bool)
	for _, i := range g.rows {
		r := rows[i]
		leg, err := buildLeg(r)
		if err != nil {
			return fail(i, err)
		}
		tx.Legs = append(tx.Legs, leg)

		if !r.Ext1Kind.Empty() && !r.Ext1Val.Empty() {
			ref := ledger.ExternalRef{Kind: r.Ext1Kind.String(), Value: r.Ext1Val.String()}
			if !seenRef[ref] {
				seenRef[ref] = true
				tx.ExternalRefs = append(tx.ExternalRefs, ref)
			}
		}
	}

	if raw := firstNonEmpty(rows, g.rows, func(r FlatRow) Field { return r.TxType }); raw != "" {
		t, err := ledger.ParseTxType(raw)
		if err != nil {
			return fail(g.rows[0], err)
		}
		tx.TxType = t
	}
	if tx.TxType == "" {
		tx.TxType = opts.TxType
	}
	if tx.TxType == "" {
		tx.TxType = defaultTxType(tx.Legs[0].Direction)
	}

	if err := ledger.CheckBalance(tx.Legs); err != nil {
		if !errors.Is(err, ledger.ErrUnbalancedTransaction) {
			return fail(g.rows[0], err)
		}
		category := firstNonEmpty(rows, g.rows, func(r FlatRow) Field { return r.CategoryID })
		legs, err := backfillPnL(tx.ID, tx.Legs, tx.TxType, category)
		if err != nil {
			return fail(g.rows[0], err)
		}
		tx.Legs = legs
	}

	if opts.Reclassify {
		c := ledger.DefaultClassifier
		if opts.Classifier != nil {
			c = *opts.Classifier
		}
		tx.TxType = c.Classify(tx.Legs)
	}

	if err := tx.Validate(); err != nil {
		return fail(g.rows[0], err)
	}
	return tx, warnings, nil
}

// Preview is the normalized form of a batch before persistence.
type Preview struct {
	Transactions []*ledger.Transaction
	Errors       []RowError
	Warnings     []string
}

// Build normalizes rows into transactions without touching storage.
func Build(rows []FlatRow, opts Options) Preview {
	groups, errs := groupRows(rows, opts)
	p := Preview{Errors: errs}
	for _, g := range groups {
		tx, warnings, rowErr := buildTransaction(rows, g, opts)
		p.Warnings = append(p.Warnings, warnings...)
		if rowErr != nil {
			p.Errors = append(p.Errors, *rowErr)
			continue
		}
		p.Transactions = append(p.Transactions, tx)
	}
	return p
}

// Total sums the magnitudes of the P&L legs by currency or asset.
func (p Preview) Total() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, tx := range p.Transactions {
		for _, l := range tx.Legs {
			if l.IsPnL() {
				out[l.Amount.Unit()] = out[l.Amount.Unit()].Add(l.Amount.Magnitude())
			}
		}
	}
	return out
}
