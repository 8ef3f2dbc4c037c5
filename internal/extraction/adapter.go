package extraction

import (
	"fmt"
	"strings"

	"github.com/wyat/capital/internal/importer"
)

// AdapterOptions configure the mapping from extracted objects to rows.
type AdapterOptions struct {
	// DefaultAccountID fills rows without an account_id.
	DefaultAccountID string
	Import           importer.Options
}

// ImportRequest is a batch ready for importer.Importer.Import.
type ImportRequest struct {
	Rows    []importer.FlatRow
	Options importer.Options
}

// PreparedBatchImport pairs the import request with a dry preview of it.
type PreparedBatchImport struct {
	Request ImportRequest
	Preview importer.Preview
	// Quality and Confidence are carried over from the extraction.
	Quality    string
	Confidence float64
	// SourceRows maps each index of Request.Rows to its index in the
	// extraction result.
	SourceRows []int
}

// remapRows rewrites row numbers of errors raised against Request.Rows so
// they point at the extracted object they came from.
func (p *PreparedBatchImport) remapRows(errs []importer.RowError) {
	for i := range errs {
		if r := errs[i].Row; r >= 0 && r < len(p.SourceRows) {
			errs[i].Row = p.SourceRows[r]
		}
	}
}

// lookup reads a key case-insensitively.
func lookup(obj map[string]any, key string) importer.Field {
	if v, ok := obj[key]; ok {
		return importer.FieldOf(v)
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return importer.FieldOf(v)
		}
	}
	return ""
}

// RowFromObject maps one extracted object onto a flat row.
func RowFromObject(obj map[string]any) importer.FlatRow {
	return importer.FlatRow{
		TxID:        lookup(obj, "txid"),
		Date:        lookup(obj, "date"),
		PostedTS:    lookup(obj, "posted_ts"),
		Source:      lookup(obj, "source"),
		Payee:       lookup(obj, "payee"),
		Memo:        lookup(obj, "memo"),
		AccountID:   lookup(obj, "account_id"),
		Direction:   lookup(obj, "direction"),
		Kind:        lookup(obj, "kind"),
		CcyOrAsset:  lookup(obj, "ccy_or_asset"),
		AmountOrQty: lookup(obj, "amount_or_qty"),
		Price:       lookup(obj, "price"),
		PriceCcy:    lookup(obj, "price_ccy"),
		CategoryID:  lookup(obj, "category_id"),
		Status:      lookup(obj, "status"),
		TxType:      lookup(obj, "tx_type"),
		Ext1Kind:    lookup(obj, "ext1_kind"),
		Ext1Val:     lookup(obj, "ext1_val"),
	}
}

// Prepare converts an extraction result into a batch import. Rows without
// an account and no default are reported and left out of the request.
func Prepare(res *Result, opts AdapterOptions) (*PreparedBatchImport, error) {
	if res == nil {
		return nil, fmt.Errorf("Prepare: nil extraction result")
	}

	var (
		rows    []importer.FlatRow
		source  []int
		rowErrs []importer.RowError
	)
	for i, obj := range res.Rows {
		row := RowFromObject(obj)
		if row.AccountID.Empty() {
			if opts.DefaultAccountID == "" {
				rowErrs = append(rowErrs, importer.RowError{
					Row:  i,
					TxID: row.TxID.String(),
					Err:  fmt.Errorf("account_id missing for txid %q and no default account", row.TxID.String()),
				})
				continue
			}
			row.AccountID = importer.Field(opts.DefaultAccountID)
		}
		rows = append(rows, row)
		source = append(source, i)
	}

	p := &PreparedBatchImport{
		Request:    ImportRequest{Rows: rows, Options: opts.Import},
		Quality:    res.Quality,
		Confidence: res.Confidence,
		SourceRows: source,
	}
	p.Preview = importer.Build(rows, opts.Import)
	p.remapRows(p.Preview.Errors)
	p.Preview.Errors = append(rowErrs, p.Preview.Errors...)
	return p, nil
}
