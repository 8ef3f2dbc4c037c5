package importer

import (
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/money"
)

// CSVSource maps a bank export onto flat rows. Either AmountColumn (signed,
// negative is money out) or the OutColumn/InColumn pair must be set.
type CSVSource struct {
	Name           string
	Currency       money.Currency
	DateColumn     string
	DateLayout     string
	PostedColumn   string
	PayeeColumn    string
	MemoColumn     string
	CategoryColumn string
	AmountColumn   string
	OutColumn      string
	InColumn       string
}

// ChaseCSV reads Chase credit card and checking activity exports.
var ChaseCSV = CSVSource{
	Name:           "chase_csv",
	Currency:       money.USD,
	DateColumn:     "Transaction Date",
	DateLayout:     "01/02/2006",
	PostedColumn:   "Post Date",
	PayeeColumn:    "Description",
	MemoColumn:     "Memo",
	CategoryColumn: "Category",
	AmountColumn:   "Amount",
}

// ZABankCSV reads ZA Bank statement exports.
var ZABankCSV = CSVSource{
	Name:        "za_bank_csv",
	Currency:    money.HKD,
	DateColumn:  "Transaction Date",
	DateLayout:  "2006/01/02",
	PayeeColumn: "Description",
	MemoColumn:  "Reference",
	OutColumn:   "Withdrawal",
	InColumn:    "Deposit",
}

// CSVSourceByName resolves a source by its name.
func CSVSourceByName(name string) (CSVSource, error) {
	switch name {
	case ChaseCSV.Name:
		return ChaseCSV, nil
	case ZABankCSV.Name:
		return ZABankCSV, nil
	default:
		return CSVSource{}, fmt.Errorf("unknown csv source %q", name)
	}
}

// CSVOptions choose the custody account and envelope categories.
type CSVOptions struct {
	AccountID string
	// Categories maps the bank's category column to envelope ids.
	Categories map[string]string
	// DefaultCategory is used for rows without a mapped category.
	DefaultCategory string
}

// ReadCSV parses an export into one custody row per line. The importer
// backfills the P&L leg. Txids are derived from the line content so
// re-reading the same file yields the same ids.
func ReadCSV(r io.Reader, src CSVSource, opts CSVOptions) ([]FlatRow, error) {
	if opts.AccountID == "" {
		return nil, fmt.Errorf("ReadCSV: account id is required")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if name == "" || !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		rows []FlatRow
		seen = make(map[string]int)
		line = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: line %d: %w", line, err)
		}

		date, err := time.Parse(src.DateLayout, get(rec, src.DateColumn))
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: line %d: date %q: %w", line, get(rec, src.DateColumn), err)
		}
		amount, err := csvAmount(src, rec, get)
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: line %d: %w", line, err)
		}
		if amount.IsZero() {
			continue
		}

		dir := "Debit"
		if amount.IsNegative() {
			dir = "Credit"
		}

		category := opts.Categories[get(rec, src.CategoryColumn)]
		if category == "" {
			category = opts.DefaultCategory
		}

		row := FlatRow{
			Date:        Field(date.Format(dateLayout)),
			Source:      Field(src.Name),
			Payee:       Field(get(rec, src.PayeeColumn)),
			Memo:        Field(get(rec, src.MemoColumn)),
			AccountID:   Field(opts.AccountID),
			Direction:   Field(dir),
			Kind:        Field(KindFiat),
			CcyOrAsset:  Field(src.Currency),
			AmountOrQty: Field(amount.Abs().String()),
			CategoryID:  Field(category),
		}
		if posted := get(rec, src.PostedColumn); posted != "" {
			if t, err := time.Parse(src.DateLayout, posted); err == nil {
				row.PostedTS = Field(t.Format(dateLayout))
			}
		}

		key := strings.Join([]string{src.Name, opts.AccountID, string(row.Date), amount.String(), string(row.Payee)}, "|")
		seen[key]++
		row.TxID = Field(csvTxID(src.Name, key, seen[key]))
		row.Ext1Kind = Field(src.Name + "_line")
		row.Ext1Val = Field(fmt.Sprint(line))

		rows = append(rows, row)
	}
	return rows, nil
}

func csvAmount(src CSVSource, rec []string, get func([]string, string) string) (decimal.Decimal, error) {
	parse := func(name string) (decimal.Decimal, error) {
		raw := get(rec, name)
		if raw == "" {
			return decimal.Zero, nil
		}
		return Field(strings.TrimPrefix(raw, "$")).Decimal()
	}

	if src.AmountColumn != "" {
		return parse(src.AmountColumn)
	}
	out, err := parse(src.OutColumn)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", src.OutColumn, err)
	}
	in, err := parse(src.InColumn)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", src.InColumn, err)
	}
	return in.Sub(out.Abs()), nil
}

// csvTxID hashes the line key plus its occurrence so identical lines on the
// same day stay distinct.
func csvTxID(source, key string, n int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s#%d", key, n)))
	return source + "_" + hex.EncodeToString(sum[:8])
}
