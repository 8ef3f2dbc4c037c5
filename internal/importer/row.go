// Package importer normalizes flat transaction rows into balanced
// multi-leg ledger transactions and persists them.
package importer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/ledger"
)

// Field is a loosely typed row value. It accepts JSON strings, numbers,
// booleans and null, and keeps the textual form.
type Field string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = Field(str)
	default:
		*f = Field(s)
	}
	return nil
}

// FieldOf coerces a decoded JSON value into a Field.
func FieldOf(v any) Field {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return Field(x)
	case json.Number:
		return Field(x.String())
	case float64:
		return Field(strconv.FormatFloat(x, 'f', -1, 64))
	case float32:
		return Field(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case int:
		return Field(strconv.Itoa(x))
	case int64:
		return Field(strconv.FormatInt(x, 10))
	case bool:
		return Field(strconv.FormatBool(x))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Field(fmt.Sprint(x))
		}
		return Field(b)
	}
}

// String returns the trimmed value.
func (f Field) String() string { return strings.TrimSpace(string(f)) }

// Empty reports whether the trimmed value is empty.
func (f Field) Empty() bool { return f.String() == "" }

// Decimal parses a lenient numeric value: whitespace is trimmed and
// thousands separators are dropped.
func (f Field) Decimal() (decimal.Decimal, error) {
	s := strings.ReplaceAll(f.String(), ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", f.String())
	}
	return d, nil
}

// FlatRow is the single-leg wire representation of a transaction row.
type FlatRow struct {
	TxID        Field `json:"txid"`
	Date        Field `json:"date"`
	PostedTS    Field `json:"posted_ts,omitempty"`
	Source      Field `json:"source,omitempty"`
	Payee       Field `json:"payee,omitempty"`
	Memo        Field `json:"memo,omitempty"`
	AccountID   Field `json:"account_id"`
	Direction   Field `json:"direction"`
	Kind        Field `json:"kind"`
	CcyOrAsset  Field `json:"ccy_or_asset"`
	AmountOrQty Field `json:"amount_or_qty"`
	Price       Field `json:"price,omitempty"`
	PriceCcy    Field `json:"price_ccy,omitempty"`
	CategoryID  Field `json:"category_id,omitempty"`
	Status      Field `json:"status,omitempty"`
	TxType      Field `json:"tx_type,omitempty"`
	Ext1Kind    Field `json:"ext1_kind,omitempty"`
	Ext1Val     Field `json:"ext1_val,omitempty"`
}

// LegKind selects the amount variant of a row.
type LegKind string

const (
	KindFiat   LegKind = "Fiat"
	KindCrypto LegKind = "Crypto"
)

// ParseLegKind normalizes a kind case-insensitively.
func ParseLegKind(s string) (LegKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fiat":
		return KindFiat, nil
	case "crypto":
		return KindCrypto, nil
	default:
		return "", &ledger.InvalidEnumError{Field: "kind", Value: s}
	}
}

const dateLayout = "2006-01-02"

var postedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
}

// parseDate reads a YYYY-MM-DD date at midnight UTC.
func parseDate(f Field) (time.Time, error) {
	t, err := time.Parse(dateLayout, f.String())
	if err != nil {
		return time.Time{}, &ledger.InvalidDateTimeError{Field: "date", Value: f.String()}
	}
	return t.UTC(), nil
}

func parsePostedTS(f Field) (*time.Time, error) {
	if f.Empty() {
		return nil, nil
	}
	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, f.String()); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &ledger.InvalidDateTimeError{Field: "posted_ts", Value: f.String()}
}
