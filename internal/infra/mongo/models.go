package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names.
const (
	CollLedger           = "capital_ledger"
	CollEnvelopes        = "capital_envelopes"
	CollAccounts         = "capital_accounts"
	CollDocuments        = "documents"
	CollRuns             = "doc_extraction_runs"
	CollBlobs            = "blobs"
	CollPrompts          = "ai_prompts"
	CollSchemaMigrations = "schema_migrations"
)

type transactionDoc struct {
	ID           string           `bson:"_id"`
	TS           time.Time        `bson:"ts"`
	PostedTS     *time.Time       `bson:"posted_ts,omitempty"`
	Source       string           `bson:"source"`
	Payee        string           `bson:"payee,omitempty"`
	Memo         string           `bson:"memo,omitempty"`
	Status       string           `bson:"status,omitempty"`
	Reconciled   bool             `bson:"reconciled"`
	ExternalRefs []externalRefDoc `bson:"external_refs,omitempty"`
	Legs         []legDoc         `bson:"legs"`
	TxType       string           `bson:"tx_type,omitempty"` // absent until classified
}

type externalRefDoc struct {
	Kind  string `bson:"kind"`
	Value string `bson:"value"`
}

type legDoc struct {
	AccountID   string    `bson:"account_id"`
	Direction   string    `bson:"direction"`
	Amount      amountDoc `bson:"amount"`
	FX          *fxDoc    `bson:"fx,omitempty"`
	CategoryID  string    `bson:"category_id,omitempty"` // P&L legs only
	FeeOfLegIdx *int      `bson:"fee_of_leg_idx,omitempty"`
	Notes       string    `bson:"notes,omitempty"`
}

// amountDoc is the tagged leg amount: {kind: "Fiat", currency, amount} or
// {kind: "Crypto", asset, quantity}.
type amountDoc struct {
	Kind     string                `bson:"kind"`
	Currency string                `bson:"currency,omitempty"`
	Amount   *primitive.Decimal128 `bson:"amount,omitempty"`
	Asset    string                `bson:"asset,omitempty"`
	Quantity *primitive.Decimal128 `bson:"quantity,omitempty"`
}

type fxDoc struct {
	To   string               `bson:"to"`
	Rate primitive.Decimal128 `bson:"rate"`
}

type accountDoc struct {
	ID              string      `bson:"_id"`
	DisplayName     string      `bson:"display_name"`
	DisplayCurrency string      `bson:"display_currency"`
	Metadata        metadataDoc `bson:"metadata"`
}

type metadataDoc struct {
	Kind    string      `bson:"kind"`
	Network *networkDoc `bson:"network,omitempty"` // crypto_wallet only
}

type networkDoc struct {
	Kind      string `bson:"kind"`
	ChainName string `bson:"chain_name,omitempty"`
	ChainID   int64  `bson:"chain_id,omitempty"`
}

type moneyDoc struct {
	Amount   primitive.Decimal128 `bson:"amount"`
	Currency string               `bson:"currency"`
}

type envelopeDoc struct {
	ID            string                `bson:"_id"`
	Name          string                `bson:"name"`
	Kind          string                `bson:"kind"`
	Status        string                `bson:"status"`
	Funding       *fundingDoc           `bson:"funding,omitempty"`
	Rollover      rolloverDoc           `bson:"rollover"`
	Balance       moneyDoc              `bson:"balance"`
	PeriodLimit   *moneyDoc             `bson:"period_limit,omitempty"`
	LastPeriod    string                `bson:"last_period,omitempty"`
	AllowNegative bool                  `bson:"allow_negative"`
	MinBalance    *primitive.Decimal128 `bson:"min_balance,omitempty"`
	DeficitPolicy string                `bson:"deficit_policy"`
	UpdatedAt     time.Time             `bson:"updated_at"`
}

type fundingDoc struct {
	Amount    moneyDoc `bson:"amount"`
	Frequency string   `bson:"frequency"`
}

type rolloverDoc struct {
	Kind      string                `bson:"kind"`
	Cap       *moneyDoc             `bson:"cap,omitempty"`
	KeepRatio *primitive.Decimal128 `bson:"keep_ratio,omitempty"` // Decay only
}

type documentDoc struct {
	ID                    string    `bson:"_id"`
	BlobID                string    `bson:"blob_id"`
	Namespace             string    `bson:"namespace"`
	Kind                  string    `bson:"kind"`
	Title                 string    `bson:"title,omitempty"`
	MIMEType              string    `bson:"mime_type,omitempty"`
	LatestExtractionRunID string    `bson:"latest_extraction_run_id,omitempty"`
	CreatedAt             time.Time `bson:"created_at"`
}

type runDoc struct {
	ID         string         `bson:"_id"`
	DocID      string         `bson:"doc_id"`
	Kind       string         `bson:"kind"`
	Model      string         `bson:"model"`
	Prompt     string         `bson:"prompt"`
	Metadata   map[string]any `bson:"metadata,omitempty"`
	Status     string         `bson:"status"`
	Error      string         `bson:"error,omitempty"`
	Result     *resultDoc     `bson:"result,omitempty"`
	CreatedAt  time.Time      `bson:"created_at"`
	FinishedAt *time.Time     `bson:"finished_at,omitempty"`
}

type resultDoc struct {
	Rows       []map[string]any `bson:"rows"`
	Quality    string           `bson:"quality,omitempty"`
	Confidence float64          `bson:"confidence,omitempty"`
}

type blobDoc struct {
	ID          string    `bson:"_id"`
	SHA256      string    `bson:"sha256"`
	Size        int64     `bson:"size"`
	ContentType string    `bson:"content_type,omitempty"`
	Data        []byte    `bson:"data"`
	CreatedAt   time.Time `bson:"created_at"`
}

type promptDoc struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	Version   int       `bson:"version"`
	Model     string    `bson:"model,omitempty"`
	Template  string    `bson:"template"`
	CreatedAt time.Time `bson:"created_at"`
}

type migrationDoc struct {
	Version   int       `bson:"_id"`
	Name      string    `bson:"name"`
	Checksum  string    `bson:"checksum"`
	AppliedAt time.Time `bson:"applied_at"`
	AppliedBy string    `bson:"applied_by,omitempty"`
}
