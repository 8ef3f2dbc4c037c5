package extraction_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/infra/memory"
	"github.com/wyat/capital/internal/ledger"
)

// mockExtractor is a mock implementation of extraction.Extractor.
type mockExtractor struct {
	ExtractFunc func(ctx context.Context, req extraction.Request) (*extraction.Result, error)
	gotPrompt   string
}

func (m *mockExtractor) Model() string { return "mock-model" }

func (m *mockExtractor) Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
	m.gotPrompt = req.Prompt
	return m.ExtractFunc(ctx, req)
}

func statementResult() *extraction.Result {
	return &extraction.Result{
		Quality:    "good",
		Confidence: 0.9,
		Rows: []map[string]any{
			{"txid": "s1", "date": "2024-04-01", "direction": "credit", "kind": "fiat", "ccy_or_asset": "HKD", "amount_or_qty": 78.0, "category_id": "env_dining"},
			{"txid": "s2", "date": "2024-04-02", "account_id": "za.savings", "direction": "Debit", "kind": "Fiat", "ccy_or_asset": "HKD", "amount_or_qty": "1,000", "category_id": "env_interest", "payee": nil},
		},
	}
}

func TestPrepare(t *testing.T) {
	prepared, err := extraction.Prepare(statementResult(), extraction.AdapterOptions{DefaultAccountID: "za.main"})
	require.NoError(t, err)
	require.Len(t, prepared.Request.Rows, 2)
	assert.Equal(t, "za.main", prepared.Request.Rows[0].AccountID.String())
	assert.Equal(t, "za.savings", prepared.Request.Rows[1].AccountID.String())
	assert.Empty(t, prepared.Preview.Errors)
	assert.Len(t, prepared.Preview.Transactions, 2)
	assert.Equal(t, "good", prepared.Quality)
}

func TestPrepare_MissingAccountNoDefault(t *testing.T) {
	prepared, err := extraction.Prepare(statementResult(), extraction.AdapterOptions{})
	require.NoError(t, err)
	require.Len(t, prepared.Request.Rows, 1)
	require.Len(t, prepared.Preview.Errors, 1)
	assert.Contains(t, prepared.Preview.Errors[0].Error(), `"s1"`)
}

func TestPrepare_RowErrorsPointAtExtractedRows(t *testing.T) {
	res := &extraction.Result{
		Rows: []map[string]any{
			{"txid": "a", "date": "2024-04-01", "direction": "Credit", "kind": "Fiat", "ccy_or_asset": "HKD", "amount_or_qty": "10", "category_id": "env_dining"},
			{"txid": "b", "date": "2024-04-02", "account_id": "za.main", "direction": "sideways", "kind": "Fiat", "ccy_or_asset": "HKD", "amount_or_qty": "20"},
			{"txid": "c", "date": "2024-04-03", "account_id": "za.main", "direction": "Credit", "kind": "Fiat", "ccy_or_asset": "HKD", "amount_or_qty": "30", "category_id": "env_dining"},
		},
	}

	prepared, err := extraction.Prepare(res, extraction.AdapterOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, prepared.SourceRows)
	require.Len(t, prepared.Preview.Errors, 2)

	byTxID := map[string]int{}
	for _, e := range prepared.Preview.Errors {
		byTxID[e.TxID] = e.Row
	}
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, byTxID)
	assert.Len(t, prepared.Preview.Transactions, 1)
}

func TestExtractDocument_SummaryRowsPointAtExtractedRows(t *testing.T) {
	ext := &mockExtractor{ExtractFunc: func(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
		return &extraction.Result{Rows: []map[string]any{
			{"txid": "a", "date": "2024-04-01", "account_id": "za.main", "direction": "Credit", "kind": "Fiat", "ccy_or_asset": "HKD", "amount_or_qty": "10", "category_id": "env_dining"},
			{"txid": "b", "date": "2024-04-02", "account_id": "za.main", "direction": "sideways", "kind": "Fiat", "ccy_or_asset": "HKD", "amount_or_qty": "20"},
		}}, nil
	}}
	_, deps, doc := setup(t, ext)
	deps.Adapter.DefaultAccountID = ""

	state, err := extraction.ExtractDocument(context.Background(), deps, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Summary)
	require.Len(t, state.Summary.Errors, 1)
	assert.Equal(t, "b", state.Summary.Errors[0].TxID)
	assert.Equal(t, 1, state.Summary.Errors[0].Row)
}

func setup(t *testing.T, ext *mockExtractor) (*memory.Store, *extraction.Deps, *extraction.Document) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	deps := &extraction.Deps{
		Docs:      store,
		Blobs:     store,
		Prompts:   store,
		Extractor: ext,
		Importer:  importer.New(store),
		Adapter:   extraction.AdapterOptions{DefaultAccountID: "za.main", Import: importer.Options{Reclassify: true}},
	}
	doc, err := extraction.CreateDocument(ctx, store, store, extraction.NewDocument{Title: "April", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	return store, deps, doc
}

func TestExtractDocument(t *testing.T) {
	ctx := context.Background()
	ext := &mockExtractor{ExtractFunc: func(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
		if string(req.Data) != "%PDF-1.4" {
			return nil, errors.New("wrong bytes")
		}
		return statementResult(), nil
	}}
	store, deps, doc := setup(t, ext)
	require.NoError(t, store.SetPrompt(ctx, extraction.DefaultKind, "custom prompt"))

	state, err := extraction.ExtractDocument(ctx, deps, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "custom prompt", ext.gotPrompt)
	require.NotNil(t, state.Summary)
	assert.Equal(t, 2, state.Summary.Inserted)

	run, err := store.GetRun(ctx, state.RunID)
	require.NoError(t, err)
	assert.Equal(t, extraction.RunSucceeded, run.Status)
	assert.Equal(t, "mock-model", run.Model)
	assert.NotNil(t, run.FinishedAt)

	stored, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, state.RunID, stored.LatestExtractionRunID)

	tx, err := store.GetTransaction(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxSpending, tx.TxType)
}

func TestExtractDocument_MarksRunFailed(t *testing.T) {
	ctx := context.Background()
	ext := &mockExtractor{ExtractFunc: func(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
		return nil, errors.New("quota exceeded")
	}}
	store, deps, doc := setup(t, ext)

	state, err := extraction.ExtractDocument(ctx, deps, doc.ID)
	require.Error(t, err)
	assert.Equal(t, extraction.DefaultPrompt, ext.gotPrompt)

	run, err := store.GetRun(ctx, state.RunID)
	require.NoError(t, err)
	assert.Equal(t, extraction.RunFailed, run.Status)
	assert.Contains(t, run.Error, "quota exceeded")
}

func TestExtractDocument_UnknownDocument(t *testing.T) {
	_, deps, _ := setup(t, &mockExtractor{})
	_, err := extraction.ExtractDocument(context.Background(), deps, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
