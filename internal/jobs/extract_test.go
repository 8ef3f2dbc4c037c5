package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/infra/memory"
	"github.com/wyat/capital/internal/jobs"
)

type mockExtractor struct {
	ExtractFunc func(ctx context.Context, req extraction.Request) (*extraction.Result, error)
}

func (m *mockExtractor) Model() string { return "mock-model" }

func (m *mockExtractor) Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
	return m.ExtractFunc(ctx, req)
}

func newDeps(t *testing.T, ext extraction.Extractor) (*extraction.Deps, string) {
	t.Helper()
	store := memory.NewStore()
	doc, err := extraction.CreateDocument(context.Background(), store, store, extraction.NewDocument{Data: []byte("pdf")})
	require.NoError(t, err)
	return &extraction.Deps{
		Docs:      store,
		Blobs:     store,
		Prompts:   store,
		Extractor: ext,
		Importer:  importer.New(store),
		Adapter:   extraction.AdapterOptions{DefaultAccountID: "za.main"},
	}, doc.ID
}

func TestExtractHandler(t *testing.T) {
	ext := &mockExtractor{ExtractFunc: func(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
		return &extraction.Result{Rows: []map[string]any{
			{"txid": "j1", "date": "2024-04-01", "direction": "Credit", "kind": "Fiat", "ccy_or_asset": "HKD", "amount_or_qty": "42", "category_id": "env_dining"},
		}}, nil
	}}
	deps, docID := newDeps(t, ext)

	job := &jobs.ExtractDocumentJob{JobID: "job-1", DocumentID: docID}
	require.NoError(t, jobs.NewExtractHandler(deps)(context.Background(), job))
	assert.NotEmpty(t, job.RunID)
	assert.Equal(t, 1, job.Inserted)

	again := &jobs.ExtractDocumentJob{JobID: "job-2", DocumentID: docID}
	require.NoError(t, jobs.NewExtractHandler(deps)(context.Background(), again))
	assert.Equal(t, 1, again.Duplicates)
}

func TestExtractHandler_PreviewOnly(t *testing.T) {
	ext := &mockExtractor{ExtractFunc: func(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
		return &extraction.Result{}, nil
	}}
	deps, docID := newDeps(t, ext)

	job := &jobs.ExtractDocumentJob{DocumentID: docID, PreviewOnly: true}
	require.NoError(t, jobs.NewExtractHandler(deps)(context.Background(), job))
	assert.Zero(t, job.Inserted)
	assert.False(t, deps.PreviewOnly, "per-job preview must not leak into shared deps")
}

func TestExtractHandler_Failure(t *testing.T) {
	ext := &mockExtractor{ExtractFunc: func(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
		return nil, errors.New("quota exceeded")
	}}
	deps, docID := newDeps(t, ext)

	job := &jobs.ExtractDocumentJob{DocumentID: docID}
	err := jobs.NewExtractHandler(deps)(context.Background(), job)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.NotEmpty(t, job.RunID)
}
