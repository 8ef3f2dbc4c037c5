package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/api"
	"github.com/wyat/capital/internal/api/handlers"
	"github.com/wyat/capital/internal/api/middleware"
	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/infra/memory"
	"github.com/wyat/capital/internal/jobs/inmemory"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
	"github.com/wyat/capital/internal/seed"
)

const testKey = "s3cret"

type fixture struct {
	store  *memory.Store
	jobs   *inmemory.Store
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	reg := ledger.NewRegistry(store)
	envs := envelope.NewService(store)
	_, err := seed.SeedAccounts(ctx, reg, seed.Accounts())
	require.NoError(t, err)
	_, err = seed.SeedEnvelopes(ctx, envs, seed.FamilyBucket())
	require.NoError(t, err)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, jobStore)
	t.Cleanup(func() { _ = queue.Close() })

	log := logger.Nop()
	im := importer.New(store, importer.WithRegistry(reg), importer.WithEnvelopes(envs))
	return &fixture{
		store: store,
		jobs:  jobStore,
		router: api.NewRouter(api.Config{
			Capital:   handlers.NewCapitalHandler(im, store, envs, log),
			Documents: handlers.NewDocumentsHandler(store, store, queue, log),
			Jobs:      handlers.NewJobsHandler(jobStore, log),
			APIKey:    testKey,
			Log:       log,
		}),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(middleware.APIKeyHeader, testKey)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/capital/envelopes", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestImportAppliesEnvelopes(t *testing.T) {
	f := newFixture(t)
	body := `{
		"rows": [{"txid": "t1", "date": "2024-06-03", "payee": "Whole Foods", "account_id": "chase.sapphire",
		          "direction": "Credit", "kind": "Fiat", "ccy_or_asset": "USD", "amount_or_qty": "42.50",
		          "category_id": "env_groceries"}],
		"options": {"reclassify": true, "apply_envelopes": true}
	}`

	rec := f.do(t, http.MethodPost, "/api/capital/import", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	summary := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, summary["inserted"])
	assert.EqualValues(t, 1, summary["envelope_updates"])

	rec = f.do(t, http.MethodPost, "/api/capital/import", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["duplicates"])

	rec = f.do(t, http.MethodGet, "/api/capital/envelopes/env_groceries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "-42.5", decode[map[string]any](t, rec)["balance"])

	rec = f.do(t, http.MethodGet, "/api/capital/transactions/t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tx := decode[map[string]any](t, rec)
	assert.Equal(t, "spending", tx["tx_type"])
	assert.Len(t, tx["legs"], 2)

	rec = f.do(t, http.MethodGet, "/api/capital/transactions?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]any](t, rec), 1)
}

func TestImportRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		path string
		body string
	}{
		{"not json", "/api/capital/import", "{"},
		{"no rows", "/api/capital/import", `{"rows": []}`},
		{"bad tx type", "/api/capital/import", `{"rows": [{"txid": "x"}], "options": {"tx_type": "gift"}}`},
		{"bad limit", "/api/capital/transactions?limit=-1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodPost
			if tt.body == "" {
				method = http.MethodGet
			}
			rec := f.do(t, method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEnvelopeMoves(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBal    string
	}{
		{"credit defaults currency", "/api/capital/envelopes/env_rent/credit", `{"amount": "100"}`, http.StatusOK, "100"},
		{"debit", "/api/capital/envelopes/env_rent/debit", `{"amount": "40", "currency": "USD"}`, http.StatusOK, "60"},
		{"insufficient funds", "/api/capital/envelopes/env_rent/debit", `{"amount": "61"}`, http.StatusConflict, ""},
		{"below floor", "/api/capital/envelopes/env_groceries/debit", `{"amount": "200.01"}`, http.StatusConflict, ""},
		{"currency mismatch", "/api/capital/envelopes/env_rent/credit", `{"amount": "1", "currency": "HKD"}`, http.StatusBadRequest, ""},
		{"negative amount", "/api/capital/envelopes/env_rent/credit", `{"amount": "-1"}`, http.StatusBadRequest, ""},
		{"bad amount", "/api/capital/envelopes/env_rent/credit", `{"amount": "lots"}`, http.StatusBadRequest, ""},
		{"unknown envelope", "/api/capital/envelopes/env_yacht/credit", `{"amount": "1", "currency": "USD"}`, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBal != "" {
				assert.Equal(t, tt.wantBal, decode[map[string]any](t, rec)["balance"])
			}
		})
	}
}

func TestStartPeriod(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/capital/envelopes/period", `{"year": 2024, "month": 6}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "2024-06", resp["period"])
	assert.Len(t, resp["results"], len(seed.FamilyBucket()))

	rec = f.do(t, http.MethodGet, "/api/capital/envelopes/env_rent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[map[string]any](t, rec)
	assert.Equal(t, "2024-06", env["last_period"])
	assert.Equal(t, "2500", env["balance"])

	rec = f.do(t, http.MethodPost, "/api/capital/envelopes/period", `{"year": 2024, "month": 13}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentExtractionFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/documents?filename=statements/june.pdf", "%PDF-1.4 fake")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	docID := decode[map[string]string](t, rec)["document_id"]
	require.NotEmpty(t, docID)

	doc, err := f.store.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "june.pdf", doc.Title)

	rec = f.do(t, http.MethodPost, "/api/documents/"+docID+"/extract?preview=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decode[map[string]string](t, rec)["job_id"]

	rec = f.do(t, http.MethodGet, "/api/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[map[string]any](t, rec)
	assert.Equal(t, docID, job["document_id"])
	assert.Equal(t, true, job["preview_only"])

	rec = f.do(t, http.MethodGet, "/api/jobs?document_id="+docID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["count"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/documents/missing/extract", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/missing", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/documents", "").Code)
}
