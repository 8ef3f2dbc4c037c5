package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/api/middleware"
	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/money"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// CapitalHandler serves ledger imports, transaction listing and envelope
// operations.
type CapitalHandler struct {
	importer  *importer.Importer
	txs       ledger.TransactionRepository
	envelopes *envelope.Service
	log       zerolog.Logger
}

// NewCapitalHandler creates a new capital handler.
func NewCapitalHandler(im *importer.Importer, txs ledger.TransactionRepository, envelopes *envelope.Service, log zerolog.Logger) *CapitalHandler {
	return &CapitalHandler{importer: im, txs: txs, envelopes: envelopes, log: log}
}

type importOptions struct {
	Source         string `json:"source"`
	TxType         string `json:"tx_type"`
	Reclassify     bool   `json:"reclassify"`
	GenerateIDs    bool   `json:"generate_ids"`
	ApplyEnvelopes bool   `json:"apply_envelopes"`
	DryRun         bool   `json:"dry_run"`
}

type importRequest struct {
	Rows    []importer.FlatRow `json:"rows"`
	Options importOptions      `json:"options"`
}

// decodeImport accepts either {"rows": [...], "options": {...}} or a bare
// array of rows.
func decodeImport(r *http.Request) (*importRequest, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var req importRequest
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Rows); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	if v, err := strconv.ParseBool(r.URL.Query().Get("dry_run")); err == nil {
		req.Options.DryRun = v
	}
	return &req, nil
}

// Import handles POST /api/capital/import.
func (h *CapitalHandler) Import(w http.ResponseWriter, r *http.Request) {
	req, err := decodeImport(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Rows) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No rows")
		return
	}

	opts := importer.Options{
		Source:         req.Options.Source,
		Reclassify:     req.Options.Reclassify,
		GenerateIDs:    req.Options.GenerateIDs,
		ApplyEnvelopes: req.Options.ApplyEnvelopes,
		DryRun:         req.Options.DryRun,
	}
	if req.Options.TxType != "" {
		t, err := ledger.ParseTxType(req.Options.TxType)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.TxType = t
	}

	summary, err := h.importer.Import(r.Context(), req.Rows, opts)
	if err != nil {
		writeErr(w, h.log, err, "Failed to import rows")
		return
	}

	status := http.StatusOK
	if summary.Inserted > 0 {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, newSummaryView(summary))
}

// ListTransactions handles GET /api/capital/transactions.
func (h *CapitalHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultListLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	out := make([]transactionView, 0)
	err := h.txs.ScanTransactions(r.Context(), ledger.TxFilter{Source: q.Get("source"), Limit: limit}, func(tx *ledger.Transaction) error {
		out = append(out, newTransactionView(tx))
		return nil
	})
	if err != nil {
		writeErr(w, h.log, err, "Failed to list transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// GetTransaction handles GET /api/capital/transactions/{id}.
func (h *CapitalHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.txs.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newTransactionView(tx))
}

// ListEnvelopes handles GET /api/capital/envelopes.
func (h *CapitalHandler) ListEnvelopes(w http.ResponseWriter, r *http.Request) {
	envs, err := h.envelopes.List(r.Context())
	if err != nil {
		writeErr(w, h.log, err, "Failed to list envelopes")
		return
	}
	out := make([]envelopeView, 0, len(envs))
	for _, e := range envs {
		out = append(out, newEnvelopeView(e))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// GetEnvelope handles GET /api/capital/envelopes/{id}.
func (h *CapitalHandler) GetEnvelope(w http.ResponseWriter, r *http.Request) {
	e, err := h.envelopes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err, "Failed to get envelope")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newEnvelopeView(e))
}

type amountRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// parseAmount reads the body amount. A missing currency defaults to the
// envelope's currency.
func (h *CapitalHandler) parseAmount(r *http.Request, id string) (money.Money, error) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return money.Money{}, ledger.Parsef("invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return money.Money{}, ledger.Parsef("invalid amount %q", req.Amount)
	}
	if req.Currency == "" {
		e, err := h.envelopes.Get(r.Context(), id)
		if err != nil {
			return money.Money{}, err
		}
		return money.New(amount, e.Currency()), nil
	}
	c, err := money.ParseCurrency(req.Currency)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(amount, c), nil
}

func (h *CapitalHandler) move(w http.ResponseWriter, r *http.Request, op func(*http.Request, string, money.Money) (*envelope.Envelope, error)) {
	id := chi.URLParam(r, "id")
	m, err := h.parseAmount(r, id)
	if err != nil {
		writeErr(w, h.log, err, "Invalid amount")
		return
	}
	e, err := op(r, id, m)
	if err != nil {
		writeErr(w, h.log, err, "Failed to update envelope")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newEnvelopeView(e))
}

// Credit handles POST /api/capital/envelopes/{id}/credit.
func (h *CapitalHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, func(r *http.Request, id string, m money.Money) (*envelope.Envelope, error) {
		return h.envelopes.Credit(r.Context(), id, m)
	})
}

// Debit handles POST /api/capital/envelopes/{id}/debit.
func (h *CapitalHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, func(r *http.Request, id string, m money.Money) (*envelope.Envelope, error) {
		return h.envelopes.Debit(r.Context(), id, m)
	})
}

type periodRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type periodResultView struct {
	EnvelopeID string `json:"envelope_id"`
	Balance    string `json:"balance,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StartPeriod handles POST /api/capital/envelopes/period. Envelopes already
// at the requested period are left unchanged.
func (h *CapitalHandler) StartPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Year < 1 || req.Month < 1 || req.Month > 12 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid period")
		return
	}

	results, err := h.envelopes.StartPeriodAll(r.Context(), req.Year, req.Month)
	if err != nil {
		writeErr(w, h.log, err, "Failed to start period")
		return
	}

	out := make([]periodResultView, 0, len(results))
	failed := 0
	for _, res := range results {
		v := periodResultView{EnvelopeID: res.EnvelopeID}
		if res.Err != nil {
			failed++
			v.Error = res.Err.Error()
		} else {
			v.Balance = res.Balance.Amount.String()
		}
		out = append(out, v)
	}
	h.log.Info().
		Str("period", envelope.PeriodKey(req.Year, req.Month)).
		Int("envelopes", len(results)).
		Int("failed", failed).
		Msg("Started envelope period")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"period":  envelope.PeriodKey(req.Year, req.Month),
		"results": out,
	})
}
