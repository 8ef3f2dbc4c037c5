// Package handlers implements the capital HTTP endpoints.
package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wyat/capital/internal/api/middleware"
	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/money"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	var (
		mismatch *money.CurrencyMismatchError
		enum     *ledger.InvalidEnumError
		parse    *ledger.ParseError
		dt       *ledger.InvalidDateTimeError
	)
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, envelope.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, envelope.ErrInsufficientFunds),
		errors.Is(err, envelope.ErrMinBalanceExceeded),
		errors.Is(err, envelope.ErrInactive),
		errors.Is(err, ledger.ErrDuplicate):
		return http.StatusConflict
	case errors.As(err, &mismatch), errors.As(err, &enum), errors.As(err, &parse), errors.As(err, &dt),
		errors.Is(err, ledger.ErrUnbalancedTransaction),
		errors.Is(err, envelope.ErrNegativeAmount),
		errors.Is(err, money.ErrUnknownCurrency):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeErr logs server-side failures and writes the mapped status. Client
// errors echo the message; server errors hide it.
func writeErr(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	log.Info().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, err.Error())
}
