package envelope

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
	"github.com/wyat/capital/internal/money"
)

// Repository persists envelopes. GetEnvelope returns ErrNotFound for
// unknown ids.
type Repository interface {
	InsertEnvelope(ctx context.Context, e *Envelope) error
	GetEnvelope(ctx context.Context, id string) (*Envelope, error)
	ListEnvelopes(ctx context.Context) ([]*Envelope, error)
	SaveEnvelope(ctx context.Context, e *Envelope) error
}

// Service serializes envelope mutations per id and persists the result.
type Service struct {
	repo Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a Service over repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, locks: make(map[string]*sync.Mutex)}
}

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Create validates and inserts a new envelope.
func (s *Service) Create(ctx context.Context, e *Envelope) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	if err := s.repo.InsertEnvelope(ctx, e); err != nil {
		return fmt.Errorf("Create: inserting envelope %s: %w", e.ID, err)
	}
	return nil
}

// Get returns an envelope by id.
func (s *Service) Get(ctx context.Context, id string) (*Envelope, error) {
	e, err := s.repo.GetEnvelope(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return e, nil
}

// List returns all envelopes.
func (s *Service) List(ctx context.Context) ([]*Envelope, error) {
	envs, err := s.repo.ListEnvelopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return envs, nil
}

// mutate loads the envelope under its lock, applies fn and saves it when
// fn reports a change.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Envelope) (bool, error)) (*Envelope, error) {
	unlock := s.lock(id)
	defer unlock()

	e, err := s.repo.GetEnvelope(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := fn(e)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.repo.SaveEnvelope(ctx, e); err != nil {
			return nil, fmt.Errorf("saving envelope %s: %w", id, err)
		}
	}
	return e, nil
}

// Credit adds m to envelope id.
func (s *Service) Credit(ctx context.Context, id string, m money.Money) (*Envelope, error) {
	e, err := s.mutate(ctx, id, func(e *Envelope) (bool, error) {
		return true, e.Credit(m)
	})
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}
	return e, nil
}

// Debit subtracts m from envelope id.
func (s *Service) Debit(ctx context.Context, id string, m money.Money) (*Envelope, error) {
	e, err := s.mutate(ctx, id, func(e *Envelope) (bool, error) {
		return true, e.Debit(m)
	})
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}
	return e, nil
}

// StartPeriod advances envelope id to (year, month).
func (s *Service) StartPeriod(ctx context.Context, id string, year, month int) (*Envelope, error) {
	e, err := s.mutate(ctx, id, func(e *Envelope) (bool, error) {
		return e.StartNewPeriod(year, month)
	})
	if err != nil {
		return nil, fmt.Errorf("StartPeriod: %w", err)
	}
	return e, nil
}

// PeriodResult is the outcome of advancing one envelope.
type PeriodResult struct {
	EnvelopeID string
	Balance    money.Money
	Err        error
}

// StartPeriodAll advances every envelope. A failing envelope does not stop
// the others.
func (s *Service) StartPeriodAll(ctx context.Context, year, month int) ([]PeriodResult, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "envelope")

	envs, err := s.repo.ListEnvelopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("StartPeriodAll: listing envelopes: %w", err)
	}

	results := make([]PeriodResult, 0, len(envs))
	for _, env := range envs {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("StartPeriodAll: %w", err)
		}
		updated, err := s.StartPeriod(ctx, env.ID, year, month)
		res := PeriodResult{EnvelopeID: env.ID, Err: err}
		if err != nil {
			log.Error().Err(err).Str("envelope_id", env.ID).Msg("failed to start period")
		} else {
			res.Balance = updated.Balance
			log.Info().
				Str("envelope_id", env.ID).
				Str("period", updated.LastPeriod).
				Str("balance", updated.Balance.String()).
				Msg("period started")
		}
		results = append(results, res)
	}
	return results, nil
}

// Apply replays a classified transaction against the envelope named by its
// P&L leg category. Spending and fee_only debit the envelope, income
// credits it. Other transaction types and uncategorized legs are skipped.
func (s *Service) Apply(ctx context.Context, tx *ledger.Transaction) (bool, error) {
	var credit bool
	switch tx.TxType {
	case ledger.TxSpending, ledger.TxFeeOnly:
	case ledger.TxIncome:
		credit = true
	default:
		return false, nil
	}
	leg := tx.PnLLeg()
	if leg == nil || leg.CategoryID == "" {
		return false, nil
	}
	m, ok := leg.FiatMoney()
	if !ok {
		return false, fmt.Errorf("Apply: tx %s: P&L leg is not fiat", tx.ID)
	}
	m = m.Abs()

	_, err := s.mutate(ctx, leg.CategoryID, func(e *Envelope) (bool, error) {
		amt := m
		if amt.Currency != e.Currency() && leg.FX != nil && leg.FX.To == e.Currency() {
			amt = money.Convert(amt, *leg.FX)
		}
		if credit {
			return true, e.Credit(amt)
		}
		return true, e.Debit(amt)
	})
	if err != nil {
		return false, fmt.Errorf("Apply: tx %s: %w", tx.ID, err)
	}
	return true, nil
}

// IsNotFound reports whether err is an envelope lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
