// Package memory provides in-memory repositories for tests, dry runs and
// local development. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/ledger"
)

// Store holds every collection in maps guarded by one lock. Values are
// copied on the way in and out so callers cannot mutate stored state.
type Store struct {
	mu        sync.RWMutex
	txs       map[string]*ledger.Transaction
	accounts  map[string]*ledger.Account
	envelopes map[string]*envelope.Envelope
	documents map[string]*extraction.Document
	runs      map[string]*extraction.Run
	blobs     map[string][]byte
	prompts   map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		txs:       make(map[string]*ledger.Transaction),
		accounts:  make(map[string]*ledger.Account),
		envelopes: make(map[string]*envelope.Envelope),
		documents: make(map[string]*extraction.Document),
		runs:      make(map[string]*extraction.Run),
		blobs:     make(map[string][]byte),
		prompts:   make(map[string]string),
	}
}

// InsertTransaction implements ledger.TransactionRepository.
func (s *Store) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.ID]; exists {
		return fmt.Errorf("transaction %s: %w", tx.ID, ledger.ErrDuplicate)
	}
	s.txs[tx.ID] = tx.Clone()
	return nil
}

// GetTransaction implements ledger.TransactionRepository.
func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.txs[id]
	if !exists {
		return nil, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	return tx.Clone(), nil
}

// ScanTransactions implements ledger.TransactionRepository. Matches are
// snapshotted first so fn may write back to the store.
func (s *Store) ScanTransactions(ctx context.Context, filter ledger.TxFilter, fn func(*ledger.Transaction) error) error {
	s.mu.RLock()
	var matched []*ledger.Transaction
	for _, tx := range s.txs {
		if filter.Matches(tx) {
			matched = append(matched, tx.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].TS.Equal(matched[j].TS) {
			return matched[i].TS.Before(matched[j].TS)
		}
		return matched[i].ID < matched[j].ID
	})
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	for _, tx := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) updateTx(id string, fn func(*ledger.Transaction)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.txs[id]
	if !exists {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	fn(tx)
	return nil
}

// UpdateTxType implements ledger.TransactionRepository.
func (s *Store) UpdateTxType(ctx context.Context, id string, t ledger.TxType) error {
	return s.updateTx(id, func(tx *ledger.Transaction) { tx.TxType = t })
}

// UpdateReconciled implements ledger.TransactionRepository.
func (s *Store) UpdateReconciled(ctx context.Context, id string, reconciled bool) error {
	return s.updateTx(id, func(tx *ledger.Transaction) { tx.Reconciled = reconciled })
}

// ReplaceLegs implements ledger.TransactionRepository.
func (s *Store) ReplaceLegs(ctx context.Context, id string, legs []ledger.Leg) error {
	cp := (&ledger.Transaction{Legs: legs}).Clone().Legs
	return s.updateTx(id, func(tx *ledger.Transaction) { tx.Legs = cp })
}

// DeleteTransaction implements ledger.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[id]; !exists {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

func copyAccount(a *ledger.Account) *ledger.Account {
	c := *a
	return &c
}

// InsertAccount implements ledger.AccountRepository.
func (s *Store) InsertAccount(ctx context.Context, a *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("account %s: %w", a.ID, ledger.ErrDuplicate)
	}
	s.accounts[a.ID] = copyAccount(a)
	return nil
}

// ReplaceAccount implements ledger.AccountRepository.
func (s *Store) ReplaceAccount(ctx context.Context, a *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; !exists {
		return fmt.Errorf("account %s: %w", a.ID, ledger.ErrNotFound)
	}
	s.accounts[a.ID] = copyAccount(a)
	return nil
}

// GetAccount implements ledger.AccountRepository.
func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return copyAccount(a), nil
}

// ListAccounts implements ledger.AccountRepository, ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		result = append(result, copyAccount(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// InsertEnvelope implements envelope.Repository.
func (s *Store) InsertEnvelope(ctx context.Context, e *envelope.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.envelopes[e.ID]; exists {
		return fmt.Errorf("envelope %s: %w", e.ID, ledger.ErrDuplicate)
	}
	s.envelopes[e.ID] = e.Clone()
	return nil
}

// GetEnvelope implements envelope.Repository.
func (s *Store) GetEnvelope(ctx context.Context, id string) (*envelope.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.envelopes[id]
	if !exists {
		return nil, &envelope.Error{Kind: envelope.KindNotFound, EnvelopeID: id}
	}
	return e.Clone(), nil
}

// ListEnvelopes implements envelope.Repository, ordered by id.
func (s *Store) ListEnvelopes(ctx context.Context) ([]*envelope.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*envelope.Envelope, 0, len(s.envelopes))
	for _, e := range s.envelopes {
		result = append(result, e.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SaveEnvelope implements envelope.Repository.
func (s *Store) SaveEnvelope(ctx context.Context, e *envelope.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.envelopes[e.ID]; !exists {
		return &envelope.Error{Kind: envelope.KindNotFound, EnvelopeID: e.ID}
	}
	s.envelopes[e.ID] = e.Clone()
	return nil
}

// Ensure Store implements the repository interfaces.
var (
	_ ledger.TransactionRepository = (*Store)(nil)
	_ ledger.AccountRepository     = (*Store)(nil)
	_ envelope.Repository          = (*Store)(nil)
)
