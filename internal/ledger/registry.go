package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyat/capital/internal/logger"
)

// AccountRepository persists accounts keyed by id.
type AccountRepository interface {
	// InsertAccount fails with ErrDuplicate when the id exists.
	InsertAccount(ctx context.Context, a *Account) error
	// ReplaceAccount overwrites an existing account, ErrNotFound otherwise.
	ReplaceAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
}

// Registry is the keyed collection of real accounts.
type Registry struct {
	repo AccountRepository
}

// NewRegistry wraps a repository.
func NewRegistry(repo AccountRepository) *Registry {
	return &Registry{repo: repo}
}

// Create inserts a new account. A duplicate id returns ErrDuplicate, which
// seeders treat as already done.
func (r *Registry) Create(ctx context.Context, a *Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := r.repo.InsertAccount(ctx, a); err != nil {
		return fmt.Errorf("Registry.Create %s: %w", a.ID, err)
	}
	return nil
}

// Upsert inserts the account or replaces the stored copy in place.
func (r *Registry) Upsert(ctx context.Context, a *Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	err := r.repo.InsertAccount(ctx, a)
	if errors.Is(err, ErrDuplicate) {
		log := logger.FromContext(ctx)
		log.Debug().Str("account_id", a.ID).Msg("Account exists, replacing")
		err = r.repo.ReplaceAccount(ctx, a)
	}
	if err != nil {
		return fmt.Errorf("Registry.Upsert %s: %w", a.ID, err)
	}
	return nil
}

// Lookup returns the account or ErrNotFound. The P&L id never resolves.
func (r *Registry) Lookup(ctx context.Context, id string) (*Account, error) {
	if id == PnLAccountID {
		return nil, fmt.Errorf("Registry.Lookup %s: %w", id, ErrReservedAccount)
	}
	a, err := r.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Registry.Lookup %s: %w", id, err)
	}
	return a, nil
}

// List returns every registered account.
func (r *Registry) List(ctx context.Context) ([]*Account, error) {
	return r.repo.ListAccounts(ctx)
}

// Known reports whether id is a registered account or the P&L account.
func (r *Registry) Known(ctx context.Context, id string) (bool, error) {
	if id == PnLAccountID {
		return true, nil
	}
	_, err := r.repo.GetAccount(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
