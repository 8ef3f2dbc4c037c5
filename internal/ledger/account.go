package ledger

import (
	"fmt"
	"strings"

	"github.com/wyat/capital/internal/money"
)

// Account is a real balance-sheet account.
type Account struct {
	ID              string
	DisplayName     string
	DisplayCurrency money.Currency
	Metadata        AccountMetadata
}

// AccountMetadata is the tagged account type.
type AccountMetadata interface {
	Kind() string
	isAccountMetadata()
}

type (
	Checking     struct{}
	Savings      struct{}
	CreditCard   struct{}
	CEX          struct{}
	Trust        struct{}
	CryptoWallet struct{ Network Network }
)

func (Checking) Kind() string     { return "checking" }
func (Savings) Kind() string      { return "savings" }
func (CreditCard) Kind() string   { return "credit" }
func (CEX) Kind() string          { return "cex" }
func (Trust) Kind() string        { return "trust" }
func (CryptoWallet) Kind() string { return "crypto_wallet" }

func (Checking) isAccountMetadata()     {}
func (Savings) isAccountMetadata()      {}
func (CreditCard) isAccountMetadata()   {}
func (CEX) isAccountMetadata()          {}
func (Trust) isAccountMetadata()        {}
func (CryptoWallet) isAccountMetadata() {}

// Network identifies the chain a crypto wallet lives on.
type Network interface {
	Kind() string
	isNetwork()
}

type (
	EVM struct {
		ChainName string
		ChainID   int64
	}
	Solana  struct{}
	Bitcoin struct{}
)

func (EVM) Kind() string     { return "evm" }
func (Solana) Kind() string  { return "solana" }
func (Bitcoin) Kind() string { return "bitcoin" }

func (EVM) isNetwork()     {}
func (Solana) isNetwork()  {}
func (Bitcoin) isNetwork() {}

// MetadataFromKind builds a non-wallet metadata value from its kind name.
// Crypto wallets need a network and go through CryptoWallet directly.
func MetadataFromKind(kind string) (AccountMetadata, error) {
	switch strings.ToLower(kind) {
	case "checking":
		return Checking{}, nil
	case "savings":
		return Savings{}, nil
	case "credit":
		return CreditCard{}, nil
	case "cex":
		return CEX{}, nil
	case "trust":
		return Trust{}, nil
	case "crypto_wallet":
		return nil, fmt.Errorf("MetadataFromKind: crypto_wallet requires a network")
	default:
		return nil, &InvalidEnumError{Field: "account kind", Value: kind}
	}
}

// Validate checks the account can be registered.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if a.ID == PnLAccountID {
		return fmt.Errorf("account %q: %w", a.ID, ErrReservedAccount)
	}
	if !a.DisplayCurrency.Valid() {
		return fmt.Errorf("account %s: %w: %q", a.ID, money.ErrUnknownCurrency, a.DisplayCurrency)
	}
	if a.Metadata == nil {
		return fmt.Errorf("account %s: metadata is required", a.ID)
	}
	if w, ok := a.Metadata.(CryptoWallet); ok && w.Network == nil {
		return fmt.Errorf("account %s: crypto wallet without network", a.ID)
	}
	return nil
}
