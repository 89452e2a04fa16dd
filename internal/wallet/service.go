package wallet

import (
	"context"
	"time"

	"github.com/somulo1/chamaledger/internal/ledger"
)

// Service resolves owners to wallets backed by the ledger store.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	Currency string
	AsOf     time.Time
}

// Resolve returns the owner's wallet, creating a zero-balance one on first
// reference. Safe under concurrent first-time resolution.
func (s *Service) Resolve(ctx context.Context, owner ledger.OwnerRef) (ledger.Wallet, error) {
	if err := owner.Validate(); err != nil {
		return ledger.Wallet{}, err
	}
	return s.store.ResolveWallet(ctx, owner)
}

// Get returns the owner's wallet without creating one.
func (s *Service) Get(ctx context.Context, owner ledger.OwnerRef) (ledger.Wallet, error) {
	if err := owner.Validate(); err != nil {
		return ledger.Wallet{}, err
	}
	return s.store.LookupWallet(ctx, owner)
}

// GetBalance returns the current balance for the owner's wallet.
func (s *Service) GetBalance(ctx context.Context, owner ledger.OwnerRef) (Balance, error) {
	w, err := s.Get(ctx, owner)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: w.Balance, Currency: w.Currency, AsOf: time.Now().UTC()}, nil
}
