package history

import (
	"context"
	"errors"

	"github.com/somulo1/chamaledger/internal/ledger"
	"github.com/somulo1/chamaledger/internal/wallet"
)

// Service is the read-only query surface over the transaction log.
type Service struct {
	store   ledger.Store
	wallets *wallet.Service
}

// NewService constructs a history service.
func NewService(store ledger.Store, wallets *wallet.Service) *Service {
	return &Service{store: store, wallets: wallets}
}

// List returns the owner's transactions newest first together with a cursor
// for the next page. An owner with no wallet yet has an empty history.
func (s *Service) List(ctx context.Context, owner ledger.OwnerRef, page ledger.Page) ([]ledger.Transaction, string, error) {
	w, err := s.wallets.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return s.store.ListTransactions(ctx, w.ID, page)
}

// Get returns a single transaction by id for audit lookups.
func (s *Service) Get(ctx context.Context, id string) (ledger.Transaction, error) {
	return s.store.Transaction(ctx, id)
}
