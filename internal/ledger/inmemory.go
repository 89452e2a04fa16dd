package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memWallet struct {
	mu sync.Mutex
	w  Wallet
}

// memoryStore keeps the full ledger in process memory. Balance mutations are
// serialized per wallet with the wallet locks always acquired in wallet-ID
// order; the store lock guards the owner index, the append-only log and the
// client-tx dedup index.
type memoryStore struct {
	currency string

	mu          sync.Mutex
	wallets     map[string]*memWallet
	byOwner     map[string]string
	log         []Transaction
	byID        map[string]int
	byClientKey map[string]string
}

// NewMemory creates a concurrency-safe in-memory store useful for unit tests.
func NewMemory(currency string) Store {
	return &memoryStore{
		currency:    currency,
		wallets:     make(map[string]*memWallet),
		byOwner:     make(map[string]string),
		byID:        make(map[string]int),
		byClientKey: make(map[string]string),
	}
}

func (s *memoryStore) ResolveWallet(_ context.Context, owner OwnerRef) (Wallet, error) {
	if err := owner.Validate(); err != nil {
		return Wallet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byOwner[owner.Key()]; ok {
		return s.readWallet(id), nil
	}

	now := time.Now().UTC()
	w := Wallet{
		ID:         uuid.NewString(),
		OwnerUser:  owner.UserID,
		OwnerChama: owner.ChamaID,
		Balance:    0,
		Currency:   s.currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.wallets[w.ID] = &memWallet{w: w}
	s.byOwner[owner.Key()] = w.ID
	return w, nil
}

func (s *memoryStore) LookupWallet(_ context.Context, owner OwnerRef) (Wallet, error) {
	if err := owner.Validate(); err != nil {
		return Wallet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byOwner[owner.Key()]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return s.readWallet(id), nil
}

func (s *memoryStore) readWallet(id string) Wallet {
	mw := s.wallets[id]
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.w
}

func (s *memoryStore) Deposit(_ context.Context, destWalletID string, amount int64, clientTxID, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	key := string(KindDeposit) + ":" + clientTxID
	if existing, dup, err := s.reserve(KindDeposit, clientTxID); dup || err != nil {
		return existing, err
	}

	s.mu.Lock()
	mw, ok := s.wallets[destWalletID]
	s.mu.Unlock()
	if !ok {
		s.release(clientTxID, key)
		return Transaction{}, ErrNotFound
	}

	mw.mu.Lock()
	mw.w.Balance += amount
	mw.w.UpdatedAt = time.Now().UTC()
	mw.mu.Unlock()

	t := Transaction{
		ID:                uuid.NewString(),
		Kind:              KindDeposit,
		Amount:            amount,
		DestinationWallet: destWalletID,
		Status:            StatusCompleted,
		Description:       description,
		ClientTxID:        clientTxID,
		CreatedAt:         time.Now().UTC(),
	}
	s.commit(t, key)
	return t, nil
}

func (s *memoryStore) Withdraw(_ context.Context, sourceWalletID string, amount int64, clientTxID, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	key := string(KindWithdrawal) + ":" + clientTxID
	if existing, dup, err := s.reserve(KindWithdrawal, clientTxID); dup || err != nil {
		return existing, err
	}

	s.mu.Lock()
	mw, ok := s.wallets[sourceWalletID]
	s.mu.Unlock()
	if !ok {
		s.release(clientTxID, key)
		return Transaction{}, ErrNotFound
	}

	mw.mu.Lock()
	if mw.w.Balance < amount {
		mw.mu.Unlock()
		s.release(clientTxID, key)
		return Transaction{}, ErrInsufficientFunds
	}
	mw.w.Balance -= amount
	mw.w.UpdatedAt = time.Now().UTC()
	mw.mu.Unlock()

	t := Transaction{
		ID:           uuid.NewString(),
		Kind:         KindWithdrawal,
		Amount:       amount,
		SourceWallet: sourceWalletID,
		Status:       StatusCompleted,
		Description:  description,
		ClientTxID:   clientTxID,
		CreatedAt:    time.Now().UTC(),
	}
	s.commit(t, key)
	return t, nil
}

func (s *memoryStore) Move(_ context.Context, kind Kind, sourceWalletID, destWalletID string, amount int64, clientTxID, description string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if sourceWalletID == destWalletID {
		return Transaction{}, ErrInvalidOperation
	}

	key := string(kind) + ":" + clientTxID
	if existing, dup, err := s.reserve(kind, clientTxID); dup || err != nil {
		return existing, err
	}

	s.mu.Lock()
	src, srcOK := s.wallets[sourceWalletID]
	dst, dstOK := s.wallets[destWalletID]
	s.mu.Unlock()
	if !srcOK || !dstOK {
		s.release(clientTxID, key)
		return Transaction{}, ErrNotFound
	}

	// Lock both wallets in wallet-ID order so opposing transfers between the
	// same pair cannot deadlock.
	first, second := src, dst
	if destWalletID < sourceWalletID {
		first, second = dst, src
	}
	first.mu.Lock()
	second.mu.Lock()

	if src.w.Balance < amount {
		second.mu.Unlock()
		first.mu.Unlock()
		s.release(clientTxID, key)
		return Transaction{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	src.w.Balance -= amount
	src.w.UpdatedAt = now
	dst.w.Balance += amount
	dst.w.UpdatedAt = now
	second.mu.Unlock()
	first.mu.Unlock()

	t := Transaction{
		ID:                uuid.NewString(),
		Kind:              kind,
		Amount:            amount,
		SourceWallet:      sourceWalletID,
		DestinationWallet: destWalletID,
		Status:            StatusCompleted,
		Description:       description,
		ClientTxID:        clientTxID,
		CreatedAt:         now,
	}
	s.commit(t, key)
	return t, nil
}

func (s *memoryStore) Transaction(_ context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return s.log[idx], nil
}

func (s *memoryStore) ListTransactions(_ context.Context, walletID string, page Page) ([]Transaction, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.log) - 1
	if page.Cursor != "" {
		_, cursorID, err := decodeCursor(page.Cursor)
		if err != nil {
			return nil, "", err
		}
		idx, ok := s.byID[cursorID]
		if !ok {
			return nil, "", ErrNotFound
		}
		start = idx - 1
	}

	limit := page.limit()
	var matched []Transaction
	for i := start; i >= 0 && len(matched) <= limit; i-- {
		t := s.log[i]
		if t.SourceWallet == walletID || t.DestinationWallet == walletID {
			matched = append(matched, t)
		}
	}

	next := ""
	if len(matched) > limit {
		matched = matched[:limit]
		next = encodeCursor(matched[limit-1])
	}
	return matched, next, nil
}

func (s *memoryStore) RecordFailure(_ context.Context, t Transaction) (Transaction, error) {
	t.ID = uuid.NewString()
	t.Status = StatusFailed
	t.CreatedAt = time.Now().UTC()
	s.commit(t, "")
	return t, nil
}

// reserve claims the (kind, clientTxID) dedup slot. It returns the original
// transaction with ErrDuplicateTransaction when the key was already used, and
// ErrConflict when another request holds the reservation mid-flight.
func (s *memoryStore) reserve(kind Kind, clientTxID string) (Transaction, bool, error) {
	if clientTxID == "" {
		return Transaction{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(kind) + ":" + clientTxID
	id, exists := s.byClientKey[key]
	if !exists {
		s.byClientKey[key] = ""
		return Transaction{}, false, nil
	}
	if id == "" {
		return Transaction{}, true, ErrConflict
	}
	return s.log[s.byID[id]], true, ErrDuplicateTransaction
}

func (s *memoryStore) release(clientTxID, key string) {
	if clientTxID == "" {
		return
	}
	s.mu.Lock()
	delete(s.byClientKey, key)
	s.mu.Unlock()
}

func (s *memoryStore) commit(t Transaction, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[t.ID] = len(s.log)
	s.log = append(s.log, t)
	if t.ClientTxID != "" && key != "" {
		s.byClientKey[key] = t.ID
	}
}
