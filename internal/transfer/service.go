package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/somulo1/chamaledger/internal/ledger"
	"github.com/somulo1/chamaledger/internal/notification"
	"github.com/somulo1/chamaledger/internal/wallet"
)

// Service executes balance-affecting operations as atomic units against the
// ledger store: deposits, withdrawals, wallet-to-wallet transfers and chama
// contributions.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	notifier notification.Notifier

	// RecordFailures writes a failed-status audit record for rejected
	// operations. Off by default: rejected operations leave no trace.
	RecordFailures bool
}

// NewService constructs a transfer service.
func NewService(store ledger.Store, wallets *wallet.Service, notifier notification.Notifier) *Service {
	return &Service{store: store, wallets: wallets, notifier: notifier}
}

// Request captures one inbound operation. Owner fields are required per kind:
// deposit needs only a destination, withdrawal only a source, transfer and
// contribution both. ClientTxID is an optional client-generated idempotency
// token; retries with the same token return the original transaction.
type Request struct {
	Kind             ledger.Kind
	Amount           int64
	SourceOwner      ledger.OwnerRef
	DestinationOwner ledger.OwnerRef
	Description      string
	ClientTxID       string
}

// Execute validates the request shape, resolves the wallets involved and
// applies the operation atomically. On success the committed transaction is
// returned and a best-effort event is emitted.
func (s *Service) Execute(ctx context.Context, req Request) (ledger.Transaction, error) {
	if !req.Kind.Valid() {
		return ledger.Transaction{}, fmt.Errorf("%w: unknown operation type %q", ledger.ErrInvalidOperation, req.Kind)
	}
	if req.Amount <= 0 {
		return ledger.Transaction{}, ledger.ErrInvalidAmount
	}

	switch req.Kind {
	case ledger.KindDeposit:
		return s.deposit(ctx, req)
	case ledger.KindWithdrawal:
		return s.withdraw(ctx, req)
	default:
		return s.move(ctx, req)
	}
}

func (s *Service) deposit(ctx context.Context, req Request) (ledger.Transaction, error) {
	if !req.SourceOwner.IsZero() {
		return ledger.Transaction{}, fmt.Errorf("%w: deposit must not name a source owner", ledger.ErrInvalidOperation)
	}
	if err := req.DestinationOwner.Validate(); err != nil {
		return ledger.Transaction{}, err
	}

	dest, err := s.wallets.Resolve(ctx, req.DestinationOwner)
	if err != nil {
		return ledger.Transaction{}, err
	}

	t, err := s.store.Deposit(ctx, dest.ID, req.Amount, req.ClientTxID, req.Description)
	if err != nil {
		return s.reject(ctx, req, t, "", dest.ID, err)
	}
	s.notify(ctx, t, req)
	return t, nil
}

func (s *Service) withdraw(ctx context.Context, req Request) (ledger.Transaction, error) {
	if !req.DestinationOwner.IsZero() {
		return ledger.Transaction{}, fmt.Errorf("%w: withdrawal must not name a destination owner", ledger.ErrInvalidOperation)
	}
	if err := req.SourceOwner.Validate(); err != nil {
		return ledger.Transaction{}, err
	}

	source, err := s.wallets.Get(ctx, req.SourceOwner)
	if err != nil {
		return s.reject(ctx, req, ledger.Transaction{}, "", "", err)
	}

	t, err := s.store.Withdraw(ctx, source.ID, req.Amount, req.ClientTxID, req.Description)
	if err != nil {
		return s.reject(ctx, req, t, source.ID, "", err)
	}
	s.notify(ctx, t, req)
	return t, nil
}

func (s *Service) move(ctx context.Context, req Request) (ledger.Transaction, error) {
	if err := req.SourceOwner.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	if err := req.DestinationOwner.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	if req.SourceOwner.Equal(req.DestinationOwner) {
		return ledger.Transaction{}, fmt.Errorf("%w: source and destination owner are the same", ledger.ErrInvalidOperation)
	}
	if req.Kind == ledger.KindContribution {
		if req.SourceOwner.UserID == "" {
			return ledger.Transaction{}, fmt.Errorf("%w: contribution source must be a member", ledger.ErrInvalidOperation)
		}
		if req.DestinationOwner.ChamaID == "" {
			return ledger.Transaction{}, fmt.Errorf("%w: contribution destination must be a chama", ledger.ErrInvalidOperation)
		}
	}

	source, err := s.wallets.Get(ctx, req.SourceOwner)
	if err != nil {
		return s.reject(ctx, req, ledger.Transaction{}, "", "", err)
	}
	dest, err := s.wallets.Resolve(ctx, req.DestinationOwner)
	if err != nil {
		return ledger.Transaction{}, err
	}

	t, err := s.store.Move(ctx, req.Kind, source.ID, dest.ID, req.Amount, req.ClientTxID, req.Description)
	if err != nil {
		return s.reject(ctx, req, t, source.ID, dest.ID, err)
	}
	s.notify(ctx, t, req)
	return t, nil
}

// reject optionally records a failed-status audit row and propagates the
// rejection. Duplicate submissions are not failures: the original record is
// passed through untouched.
func (s *Service) reject(ctx context.Context, req Request, t ledger.Transaction, sourceWallet, destWallet string, err error) (ledger.Transaction, error) {
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return t, err
	}
	if s.RecordFailures {
		_, _ = s.store.RecordFailure(ctx, ledger.Transaction{
			Kind:              req.Kind,
			Amount:            req.Amount,
			SourceWallet:      sourceWallet,
			DestinationWallet: destWallet,
			Description:       req.Description,
		})
	}
	return ledger.Transaction{}, err
}

func (s *Service) notify(ctx context.Context, t ledger.Transaction, req Request) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Event{
		TransactionID:    t.ID,
		Kind:             string(t.Kind),
		Amount:           t.Amount,
		SourceOwner:      ownerKey(req.SourceOwner),
		DestinationOwner: ownerKey(req.DestinationOwner),
	})
}

func ownerKey(o ledger.OwnerRef) string {
	if o.IsZero() {
		return ""
	}
	return o.Key()
}
