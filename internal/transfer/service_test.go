package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/somulo1/chamaledger/internal/ledger"
	"github.com/somulo1/chamaledger/internal/notification"
	"github.com/somulo1/chamaledger/internal/wallet"
)

type testNotifier struct {
	events []notification.Event
}

func (n *testNotifier) Send(_ context.Context, event notification.Event) error {
	n.events = append(n.events, event)
	return nil
}

func newTestService() (*Service, ledger.Store, *wallet.Service, *testNotifier) {
	store := ledger.NewMemory("KES")
	wallets := wallet.NewService(store)
	notifier := &testNotifier{}
	return NewService(store, wallets, notifier), store, wallets, notifier
}

func TestExecuteDepositCreatesWalletLazily(t *testing.T) {
	svc, _, wallets, notifier := newTestService()
	ctx := context.Background()
	owner := ledger.OwnerRef{UserID: uuid.NewString()}

	tx, err := svc.Execute(ctx, Request{
		Kind:             ledger.KindDeposit,
		Amount:           5_000,
		DestinationOwner: owner,
		Description:      "till deposit",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if tx.Kind != ledger.KindDeposit || tx.Amount != 5_000 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	w, err := wallets.Get(ctx, owner)
	if err != nil {
		t.Fatalf("wallet not created: %v", err)
	}
	if w.Balance != 5_000 {
		t.Fatalf("expected balance 5000, got %d", w.Balance)
	}
	if tx.DestinationWallet != w.ID {
		t.Fatalf("transaction must reference the destination wallet")
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected one event, got %d", len(notifier.events))
	}
	event := notifier.events[0]
	if event.TransactionID != tx.ID || event.Amount != 5_000 || event.DestinationOwner != owner.Key() {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestExecuteWithdrawalRequiresExistingWallet(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Execute(ctx, Request{
		Kind:        ledger.KindWithdrawal,
		Amount:      500,
		SourceOwner: ledger.OwnerRef{UserID: uuid.NewString()},
	})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found for fresh owner, got %v", err)
	}
}

func TestExecuteWithdrawalInsufficientFunds(t *testing.T) {
	svc, store, wallets, notifier := newTestService()
	ctx := context.Background()
	owner := ledger.OwnerRef{UserID: uuid.NewString()}
	w, _ := wallets.Resolve(ctx, owner)
	ledger.SeedBalance(store, w.ID, 100)

	_, err := svc.Execute(ctx, Request{Kind: ledger.KindWithdrawal, Amount: 500, SourceOwner: owner})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	after, _ := wallets.Get(ctx, owner)
	if after.Balance != 100 {
		t.Fatalf("rejected withdrawal changed the balance: %d", after.Balance)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("rejected operation must not emit events")
	}
}

func TestExecuteTransfer(t *testing.T) {
	svc, store, wallets, _ := newTestService()
	ctx := context.Background()
	alice := ledger.OwnerRef{UserID: uuid.NewString()}
	bob := ledger.OwnerRef{UserID: uuid.NewString()}
	aliceWallet, _ := wallets.Resolve(ctx, alice)
	ledger.SeedBalance(store, aliceWallet.ID, 10_000)

	tx, err := svc.Execute(ctx, Request{
		Kind:             ledger.KindTransfer,
		Amount:           3_000,
		SourceOwner:      alice,
		DestinationOwner: bob,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tx.SourceWallet == "" || tx.DestinationWallet == "" {
		t.Fatalf("transfer must link both wallets: %+v", tx)
	}

	aliceAfter, _ := wallets.Get(ctx, alice)
	bobAfter, _ := wallets.Get(ctx, bob)
	if aliceAfter.Balance != 7_000 || bobAfter.Balance != 3_000 {
		t.Fatalf("unexpected balances: %d / %d", aliceAfter.Balance, bobAfter.Balance)
	}
}

func TestExecuteSelfTransferRejected(t *testing.T) {
	svc, store, wallets, _ := newTestService()
	ctx := context.Background()
	owner := ledger.OwnerRef{UserID: uuid.NewString()}
	w, _ := wallets.Resolve(ctx, owner)
	ledger.SeedBalance(store, w.ID, 1_000)

	_, err := svc.Execute(ctx, Request{
		Kind:             ledger.KindTransfer,
		Amount:           100,
		SourceOwner:      owner,
		DestinationOwner: owner,
	})
	if !errors.Is(err, ledger.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation for self transfer, got %v", err)
	}
}

func TestExecuteContribution(t *testing.T) {
	svc, store, wallets, notifier := newTestService()
	ctx := context.Background()
	member := ledger.OwnerRef{UserID: uuid.NewString()}
	chama := ledger.OwnerRef{ChamaID: uuid.NewString()}
	memberWallet, _ := wallets.Resolve(ctx, member)
	ledger.SeedBalance(store, memberWallet.ID, 2_000)

	tx, err := svc.Execute(ctx, Request{
		Kind:             ledger.KindContribution,
		Amount:           500,
		SourceOwner:      member,
		DestinationOwner: chama,
		Description:      "weekly contribution",
	})
	if err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if tx.Kind != ledger.KindContribution {
		t.Fatalf("unexpected kind: %s", tx.Kind)
	}

	memberAfter, _ := wallets.Get(ctx, member)
	chamaAfter, _ := wallets.Get(ctx, chama)
	if memberAfter.Balance != 1_500 || chamaAfter.Balance != 500 {
		t.Fatalf("unexpected balances: %d / %d", memberAfter.Balance, chamaAfter.Balance)
	}

	if len(notifier.events) != 1 || notifier.events[0].DestinationOwner != chama.Key() {
		t.Fatalf("expected contribution event for the chama")
	}
}

func TestExecuteContributionShapeEnforced(t *testing.T) {
	svc, store, wallets, _ := newTestService()
	ctx := context.Background()
	member := ledger.OwnerRef{UserID: uuid.NewString()}
	other := ledger.OwnerRef{UserID: uuid.NewString()}
	w, _ := wallets.Resolve(ctx, member)
	ledger.SeedBalance(store, w.ID, 1_000)

	// Contribution into a user wallet is not a contribution.
	_, err := svc.Execute(ctx, Request{
		Kind:             ledger.KindContribution,
		Amount:           100,
		SourceOwner:      member,
		DestinationOwner: other,
	})
	if !errors.Is(err, ledger.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestExecuteRejectsMalformedRequests(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	owner := ledger.OwnerRef{UserID: uuid.NewString()}

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown kind", Request{Kind: "loan", Amount: 100, DestinationOwner: owner}, ledger.ErrInvalidOperation},
		{"zero amount", Request{Kind: ledger.KindDeposit, DestinationOwner: owner}, ledger.ErrInvalidAmount},
		{"negative amount", Request{Kind: ledger.KindDeposit, Amount: -5, DestinationOwner: owner}, ledger.ErrInvalidAmount},
		{"deposit with source", Request{Kind: ledger.KindDeposit, Amount: 100, SourceOwner: owner, DestinationOwner: owner}, ledger.ErrInvalidOperation},
		{"withdrawal with destination", Request{Kind: ledger.KindWithdrawal, Amount: 100, SourceOwner: owner, DestinationOwner: owner}, ledger.ErrInvalidOperation},
		{"transfer missing destination", Request{Kind: ledger.KindTransfer, Amount: 100, SourceOwner: owner}, ledger.ErrInvalidOperation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Execute(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExecuteIdempotentRetry(t *testing.T) {
	svc, _, wallets, _ := newTestService()
	ctx := context.Background()
	owner := ledger.OwnerRef{UserID: uuid.NewString()}

	first, err := svc.Execute(ctx, Request{
		Kind:             ledger.KindDeposit,
		Amount:           1_000,
		DestinationOwner: owner,
		ClientTxID:       "retry-1",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	again, err := svc.Execute(ctx, Request{
		Kind:             ledger.KindDeposit,
		Amount:           1_000,
		DestinationOwner: owner,
		ClientTxID:       "retry-1",
	})
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("retry must return the original transaction")
	}

	w, _ := wallets.Get(ctx, owner)
	if w.Balance != 1_000 {
		t.Fatalf("retry was reapplied, balance=%d", w.Balance)
	}
}

func TestExecuteRecordsFailuresWhenEnabled(t *testing.T) {
	svc, store, wallets, _ := newTestService()
	svc.RecordFailures = true
	ctx := context.Background()
	owner := ledger.OwnerRef{UserID: uuid.NewString()}
	w, _ := wallets.Resolve(ctx, owner)
	ledger.SeedBalance(store, w.ID, 100)

	if _, err := svc.Execute(ctx, Request{Kind: ledger.KindWithdrawal, Amount: 500, SourceOwner: owner}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	list, _, err := store.ListTransactions(ctx, w.ID, ledger.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != ledger.StatusFailed {
		t.Fatalf("expected one failed audit record, got %+v", list)
	}
	if list[0].Amount != 500 || list[0].Kind != ledger.KindWithdrawal {
		t.Fatalf("audit record mismatch: %+v", list[0])
	}
}
